package paramstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// EnvGetter resolves parameters from environment variables for local runs.
// "<prefix>/config/openai_model" is read from CONFIG_OPENAI_MODEL: the prefix
// is stripped, letters upper-cased and every other rune becomes '_'.
type EnvGetter struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvGetter returns an EnvGetter for parameters under prefix.
func NewEnvGetter(prefix string) *EnvGetter {
	return &EnvGetter{
		prefix: strings.TrimRight(strings.TrimSpace(prefix), "/"),
		lookup: os.LookupEnv,
	}
}

func (g *EnvGetter) GetParameter(_ context.Context, name string) (string, error) {
	key := g.EnvKey(name)
	if key == "" {
		return "", fmt.Errorf("paramstore: name is required")
	}
	v, ok := g.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %q (env %s)", ErrNotFound, name, key)
	}
	return v, nil
}

// EnvKey returns the environment variable consulted for name.
func (g *EnvGetter) EnvKey(name string) string {
	name = strings.TrimSpace(name)
	if g.prefix != "" {
		name = strings.TrimPrefix(name, g.prefix)
	}
	name = strings.Trim(name, "/")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)
}
