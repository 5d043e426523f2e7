// Package cli implements the coach command: a local HTTP server and a
// terminal chat against the same service the Lambda runs.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"coach-agent/internal/app"
	"coach-agent/internal/config"
	"coach-agent/internal/observability"
)

// BuildFunc wires the service for a loaded configuration.
type BuildFunc func(ctx context.Context, cfg *config.Config) (*app.App, error)

type state struct {
	envFile string
	build   BuildFunc
	cfg     *config.Config
}

// NewRootCmd creates the top-level "coach" command. A nil build uses
// app.Build with no overrides.
func NewRootCmd(build BuildFunc) *cobra.Command {
	if build == nil {
		build = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
			return app.Build(ctx, cfg, app.Deps{})
		}
	}
	st := &state{build: build}

	root := &cobra.Command{
		Use:           "coach",
		Short:         "Conversational coaching assistant for children",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&st.envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	root.AddCommand(
		newServeCmd(st),
		newChatCmd(st),
	)
	return root
}

func (st *state) load(cmd *cobra.Command) error {
	if err := godotenv.Load(st.envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", st.envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	observability.Setup(os.Stderr, cfg.LogLevel)
	st.cfg = cfg
	return nil
}
