// Package app assembles the coaching service from configuration. Both
// entrypoints build through here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"coach-agent/handler"
	"coach-agent/internal/config"
	"coach-agent/internal/integrations/paramstore"
	"coach-agent/internal/llm"
	"coach-agent/internal/observability"
	"coach-agent/internal/usecase"
)

// App holds the wired service graph.
type App struct {
	Config  *config.Config
	Service *usecase.ChatService
	Handler *handler.Handler

	closers []func() error
}

// Deps lets callers replace infrastructure built from config. Nil fields
// are built normally.
type Deps struct {
	Params    paramstore.Getter
	Store     usecase.SessionStore
	Completer llm.Completer
}

// Build wires every component selected by cfg.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	a := &App{Config: cfg}

	var awsCfg *aws.Config
	if cfg.UsesAWS() && (deps.Params == nil || deps.Store == nil) {
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &loaded
	}

	params := deps.Params
	if params == nil {
		p, err := buildParams(cfg, awsCfg)
		if err != nil {
			return nil, err
		}
		params = p
	}

	store := deps.Store
	if store == nil {
		s, err := a.buildStore(ctx, cfg, awsCfg)
		if err != nil {
			return nil, err
		}
		store = s
	}

	completer := deps.Completer
	if completer == nil {
		c, err := buildCompleter(cfg, params)
		if err != nil {
			a.Close()
			return nil, err
		}
		completer = c
	}
	guard, err := llm.NewGuard(completer, cfg.LLM.Provider, cfg.LLM.Timeout, cfg.LLM.Retries)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create llm guard: %w", err)
	}

	resolver, err := usecase.NewResolver(guard, usecase.WithMaxHistory(cfg.MaxHistoryItems))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create resolver: %w", err)
	}
	svc, err := usecase.NewChatService(store, resolver, cfg.MaxMessageLength)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}
	h, err := handler.NewHandler(svc)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create handler: %w", err)
	}

	a.Service = svc
	a.Handler = h
	observability.Logger().InfoContext(ctx, "app wired",
		"state_backend", cfg.StateBackend, "llm_provider", cfg.LLM.Provider, "param_source", cfg.ParamSource)
	return a, nil
}

// Close releases resources opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
