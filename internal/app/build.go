package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"coach-agent/internal/config"
	"coach-agent/internal/integrations/openai"
	"coach-agent/internal/integrations/paramstore"
	"coach-agent/internal/integrations/workersai"
	"coach-agent/internal/llm"
	"coach-agent/internal/repository"
	"coach-agent/internal/usecase"
)

var errNoAWSConfig = errors.New("app: AWS config not loaded")

func buildParams(cfg *config.Config, awsCfg *aws.Config) (paramstore.Getter, error) {
	switch cfg.ParamSource {
	case config.ParamSourceEnv:
		return paramstore.NewEnvGetter(cfg.ParamPrefix), nil
	case config.ParamSourceSSM:
		if awsCfg == nil {
			return nil, errNoAWSConfig
		}
		client, err := paramstore.New(awsssm.NewFromConfig(*awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("app: unsupported param source %q", cfg.ParamSource)
	}
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config, awsCfg *aws.Config) (usecase.SessionStore, error) {
	switch cfg.StateBackend {
	case config.BackendMemory:
		return repository.NewMemory(), nil
	case config.BackendDynamoDB:
		if awsCfg == nil {
			return nil, errNoAWSConfig
		}
		store, err := repository.NewDynamo(awsdynamodb.NewFromConfig(*awsCfg), cfg.StateTable)
		if err != nil {
			return nil, fmt.Errorf("app: create dynamodb store: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		store, err := repository.NewSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: open sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendPostgres:
		store, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: open postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("app: unsupported state backend %q", cfg.StateBackend)
	}
}

func buildCompleter(cfg *config.Config, params paramstore.Getter) (llm.Completer, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		client, err := openai.NewClient(params, cfg.ParamPrefix)
		if err != nil {
			return nil, fmt.Errorf("app: create openai client: %w", err)
		}
		return client, nil
	case config.ProviderWorkersAI:
		client, err := workersai.NewClient(params, cfg.ParamPrefix, cfg.LLM.WorkersAIAccountID,
			workersai.WithModel(cfg.LLM.WorkersAIModel))
		if err != nil {
			return nil, fmt.Errorf("app: create workers ai client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("app: unsupported llm provider %q", cfg.LLM.Provider)
	}
}
