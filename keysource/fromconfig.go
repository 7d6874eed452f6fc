package keysource

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"vessellog/config"
)

// FromConfig builds the Source selected by cfg.Key.
func FromConfig(ctx context.Context, cfg *config.Config, dataDir string, created func(path, keyID string)) (Source, error) {
	switch cfg.Key.Source {
	case config.KeySourceFile:
		return File{Path: cfg.KeyFilePath(dataDir), Created: created}, nil
	case config.KeySourceEnv:
		return Env{Var: cfg.Key.EnvVar}, nil
	case config.KeySourceSSM:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("keysource: load AWS config: %w", err)
		}
		return NewParamStore(ssm.NewFromConfig(awsCfg), cfg.Key.SSMParameter)
	default:
		return nil, fmt.Errorf("keysource: unknown source %q", cfg.Key.Source)
	}
}
