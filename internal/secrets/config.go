package secrets

import (
	"context"

	"github.com/atelier-ops/atelier-sync/internal/config"
)

// FromConfig builds the token chain: inline token, token file, environment
// variable, then AWS Secrets Manager.
func FromConfig(ctx context.Context, cfg *config.ERPConfig) (TokenSource, error) {
	if cfg == nil {
		return Env{}, nil
	}

	chain := Chain{
		Static(cfg.Token),
		File{Path: cfg.TokenFile},
		Env{Name: cfg.TokenEnv},
	}

	if cfg.AWSSecret != nil && cfg.AWSSecret.Name != "" {
		aws, err := NewAWSSecret(ctx, cfg.AWSSecret.Region, cfg.AWSSecret.Name, cfg.AWSSecret.JSONKey)
		if err != nil {
			return nil, err
		}
		chain = append(chain, aws)
	}
	return chain, nil
}
