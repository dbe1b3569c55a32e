package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// GetSecretValueAPI is the part of the Secrets Manager client used here
type GetSecretValueAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecret reads the token from AWS Secrets Manager on every call. When
// JSONKey is set the secret string is a JSON object and the token is read
// from that key. Concurrent calls share one GetSecretValue request.
type AWSSecret struct {
	API      GetSecretValueAPI
	SecretID string
	JSONKey  string

	inflight singleflight.Group
}

// NewAWSSecret creates an AWSSecret using the default AWS credential chain
func NewAWSSecret(ctx context.Context, region, secretID, jsonKey string) (*AWSSecret, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &AWSSecret{
		API:      secretsmanager.NewFromConfig(cfg),
		SecretID: secretID,
		JSONKey:  jsonKey,
	}, nil
}

// Token implements TokenSource
func (a *AWSSecret) Token(ctx context.Context) (string, error) {
	if a == nil || a.SecretID == "" {
		return "", ErrNotConfigured
	}

	v, err, _ := a.inflight.Do(a.SecretID, func() (any, error) {
		return a.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *AWSSecret) fetch(ctx context.Context) (string, error) {
	out, err := a.API.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.SecretID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: secret %s not found", ErrNotConfigured, a.SecretID)
		}
		slog.WarnContext(ctx, "Failed to read ERP token from Secrets Manager", "secret", a.SecretID, "error", err)
		return "", fmt.Errorf("failed to get secret %s: %w", a.SecretID, err)
	}

	value := aws.ToString(out.SecretString)
	if a.JSONKey != "" {
		if !gjson.Valid(value) {
			return "", fmt.Errorf("secret %s is not a JSON object", a.SecretID)
		}
		value = gjson.Get(value, a.JSONKey).String()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrNotConfigured
	}
	return value, nil
}
