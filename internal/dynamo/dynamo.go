// Package dynamo opens the store the tools run against: the remote service,
// a remote-compatible endpoint such as a local emulator, or the embedded
// SQLite store.
package dynamo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/roach88/dynaql/internal/config"
	"github.com/roach88/dynaql/internal/localstore"
	"github.com/roach88/dynaql/internal/logging"
	"github.com/roach88/dynaql/internal/table"
)

// Static credentials for endpoint overrides. Local emulators accept any
// signed request.
const (
	localAccessKey = "local"
	localSecretKey = "local"
)

// Backend is an open store.
type Backend interface {
	table.API
	Close() error
}

// NewClient builds a remote client for cfg.Region. When cfg.Endpoint is set,
// requests go there with static credentials; otherwise the default
// credential chain applies.
func NewClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(localAccessKey, localSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

type remote struct {
	*dynamodb.Client
}

func (remote) Close() error { return nil }

// Open returns the embedded store when cfg.LocalPath is set and a remote
// client otherwise.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	logger = logging.Default(logger)

	if cfg.Local() {
		st, err := localstore.Open(cfg.LocalPath,
			localstore.WithPageSize(cfg.PageSize),
			localstore.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		logger.Debug("backend opened", "kind", "local", "path", cfg.LocalPath)
		return st, nil
	}

	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("backend opened", "kind", "remote", "region", cfg.Region, "endpoint", cfg.Endpoint)
	return remote{client}, nil
}
