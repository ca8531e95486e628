// Command docservice serves the generic CRUD protocol over a DynamoDB table as an AWS
// Lambda function. It is configured through DOCSERVICE_* environment variables.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/viper"

	"github.com/jacentio/docservice/invoke"
	"github.com/jacentio/docservice/service"
	"github.com/jacentio/docservice/store"
)

func main() {
	cfg, err := loadConfig(viper.New())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.logger(os.Stdout)

	handler, err := build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	logger.Info("starting", "table", cfg.Table, "id_field", cfg.IDField)
	lambda.Start(handler.Handle)
}

func build(ctx context.Context, cfg config, logger *slog.Logger) (*invoke.Handler, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	svc, err := service.New(store.New(client, cfg.storeConfig(), logger), cfg.serviceConfig(), logger)
	if err != nil {
		return nil, err
	}
	return invoke.NewHandler(svc, logger), nil
}
