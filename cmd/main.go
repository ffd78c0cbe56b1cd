package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"messenger-store/handler"
	"messenger-store/internal/config"
	"messenger-store/internal/integrations/paramstore"
	"messenger-store/internal/repository"
	"messenger-store/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	dynamoClient := awsdynamodb.NewFromConfig(awsCfg, cfg.DynamoOptions()...)
	messages, err := repository.NewMessages(dynamoClient, cfg.MessagesTable)
	if err != nil {
		slog.Error("failed to create message store", "err", err)
		os.Exit(1)
	}
	conversations, err := repository.NewConversations(dynamoClient, cfg.ConversationsTable, cfg.PointersTable)
	if err != nil {
		slog.Error("failed to create conversation index", "err", err)
		os.Exit(1)
	}

	var params usecase.ParamGetter
	if cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.NewClient(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		params = ssmClient
	}

	// ---- Handler ----
	svc, err := usecase.NewService(messages, conversations, params, cfg.ParamPrefix, usecase.Limits{
		DefaultPage: cfg.DefaultPageLimit,
		MaxPage:     cfg.MaxPageLimit,
		MaxContent:  cfg.MaxContentLength,
	})
	if err != nil {
		slog.Error("failed to create messenger service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(svc)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
