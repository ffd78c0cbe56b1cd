// Command setup creates the DynamoDB tables used by the messenger store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"messenger-store/internal/config"
	"messenger-store/internal/repository"
)

func main() {
	maxWait := flag.Duration("wait", 2*time.Minute, "how long to wait for each table to become ACTIVE")
	flag.Parse()

	if err := run(*maxWait); err != nil {
		slog.Error("setup failed", "err", err)
		os.Exit(1)
	}
}

func run(maxWait time.Duration) error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}
	client := awsdynamodb.NewFromConfig(awsCfg, cfg.DynamoOptions()...)

	tables := repository.Tables{
		Messages:      cfg.MessagesTable,
		Conversations: cfg.ConversationsTable,
		Pointers:      cfg.PointersTable,
	}
	if err := repository.EnsureTables(ctx, client, tables, maxWait); err != nil {
		return err
	}
	slog.Info("tables ready", "messages", tables.Messages, "conversations", tables.Conversations, "pointers", tables.Pointers)
	return nil
}
