// Command seed fills the messenger tables with random users, conversations
// and messages for manual testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"messenger-store/internal/config"
	"messenger-store/internal/domain"
	"messenger-store/internal/repository"
)

type seedOptions struct {
	users         int
	conversations int
	maxMessages   int
	spacing       time.Duration
}

func main() {
	var opts seedOptions
	flag.IntVar(&opts.users, "users", 10, "number of users to create")
	flag.IntVar(&opts.conversations, "conversations", 15, "number of conversations to create")
	flag.IntVar(&opts.maxMessages, "max-messages", 50, "maximum messages per conversation")
	flag.DurationVar(&opts.spacing, "spacing", time.Minute, "time between consecutive messages")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(opts seedOptions) error {
	ctx := context.Background()
	_ = godotenv.Load()

	if opts.users < 2 {
		return fmt.Errorf("need at least 2 users, got %d", opts.users)
	}
	if opts.maxMessages < 10 {
		return fmt.Errorf("max-messages must be at least 10, got %d", opts.maxMessages)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	client := awsdynamodb.NewFromConfig(awsCfg, cfg.DynamoOptions()...)

	messages, err := repository.NewMessages(client, cfg.MessagesTable)
	if err != nil {
		return err
	}
	conversations, err := repository.NewConversations(client, cfg.ConversationsTable, cfg.PointersTable)
	if err != nil {
		return err
	}

	users := make([]domain.ID, opts.users)
	for i := range users {
		users[i] = domain.NewID()
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	base := time.Now().UTC()
	total := 0
	for c := 0; c < opts.conversations; c++ {
		pick := r.Perm(len(users))
		a, b := users[pick[0]], users[pick[1]]
		convID := domain.NewID()
		// Distinct last-activity instants keep users' index rows from colliding.
		last := base.Add(-time.Duration(c) * time.Millisecond)

		n := 10 + r.Intn(opts.maxMessages-9)
		for i := 0; i < n; i++ {
			sender := a
			if r.Intn(2) == 1 {
				sender = b
			}
			err := messages.Append(ctx, domain.Message{
				ConversationID: convID,
				SentAt:         last.Add(-time.Duration(i) * opts.spacing),
				SenderID:       sender,
				Content:        fmt.Sprintf("Test message %d from %s", i, sender),
			})
			if err != nil {
				return fmt.Errorf("append message: %w", err)
			}
		}
		total += n

		for _, pair := range [][2]domain.ID{{a, b}, {b, a}} {
			err := conversations.Touch(ctx, domain.ConversationSummary{
				UserID:         pair[0],
				LastMessageAt:  last,
				ConversationID: convID,
				PeerID:         pair[1],
			})
			if err != nil {
				return fmt.Errorf("touch conversation: %w", err)
			}
		}
		slog.Info("seeded conversation", "conversation_id", convID, "messages", n)
	}

	for _, u := range users {
		slog.Info("seeded user", "user_id", u)
	}
	slog.Info("seed complete", "users", len(users), "conversations", opts.conversations, "messages", total)
	return nil
}
