package config

import (
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "messages_by_conversation", cfg.MessagesTable)
	require.Equal(t, "conversations_by_user", cfg.ConversationsTable)
	require.Equal(t, "conversation_pointers_by_user", cfg.PointersTable)
	require.Equal(t, 20, cfg.DefaultPageLimit)
	require.Equal(t, 100, cfg.MaxPageLimit)
	require.Equal(t, 4096, cfg.MaxContentLength)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Empty(t, cfg.ParamPrefix)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"MESSAGES_TABLE":     "msgs",
		"DYNAMODB_ENDPOINT":  "http://localhost:8000",
		"PARAM_PREFIX":       "/messenger",
		"DEFAULT_PAGE_LIMIT": "5",
		"MAX_PAGE_LIMIT":     "10",
		"LOG_LEVEL":          "debug",
	})
	require.NoError(t, err)
	require.Equal(t, "msgs", cfg.MessagesTable)
	require.Equal(t, "http://localhost:8000", cfg.DynamoEndpoint)
	require.Equal(t, "/messenger", cfg.ParamPrefix)
	require.Equal(t, 5, cfg.DefaultPageLimit)
	require.Equal(t, 10, cfg.MaxPageLimit)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadFrom_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"not a number":        {"MAX_PAGE_LIMIT": "lots"},
		"default above max":   {"DEFAULT_PAGE_LIMIT": "50", "MAX_PAGE_LIMIT": "10"},
		"non-positive limit":  {"DEFAULT_PAGE_LIMIT": "0"},
		"bad log level":       {"LOG_LEVEL": "loud"},
		"non-positive length": {"MAX_CONTENT_LENGTH": "-1"},
	}
	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			require.Error(t, err)
		})
	}
}

func TestLoad_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("CONVERSATIONS_TABLE", "convs")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "convs", cfg.ConversationsTable)
}

func TestDynamoOptions(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	require.Empty(t, cfg.DynamoOptions())

	cfg.DynamoEndpoint = "http://localhost:8000"
	opts := cfg.DynamoOptions()
	require.Len(t, opts, 1)
	var o dynamodb.Options
	opts[0](&o)
	require.Equal(t, "http://localhost:8000", *o.BaseEndpoint)
}
