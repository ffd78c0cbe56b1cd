package usecase

import (
	"context"
	"strings"
	"time"

	"messenger-store/internal/domain"
)

type ListMessagesInput struct {
	ConversationID string
	// Before is an RFC 3339 cursor; empty starts at the newest message.
	Before string
	// Limit of zero selects the default page size; larger than the maximum
	// is clamped.
	Limit int
}

type ListMessagesOutput struct {
	Messages []domain.Message
	// NextBefore is set when the page was full and more rows may follow.
	NextBefore *time.Time
}

type ListConversationsInput struct {
	UserID string
	Before string
	Limit  int
}

type ListConversationsOutput struct {
	Conversations []domain.ConversationSummary
	NextBefore    *time.Time
}

type GetConversationInput struct {
	UserID         string
	ConversationID string
}

func (s *Service) ListMessages(ctx context.Context, in ListMessagesInput) (_ ListMessagesOutput, err error) {
	defer withOp("Service.ListMessages", &err)

	convID, err := domain.ParseID(in.ConversationID)
	if err != nil {
		return ListMessagesOutput{}, newError(ErrorInvalidInput, "invalid_conversation_id", err)
	}
	before, limit, err := s.pageParams(ctx, in.Before, in.Limit)
	if err != nil {
		return ListMessagesOutput{}, err
	}

	msgs, err := s.messages.Page(ctx, convID, before, limit)
	if err != nil {
		return ListMessagesOutput{}, storeFailure("message_read_error", err)
	}
	out := ListMessagesOutput{Messages: msgs}
	if len(msgs) == limit {
		next := msgs[len(msgs)-1].SentAt
		out.NextBefore = &next
	}
	return out, nil
}

func (s *Service) ListConversations(ctx context.Context, in ListConversationsInput) (_ ListConversationsOutput, err error) {
	defer withOp("Service.ListConversations", &err)

	userID, err := domain.ParseID(in.UserID)
	if err != nil {
		return ListConversationsOutput{}, newError(ErrorInvalidInput, "invalid_user_id", err)
	}
	before, limit, err := s.pageParams(ctx, in.Before, in.Limit)
	if err != nil {
		return ListConversationsOutput{}, err
	}

	rows, err := s.conversations.Page(ctx, userID, before, limit)
	if err != nil {
		return ListConversationsOutput{}, storeFailure("conversation_read_error", err)
	}
	out := ListConversationsOutput{Conversations: rows}
	if len(rows) == limit {
		next := rows[len(rows)-1].LastMessageAt
		out.NextBefore = &next
	}
	return out, nil
}

func (s *Service) GetConversation(ctx context.Context, in GetConversationInput) (_ domain.ConversationSummary, err error) {
	defer withOp("Service.GetConversation", &err)

	userID, err := domain.ParseID(in.UserID)
	if err != nil {
		return domain.ConversationSummary{}, newError(ErrorInvalidInput, "invalid_user_id", err)
	}
	convID, err := domain.ParseID(in.ConversationID)
	if err != nil {
		return domain.ConversationSummary{}, newError(ErrorInvalidInput, "invalid_conversation_id", err)
	}

	summary, ok, err := s.conversations.Lookup(ctx, userID, convID)
	if err != nil {
		return domain.ConversationSummary{}, storeFailure("conversation_read_error", err)
	}
	if !ok {
		return domain.ConversationSummary{}, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	return summary, nil
}

func (s *Service) pageParams(ctx context.Context, rawBefore string, limit int) (time.Time, int, error) {
	var before time.Time
	if raw := strings.TrimSpace(rawBefore); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, 0, newError(ErrorInvalidInput, "invalid_before", err)
		}
		before = ts
	}
	if limit < 0 {
		return time.Time{}, 0, newError(ErrorInvalidInput, "invalid_limit", nil)
	}

	limits, err := s.ensureLimits(ctx)
	if err != nil {
		return time.Time{}, 0, newError(ErrorInternal, "ssm_load_error", err)
	}
	switch {
	case limit == 0:
		limit = limits.DefaultPage
	case limit > limits.MaxPage:
		limit = limits.MaxPage
	}
	return before, limit, nil
}
