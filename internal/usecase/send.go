package usecase

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"messenger-store/internal/domain"
	"messenger-store/internal/repository"
)

type SendInput struct {
	// ConversationID is optional; when empty the sender's existing
	// conversation with the recipient is reused or a new one is started.
	ConversationID string
	SenderID       string
	RecipientID    string
	Content        string
}

type SendOutput struct {
	ConversationID domain.ID
	SentAt         time.Time
}

// SendMessage stores one message and records the activity in both
// participants' conversation lists. The three writes are not atomic: if an
// index write fails the message is already stored and the error says so.
func (s *Service) SendMessage(ctx context.Context, in SendInput) (_ SendOutput, err error) {
	defer withOp("Service.SendMessage", &err)

	senderID, err := domain.ParseID(in.SenderID)
	if err != nil {
		return SendOutput{}, newError(ErrorInvalidInput, "invalid_sender_id", err)
	}
	recipientID, err := domain.ParseID(in.RecipientID)
	if err != nil {
		return SendOutput{}, newError(ErrorInvalidInput, "invalid_recipient_id", err)
	}
	if senderID == recipientID {
		return SendOutput{}, newError(ErrorInvalidInput, "self_conversation", nil)
	}
	if strings.TrimSpace(in.Content) == "" {
		return SendOutput{}, newError(ErrorInvalidInput, "empty_content", nil)
	}

	limits, err := s.ensureLimits(ctx)
	if err != nil {
		return SendOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}
	if len(in.Content) > limits.MaxContent {
		return SendOutput{}, newError(ErrorInvalidInput, "content_too_long", nil)
	}

	convID, err := s.resolveConversation(ctx, strings.TrimSpace(in.ConversationID), senderID, recipientID)
	if err != nil {
		return SendOutput{}, err
	}

	sentAt := now()
	err = s.messages.Append(ctx, domain.Message{
		ConversationID: convID,
		SentAt:         sentAt,
		SenderID:       senderID,
		Content:        in.Content,
	})
	if err != nil {
		return SendOutput{}, storeFailure("message_write_error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.touch(gctx, domain.ConversationSummary{
			UserID: senderID, LastMessageAt: sentAt, ConversationID: convID, PeerID: recipientID,
		})
	})
	g.Go(func() error {
		return s.touch(gctx, domain.ConversationSummary{
			UserID: recipientID, LastMessageAt: sentAt, ConversationID: convID, PeerID: senderID,
		})
	})
	if err := g.Wait(); err != nil {
		return SendOutput{}, storeFailure("index_write_error", err)
	}

	return SendOutput{ConversationID: convID, SentAt: sentAt}, nil
}

func (s *Service) resolveConversation(ctx context.Context, raw string, senderID, recipientID domain.ID) (domain.ID, error) {
	if raw == "" {
		existing, ok, err := s.conversations.FindWithPeer(ctx, senderID, recipientID)
		if err != nil {
			return domain.ID{}, storeFailure("conversation_lookup_error", err)
		}
		if ok {
			return existing.ConversationID, nil
		}
		return newUUID(), nil
	}

	convID, err := domain.ParseID(raw)
	if err != nil {
		return domain.ID{}, newError(ErrorInvalidInput, "invalid_conversation_id", err)
	}
	owner, ok, err := s.conversations.Lookup(ctx, senderID, convID)
	if err != nil {
		return domain.ID{}, storeFailure("conversation_lookup_error", err)
	}
	if ok {
		if owner.PeerID != recipientID {
			return domain.ID{}, newError(ErrorInvalidInput, "conversation_peer_mismatch", nil)
		}
		return convID, nil
	}

	// The sender's pointer can be missing after a failed index write while the
	// recipient's side still names the pair.
	mirror, ok, err := s.conversations.Lookup(ctx, recipientID, convID)
	if err != nil {
		return domain.ID{}, storeFailure("conversation_lookup_error", err)
	}
	if ok {
		if mirror.PeerID != senderID {
			return domain.ID{}, newError(ErrorInvalidInput, "conversation_peer_mismatch", nil)
		}
		return convID, nil
	}

	// Neither participant knows the id. It may only start a new conversation,
	// never join a partition that already holds another pair's messages.
	rows, err := s.messages.Page(ctx, convID, time.Time{}, 1)
	if err != nil {
		return domain.ID{}, storeFailure("conversation_lookup_error", err)
	}
	if len(rows) > 0 {
		return domain.ID{}, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	return convID, nil
}

// touch retries a Touch that lost its optimistic condition once. The retry
// re-reads the pointer, so it is a no-op when a newer timestamp won.
func (s *Service) touch(ctx context.Context, summary domain.ConversationSummary) error {
	err := s.conversations.Touch(ctx, summary)
	if code, _ := repository.CodeOf(err); code == repository.ErrorConflict {
		err = s.conversations.Touch(ctx, summary)
	}
	return err
}
