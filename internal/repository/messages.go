package repository

import (
	"context"
	"iter"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"messenger-store/internal/domain"
)

// Messages stores the rows of messages_by_conversation, partitioned by
// conversation_id and clustered by message_ts descending.
type Messages struct {
	api   dynamodbAPI
	table string
}

// NewMessages creates a Messages store over the given table.
func NewMessages(api dynamodbAPI, table string) (*Messages, error) {
	if api == nil {
		return nil, errNilAPI
	}
	if err := checkTable(table, "messages"); err != nil {
		return nil, err
	}
	return &Messages{api: api, table: table}, nil
}

// Append inserts one message row. A row already stored at the same
// (conversation_id, message_ts) is replaced, so repeating an Append is
// idempotent and distinct messages at the same instant collide.
func (m *Messages) Append(ctx context.Context, msg domain.Message) error {
	const op = "Messages.Append"
	if err := checkID(op, "conversation_id", msg.ConversationID); err != nil {
		return err
	}
	if err := checkID(op, "sender_id", msg.SenderID); err != nil {
		return err
	}
	if err := checkTimestamp(op, "message_ts", msg.SentAt); err != nil {
		return err
	}

	_, err := m.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.table),
		Item:      messageItem(msg),
	})
	if err != nil {
		return storeError(op, err)
	}
	return nil
}

// Page returns up to limit messages of the conversation sent strictly before
// the cursor, newest first. A zero before starts at the newest message. An
// unknown conversation yields an empty page.
func (m *Messages) Page(ctx context.Context, conversationID domain.ID, before time.Time, limit int) ([]domain.Message, error) {
	const op = "Messages.Page"
	if err := checkID(op, "conversation_id", conversationID); err != nil {
		return nil, err
	}
	if err := checkCursor(op, before); err != nil {
		return nil, err
	}
	if err := checkLimit(op, limit); err != nil {
		return nil, err
	}

	items, err := queryPage(ctx, m.api, pageRequest{
		op:     op,
		table:  m.table,
		pkName: attrConversationID,
		skName: attrMessageTS,
		pk:     conversationID.String(),
		before: before,
		limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(items))
	for _, item := range items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, corruptItem(op, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// All walks the conversation from the cursor to its oldest message, fetching
// pageSize rows per request.
func (m *Messages) All(ctx context.Context, conversationID domain.ID, before time.Time, pageSize int) iter.Seq2[domain.Message, error] {
	page := func(ctx context.Context, before time.Time, limit int) ([]domain.Message, error) {
		return m.Page(ctx, conversationID, before, limit)
	}
	return walk(ctx, before, pageSize, page, func(msg domain.Message) time.Time { return msg.SentAt })
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrConversationID: idValue(msg.ConversationID),
		attrMessageTS:      strValue(tsKey(msg.SentAt)),
		attrSenderID:       idValue(msg.SenderID),
		attrContent:        strValue(msg.Content),
	}
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	convID, err := idAttr(item, attrConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	sentAt, err := tsAttr(item, attrMessageTS)
	if err != nil {
		return domain.Message{}, err
	}
	senderID, err := idAttr(item, attrSenderID)
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, attrContent)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ConversationID: convID,
		SentAt:         sentAt,
		SenderID:       senderID,
		Content:        content,
	}, nil
}
