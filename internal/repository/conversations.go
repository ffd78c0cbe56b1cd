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

// Conversations stores conversations_by_user (partitioned by user_id,
// clustered by last_message_ts descending) together with a pointer table
// keyed by (user_id, conversation_id) that remembers which index row is
// current for each conversation.
type Conversations struct {
	api          dynamodbAPI
	indexTable   string
	pointerTable string
}

// NewConversations creates a Conversations store.
func NewConversations(api dynamodbAPI, indexTable, pointerTable string) (*Conversations, error) {
	if api == nil {
		return nil, errNilAPI
	}
	if err := checkTable(indexTable, "conversations"); err != nil {
		return nil, err
	}
	if err := checkTable(pointerTable, "pointers"); err != nil {
		return nil, err
	}
	return &Conversations{api: api, indexTable: indexTable, pointerTable: pointerTable}, nil
}

// Upsert inserts or replaces the index row keyed by (user_id, last_message_ts).
// A new timestamp for a known conversation adds a second row; use Touch to keep
// one row per conversation.
func (c *Conversations) Upsert(ctx context.Context, s domain.ConversationSummary) error {
	const op = "Conversations.Upsert"
	if err := checkSummary(op, s); err != nil {
		return err
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.indexTable),
		Item:      summaryItem(s),
	})
	if err != nil {
		return storeError(op, err)
	}
	return nil
}

// Touch records activity in a conversation so that the user's index holds a
// single row for it at the newest timestamp. Timestamps not newer than the
// recorded one are ignored. The index write, the removal of the previous row
// and the pointer move commit together; a concurrent Touch of the same
// conversation makes one of them fail with ErrorConflict.
func (c *Conversations) Touch(ctx context.Context, s domain.ConversationSummary) error {
	const op = "Conversations.Touch"
	if err := checkSummary(op, s); err != nil {
		return err
	}

	prev, found, err := c.lookup(ctx, op, s.UserID, s.ConversationID)
	if err != nil {
		return err
	}
	if found && !s.LastMessageAt.After(prev.LastMessageAt) {
		return nil
	}

	writes := []types.TransactWriteItem{
		{Put: &types.Put{TableName: aws.String(c.indexTable), Item: summaryItem(s)}},
	}

	pointer := &types.Put{
		TableName:                aws.String(c.pointerTable),
		Item:                     pointerItem(s),
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": attrUserID},
	}
	if found {
		pointer.ConditionExpression = aws.String("#ts = :prev")
		pointer.ExpressionAttributeNames = map[string]string{"#ts": attrLastMessageTS}
		pointer.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": strValue(tsKey(prev.LastMessageAt)),
		}

		// The old row may since have been overwritten by another conversation
		// active at the same instant; leave that row alone. The delete is
		// conditioned too, so an overwrite after this read cancels the commit.
		owned, err := c.ownsIndexRow(ctx, op, prev)
		if err != nil {
			return err
		}
		if owned {
			writes = append(writes, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName:                aws.String(c.indexTable),
					Key:                      indexKey(prev.UserID, prev.LastMessageAt),
					ConditionExpression:      aws.String("#conv = :conv"),
					ExpressionAttributeNames: map[string]string{"#conv": attrConversationID},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":conv": idValue(prev.ConversationID),
					},
				},
			})
		}
	}
	writes = append(writes, types.TransactWriteItem{Put: pointer})

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		return storeError(op, err)
	}
	return nil
}

// Page returns up to limit summaries for the user with last_message_ts
// strictly before the cursor, most recent first. A zero before starts at the
// most recent row. An unknown user yields an empty page.
func (c *Conversations) Page(ctx context.Context, userID domain.ID, before time.Time, limit int) ([]domain.ConversationSummary, error) {
	const op = "Conversations.Page"
	if err := checkID(op, "user_id", userID); err != nil {
		return nil, err
	}
	if err := checkCursor(op, before); err != nil {
		return nil, err
	}
	if err := checkLimit(op, limit); err != nil {
		return nil, err
	}

	items, err := queryPage(ctx, c.api, pageRequest{
		op:     op,
		table:  c.indexTable,
		pkName: attrUserID,
		skName: attrLastMessageTS,
		pk:     userID.String(),
		before: before,
		limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConversationSummary, 0, len(items))
	for _, item := range items {
		s, err := itemToSummary(item)
		if err != nil {
			return nil, corruptItem(op, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// All walks the user's index from the cursor to the oldest row.
func (c *Conversations) All(ctx context.Context, userID domain.ID, before time.Time, pageSize int) iter.Seq2[domain.ConversationSummary, error] {
	page := func(ctx context.Context, before time.Time, limit int) ([]domain.ConversationSummary, error) {
		return c.Page(ctx, userID, before, limit)
	}
	return walk(ctx, before, pageSize, page, func(s domain.ConversationSummary) time.Time { return s.LastMessageAt })
}

// Lookup returns the user's current summary of one conversation as recorded by
// Touch.
func (c *Conversations) Lookup(ctx context.Context, userID, conversationID domain.ID) (domain.ConversationSummary, bool, error) {
	const op = "Conversations.Lookup"
	if err := checkID(op, "user_id", userID); err != nil {
		return domain.ConversationSummary{}, false, err
	}
	if err := checkID(op, "conversation_id", conversationID); err != nil {
		return domain.ConversationSummary{}, false, err
	}
	return c.lookup(ctx, op, userID, conversationID)
}

// FindWithPeer returns a conversation the user holds with peerID, if any.
func (c *Conversations) FindWithPeer(ctx context.Context, userID, peerID domain.ID) (domain.ConversationSummary, bool, error) {
	const op = "Conversations.FindWithPeer"
	if err := checkID(op, "user_id", userID); err != nil {
		return domain.ConversationSummary{}, false, err
	}
	if err := checkID(op, "peer_id", peerID); err != nil {
		return domain.ConversationSummary{}, false, err
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.pointerTable),
		KeyConditionExpression: aws.String("#pk = :pk"),
		FilterExpression:       aws.String("#peer = :peer"),
		ExpressionAttributeNames: map[string]string{
			"#pk":   attrUserID,
			"#peer": attrPeerID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   idValue(userID),
			":peer": idValue(peerID),
		},
	}
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return domain.ConversationSummary{}, false, storeError(op, err)
		}
		if out == nil {
			return domain.ConversationSummary{}, false, nil
		}
		if len(out.Items) > 0 {
			s, err := itemToSummary(out.Items[0])
			if err != nil {
				return domain.ConversationSummary{}, false, corruptItem(op, err)
			}
			return s, true, nil
		}
		if len(out.LastEvaluatedKey) == 0 {
			return domain.ConversationSummary{}, false, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (c *Conversations) lookup(ctx context.Context, op string, userID, conversationID domain.ID) (domain.ConversationSummary, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.pointerTable),
		Key: map[string]types.AttributeValue{
			attrUserID:         idValue(userID),
			attrConversationID: idValue(conversationID),
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationSummary{}, false, storeError(op, err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationSummary{}, false, nil
	}
	s, err := itemToSummary(out.Item)
	if err != nil {
		return domain.ConversationSummary{}, false, corruptItem(op, err)
	}
	return s, true, nil
}

// ownsIndexRow reports whether the index row at s's timestamp still refers to
// s's conversation.
func (c *Conversations) ownsIndexRow(ctx context.Context, op string, s domain.ConversationSummary) (bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.indexTable),
		Key:            indexKey(s.UserID, s.LastMessageAt),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, storeError(op, err)
	}
	if out == nil || len(out.Item) == 0 {
		return false, nil
	}
	convID, err := idAttr(out.Item, attrConversationID)
	if err != nil {
		return false, corruptItem(op, err)
	}
	return convID == s.ConversationID, nil
}

func checkSummary(op string, s domain.ConversationSummary) error {
	if err := checkID(op, "user_id", s.UserID); err != nil {
		return err
	}
	if err := checkID(op, "conversation_id", s.ConversationID); err != nil {
		return err
	}
	if err := checkID(op, "peer_id", s.PeerID); err != nil {
		return err
	}
	return checkTimestamp(op, "last_message_ts", s.LastMessageAt)
}

func indexKey(userID domain.ID, ts time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID:        idValue(userID),
		attrLastMessageTS: strValue(tsKey(ts)),
	}
}

func summaryItem(s domain.ConversationSummary) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID:         idValue(s.UserID),
		attrLastMessageTS:  strValue(tsKey(s.LastMessageAt)),
		attrConversationID: idValue(s.ConversationID),
		attrPeerID:         idValue(s.PeerID),
	}
}

// pointerItem has the same columns as summaryItem; only the key differs.
func pointerItem(s domain.ConversationSummary) map[string]types.AttributeValue {
	return summaryItem(s)
}

func itemToSummary(item map[string]types.AttributeValue) (domain.ConversationSummary, error) {
	userID, err := idAttr(item, attrUserID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	ts, err := tsAttr(item, attrLastMessageTS)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	convID, err := idAttr(item, attrConversationID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	peerID, err := idAttr(item, attrPeerID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	return domain.ConversationSummary{
		UserID:         userID,
		LastMessageAt:  ts,
		ConversationID: convID,
		PeerID:         peerID,
	}, nil
}
