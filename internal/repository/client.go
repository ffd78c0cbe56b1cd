package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"messenger-store/internal/domain"
)

// Column names shared by all three tables.
const (
	attrConversationID = "conversation_id"
	attrMessageTS      = "message_ts"
	attrSenderID       = "sender_id"
	attrContent        = "content"
	attrUserID         = "user_id"
	attrLastMessageTS  = "last_message_ts"
	attrPeerID         = "peer_id"
)

// sortKeyLayout is fixed width so that lexicographic order of the stored
// strings equals chronological order.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// maxQueryBatch caps the Limit sent in a single Query request.
const maxQueryBatch = 1000

// dynamodbAPI is the minimal DynamoDB interface required by the stores.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// tsKey encodes a timestamp as a sort key value.
func tsKey(t time.Time) string {
	return t.UTC().Format(sortKeyLayout)
}

func parseTSKey(s string) (time.Time, error) {
	return time.Parse(sortKeyLayout, s)
}

func checkTable(name, what string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("repository: %s table name must not be empty", what)
	}
	return nil
}

func checkID(op, field string, id domain.ID) error {
	if id == uuid.Nil {
		return invalidArgument(op, field+" must not be nil")
	}
	return nil
}

func checkTimestamp(op, field string, ts time.Time) error {
	if ts.IsZero() {
		return invalidArgument(op, field+" must be set")
	}
	if y := ts.UTC().Year(); y < 1 || y > 9999 {
		return invalidArgument(op, field+" out of range")
	}
	return nil
}

// checkCursor validates an optional before timestamp; zero means "newest".
func checkCursor(op string, before time.Time) error {
	if before.IsZero() {
		return nil
	}
	return checkTimestamp(op, "before", before)
}

func checkLimit(op string, limit int) error {
	if limit <= 0 {
		return invalidArgument(op, "limit must be positive")
	}
	return nil
}

// pageRequest describes one descending cursor read of a single partition.
type pageRequest struct {
	op     string
	table  string
	pkName string
	skName string
	pk     string
	before time.Time
	limit  int
}

// queryPage reads up to req.limit items with sort key < before, newest first.
// DynamoDB may stop a Query short at its 1 MB page size, so LastEvaluatedKey
// is followed until the limit is met or the partition is exhausted.
func queryPage(ctx context.Context, api dynamodbAPI, req pageRequest) ([]map[string]types.AttributeValue, error) {
	keyCond := "#pk = :pk"
	names := map[string]string{"#pk": req.pkName}
	values := map[string]types.AttributeValue{":pk": strValue(req.pk)}
	if !req.before.IsZero() {
		keyCond += " AND #sk < :before"
		names["#sk"] = req.skName
		values[":before"] = strValue(tsKey(req.before))
	}

	items := make([]map[string]types.AttributeValue, 0, min(req.limit, maxQueryBatch))
	var startKey map[string]types.AttributeValue
	for len(items) < req.limit {
		out, err := api.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(req.table),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ScanIndexForward:          aws.Bool(false),
			Limit:                     aws.Int32(int32(min(req.limit-len(items), maxQueryBatch))),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, storeError(req.op, err)
		}
		if out == nil {
			break
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if len(items) > req.limit {
		items = items[:req.limit]
	}
	return items, nil
}

// walk turns a cursor-paginated read into a lazy sequence. Iteration stops
// after the first short page or the first error.
func walk[T any](ctx context.Context, before time.Time, pageSize int,
	page func(ctx context.Context, before time.Time, limit int) ([]T, error),
	cursor func(T) time.Time,
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		next := before
		for {
			rows, err := page(ctx, next, pageSize)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
			if len(rows) < pageSize {
				return
			}
			next = cursor(rows[len(rows)-1])
		}
	}
}

func strValue(s string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: s}
}

func idValue(id domain.ID) *types.AttributeValueMemberS {
	return strValue(id.String())
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func idAttr(item map[string]types.AttributeValue, key string) (domain.ID, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("attribute %q: %w", key, err)
	}
	return id, nil
}

func tsAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := parseTSKey(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("attribute %q: %w", key, err)
	}
	return ts, nil
}

var errNilAPI = errors.New("repository: api must not be nil")
