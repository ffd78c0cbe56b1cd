package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	testMessagesTable      = "messages_by_conversation"
	testConversationsTable = "conversations_by_user"
	testPointersTable      = "conversation_pointers_by_user"
)

type memTable struct {
	pk, sk string
	rows   map[string]map[string]map[string]types.AttributeValue
}

// memDynamo is an in-memory stand-in for the parts of DynamoDB the stores use.
// It understands exactly the key, filter and condition expressions this
// package emits.
type memDynamo struct {
	mu     sync.Mutex
	tables map[string]*memTable

	// pageSize, when positive, caps the items returned per Query call to
	// simulate DynamoDB's 1 MB response pages.
	pageSize int

	getErr   error
	putErr   error
	queryErr error
	txErr    error

	// beforeTx runs inside TransactWriteItems before conditions are checked.
	beforeTx func(m *memDynamo)

	queries     int
	lastQueryIn *dynamodb.QueryInput
	lastPutIn   *dynamodb.PutItemInput
	lastTxIn    *dynamodb.TransactWriteItemsInput
}

func newMemDynamo() *memDynamo {
	return &memDynamo{tables: map[string]*memTable{
		testMessagesTable:      {pk: attrConversationID, sk: attrMessageTS, rows: map[string]map[string]map[string]types.AttributeValue{}},
		testConversationsTable: {pk: attrUserID, sk: attrLastMessageTS, rows: map[string]map[string]map[string]types.AttributeValue{}},
		testPointersTable:      {pk: attrUserID, sk: attrConversationID, rows: map[string]map[string]map[string]types.AttributeValue{}},
	}}
}

func sval(v types.AttributeValue) string {
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return s.Value
}

func (m *memDynamo) table(name *string) (*memTable, error) {
	t, ok := m.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("no table " + aws.ToString(name))}
	}
	return t, nil
}

func (t *memTable) get(key map[string]types.AttributeValue) map[string]types.AttributeValue {
	return t.rows[sval(key[t.pk])][sval(key[t.sk])]
}

func (t *memTable) put(item map[string]types.AttributeValue) {
	pk, sk := sval(item[t.pk]), sval(item[t.sk])
	if t.rows[pk] == nil {
		t.rows[pk] = map[string]map[string]types.AttributeValue{}
	}
	cp := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		cp[k] = v
	}
	t.rows[pk][sk] = cp
}

func (t *memTable) delete(key map[string]types.AttributeValue) {
	delete(t.rows[sval(key[t.pk])], sval(key[t.sk]))
}

func (t *memTable) count() int {
	n := 0
	for _, p := range t.rows {
		n += len(p)
	}
	return n
}

func (m *memDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: t.get(in.Key)}, nil
}

func (m *memDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPutIn = in
	if m.putErr != nil {
		return nil, m.putErr
	}
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	t.put(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	m.lastQueryIn = in
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}

	partition := t.rows[sval(in.ExpressionAttributeValues[":pk"])]
	keys := make([]string, 0, len(partition))
	for sk := range partition {
		keys = append(keys, sk)
	}
	sort.Strings(keys)
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	}
	if before, ok := in.ExpressionAttributeValues[":before"]; ok {
		filtered := keys[:0]
		for _, sk := range keys {
			if sk < sval(before) {
				filtered = append(filtered, sk)
			}
		}
		keys = filtered
	}
	if in.ExclusiveStartKey != nil {
		start := sval(in.ExclusiveStartKey[t.sk])
		for i, sk := range keys {
			if sk == start {
				keys = keys[i+1:]
				break
			}
		}
	}

	n := len(keys)
	if in.Limit != nil && int(*in.Limit) < n {
		n = int(*in.Limit)
	}
	if m.pageSize > 0 && m.pageSize < n {
		n = m.pageSize
	}

	out := &dynamodb.QueryOutput{}
	for _, sk := range keys[:n] {
		item := partition[sk]
		if in.FilterExpression != nil {
			attr := in.ExpressionAttributeNames["#peer"]
			if sval(item[attr]) != sval(in.ExpressionAttributeValues[":peer"]) {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	if n < len(keys) {
		last := partition[keys[n-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{t.pk: last[t.pk], t.sk: last[t.sk]}
	}
	return out, nil
}

func (m *memDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTxIn = in
	if m.txErr != nil {
		return nil, m.txErr
	}
	if m.beforeTx != nil {
		m.beforeTx(m)
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, w := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		var (
			table  *string
			key    map[string]types.AttributeValue
			cond   *string
			names  map[string]string
			values map[string]types.AttributeValue
		)
		switch {
		case w.Put != nil:
			table, key, cond = w.Put.TableName, w.Put.Item, w.Put.ConditionExpression
			names, values = w.Put.ExpressionAttributeNames, w.Put.ExpressionAttributeValues
		case w.Delete != nil:
			table, key, cond = w.Delete.TableName, w.Delete.Key, w.Delete.ConditionExpression
			names, values = w.Delete.ExpressionAttributeNames, w.Delete.ExpressionAttributeValues
		}
		if cond == nil {
			continue
		}
		t, err := m.table(table)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(*cond, names, values, t.get(key))
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: aws.String(conditionalCheckFailed)}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range in.TransactItems {
		switch {
		case w.Put != nil:
			t, _ := m.table(w.Put.TableName)
			t.put(w.Put.Item)
		case w.Delete != nil:
			t, _ := m.table(w.Delete.TableName)
			t.delete(w.Delete.Key)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func evalCondition(expr string, names map[string]string, values map[string]types.AttributeValue, existing map[string]types.AttributeValue) (bool, error) {
	switch expr {
	case "attribute_not_exists(#pk)":
		return existing == nil, nil
	case "#ts = :prev":
		if existing == nil {
			return false, nil
		}
		return sval(existing[names["#ts"]]) == sval(values[":prev"]), nil
	case "#conv = :conv":
		if existing == nil {
			return false, nil
		}
		return sval(existing[names["#conv"]]) == sval(values[":conv"]), nil
	default:
		return false, fmt.Errorf("memDynamo: unsupported condition %q", expr)
	}
}
