package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// tableAPI is the DynamoDB control-plane subset used by EnsureTables.
type tableAPI interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Tables names the three tables backing the stores.
type Tables struct {
	Messages      string
	Conversations string
	Pointers      string
}

type tableDef struct {
	name string
	pk   string
	sk   string
}

func (t Tables) defs() []tableDef {
	return []tableDef{
		{name: t.Messages, pk: attrConversationID, sk: attrMessageTS},
		{name: t.Conversations, pk: attrUserID, sk: attrLastMessageTS},
		{name: t.Pointers, pk: attrUserID, sk: attrConversationID},
	}
}

// EnsureTables creates any missing table and waits up to maxWait for each to
// become ACTIVE.
func EnsureTables(ctx context.Context, api tableAPI, tables Tables, maxWait time.Duration) error {
	if api == nil {
		return errNilAPI
	}
	defs := tables.defs()
	for _, def := range defs {
		if err := checkTable(def.name, def.pk+"/"+def.sk); err != nil {
			return err
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(api)
	for _, def := range defs {
		created, err := ensureTable(ctx, api, def)
		if err != nil {
			return err
		}
		if created {
			slog.InfoContext(ctx, "created table", "table", def.name)
		}
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.name)}, maxWait); err != nil {
			return fmt.Errorf("repository: wait for table %q: %w", def.name, err)
		}
	}
	return nil
}

func ensureTable(ctx context.Context, api tableAPI, def tableDef) (bool, error) {
	_, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.name)})
	if err == nil {
		return false, nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return false, fmt.Errorf("repository: describe table %q: %w", def.name, err)
	}

	_, err = api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(def.name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(def.pk), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(def.sk), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(def.pk), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(def.sk), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return false, nil
		}
		return false, fmt.Errorf("repository: create table %q: %w", def.name, err)
	}
	return true, nil
}
