package ddb

import (
	"bedrock/internal/types"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ConfigStore implements ports.ConfigStore on a single DynamoDB table. Every
// spec is one item under PK CLIENT#<kind>, SK SPEC#<id>.
type ConfigStore struct {
	table string
	cli   API
}

type specItem struct {
	PK  string               `dynamodbav:"PK"`
	SK  string               `dynamodbav:"SK"`
	ID  string               `dynamodbav:"id"`
	SQL *types.SQLClientSpec `dynamodbav:"sql,omitempty"`
	KV  *types.KVClientSpec  `dynamodbav:"kv,omitempty"`
}

// NewConfigStore creates the table when it does not exist yet.
func NewConfigStore(ctx context.Context, table string, cli API) (*ConfigStore, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, err
	}
	return &ConfigStore{table: table, cli: cli}, nil
}

func (s *ConfigStore) GetSQLSpec(ctx context.Context, id string) (types.SQLClientSpec, error) {
	item, err := s.get(ctx, types.ClientKindSQL, id)
	if err != nil {
		return types.SQLClientSpec{}, err
	}
	if item.SQL == nil {
		return types.SQLClientSpec{}, fmt.Errorf("invalid stored sql spec [%s]: missing body", id)
	}
	return *item.SQL, nil
}

func (s *ConfigStore) GetKVSpec(ctx context.Context, id string) (types.KVClientSpec, error) {
	item, err := s.get(ctx, types.ClientKindKV, id)
	if err != nil {
		return types.KVClientSpec{}, err
	}
	if item.KV == nil {
		return types.KVClientSpec{}, fmt.Errorf("invalid stored kv spec [%s]: missing body", id)
	}
	return *item.KV, nil
}

func (s *ConfigStore) PutSQLSpec(ctx context.Context, id string, spec types.SQLClientSpec) error {
	if _, err := spec.Build(); err != nil {
		return err
	}
	return s.put(ctx, specItem{PK: pkClients(types.ClientKindSQL), SK: skSpec(id), ID: id, SQL: &spec})
}

func (s *ConfigStore) PutKVSpec(ctx context.Context, id string, spec types.KVClientSpec) error {
	if _, err := spec.Build(); err != nil {
		return err
	}
	return s.put(ctx, specItem{PK: pkClients(types.ClientKindKV), SK: skSpec(id), ID: id, KV: &spec})
}

// ListClients returns the stored ids of one kind, sorted.
func (s *ConfigStore) ListClients(ctx context.Context, kind string) ([]string, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	p := dynamodb.NewQueryPaginator(s.cli, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkClients(kind)},
		},
		ProjectionExpression: aws.String("id"),
		ConsistentRead:       aws.Bool(true),
	})
	ids := []string{}
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			var row struct {
				ID string `dynamodbav:"id"`
			}
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, err
			}
			if row.ID != "" {
				ids = append(ids, row.ID)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ConfigStore) DeleteClientSpec(ctx context.Context, kind, id string) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key:       key(kind, id),
	})
	return err
}

// ClearAll drops and recreates the table.
func (s *ConfigStore) ClearAll(ctx context.Context) error {
	_, err := s.cli.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: &s.table,
	})
	if err != nil {
		return err
	}
	// wait until the table is deleted
	err = dynamodb.NewTableNotExistsWaiter(s.cli).Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	}, 30*time.Second)
	if err != nil {
		return err
	}
	return createTableIfNotExists(ctx, s.cli, s.table)
}

func (s *ConfigStore) get(ctx context.Context, kind, id string) (specItem, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            key(kind, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return specItem{}, err
	}
	if out.Item == nil {
		return specItem{}, &types.UnknownClientError{Kind: kind, ID: id}
	}
	var item specItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return specItem{}, fmt.Errorf("invalid stored %s spec [%s]: %w", kind, id, err)
	}
	return item, nil
}

func (s *ConfigStore) put(ctx context.Context, item specItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      av,
	})
	return err
}

func key(kind, id string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkClients(kind)},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skSpec(id)},
	}
}

func checkKind(kind string) error {
	switch kind {
	case types.ClientKindSQL, types.ClientKindKV:
		return nil
	}
	return fmt.Errorf("unknown client kind %q", kind)
}
