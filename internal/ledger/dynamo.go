package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/dmkorneev/go-gift-relay/internal/awsx"
)

// DynamoStore is a DynamoDB-backed ledger for multi-instance deployments.
// Table schema: partition key user_id (S), attributes name (S),
// operations (N), updated_at (S).
type DynamoStore struct {
	client    awsx.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoStore returns a ledger bound to the given table.
func NewDynamoStore(client awsx.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// dynamoRecord is the item shape persisted in the ledger table.
type dynamoRecord struct {
	UserID     string `dynamodbav:"user_id"` // PK
	Name       string `dynamodbav:"name,omitempty"`
	Operations int    `dynamodbav:"operations"`
	UpdatedAt  string `dynamodbav:"updated_at,omitempty"`
}

// Get fetches a user's record. Returns exists=false when the item is absent.
func (s *DynamoStore) Get(ctx context.Context, userID int64) (Record, bool, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userKey(userID)},
		},
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return Record{}, false, nil
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: unmarshal item: %v", ErrCorrupt, err)
	}
	return Record{Name: rec.Name, Operations: rec.Operations}, true, nil
}

// UpsertName creates the record with count 0 when absent (conditional put),
// otherwise updates the name only when a non-empty name is supplied.
func (s *DynamoStore) UpsertName(ctx context.Context, userID int64, name string) error {
	now := s.nowFunc()
	rec := dynamoRecord{
		UserID:     userKey(userID),
		Name:       name,
		Operations: 0,
		UpdatedAt:  now.Format(time.RFC3339),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(user_id)"),
	})
	if err == nil {
		return nil
	}
	if !isConditionalCheckFailed(err) {
		return fmt.Errorf("put item: %w", err)
	}

	// record exists; touch the name only when one was supplied
	if name == "" {
		return nil
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userKey(userID)},
		},
		UpdateExpression:         awsString("SET #n = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#n": "name"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n":  &types.AttributeValueMemberS{Value: name},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("update name: %w", err)
	}
	return nil
}

// IncrementOperations atomically bumps the counter, creating the item when
// absent. The write is synchronous; DynamoDB acks only after the item is
// durable, so the returned count is never ahead of persistence.
func (s *DynamoStore) IncrementOperations(ctx context.Context, userID int64, name string) (int, error) {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userKey(userID)},
		},
		UpdateExpression:         awsString("SET operations = if_not_exists(operations, :zero) + :inc, #n = if_not_exists(#n, :n), updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#n": "name"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: "1"},
			":n":    &types.AttributeValueMemberS{Value: name},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueAllNew,
	}
	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("increment operations: %w", err)
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return 0, fmt.Errorf("unmarshal updated item: %w", err)
	}
	return rec.Operations, nil
}

func isConditionalCheckFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
