package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hongslab/aga-care/backend/internal/model/family"
)

const skDoc = "DOC#"

// dynamodbAPI is the minimal DynamoDB interface required by
// FamilyStore. Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// FamilyStore persists one conversation document per family identifier
// in a DynamoDB table. It implements syncer.DocumentStore.
type FamilyStore struct {
	api       dynamodbAPI
	tableName string
}

// NewFamilyStore creates a store over the given table.
func NewFamilyStore(api dynamodbAPI, tableName string) (*FamilyStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &FamilyStore{api: api, tableName: tableName}, nil
}

func familyPK(familyID string) string {
	return "FAMILY#" + familyID
}

// Load fetches the family document; found=false when it does not exist.
func (s *FamilyStore) Load(ctx context.Context, familyID string) (family.ConversationState, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: familyPK(familyID)},
			"SK": &types.AttributeValueMemberS{Value: skDoc},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return family.ConversationState{}, false, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return family.ConversationState{}, false, nil
	}

	docAttr, ok := out.Item["doc"].(*types.AttributeValueMemberS)
	if !ok {
		return family.ConversationState{}, false, errors.New("repository: Load: doc attribute missing or not a string")
	}

	var state family.ConversationState
	if err := json.Unmarshal([]byte(docAttr.Value), &state); err != nil {
		return family.ConversationState{}, false, fmt.Errorf("repository: Load decode doc: %w", err)
	}
	return state, true, nil
}

// Save overwrites the family document. Last write wins; there is no
// conditional check, matching the field-level merge semantics upstream.
func (s *FamilyStore) Save(ctx context.Context, familyID string, state family.ConversationState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("repository: Save encode doc: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          &types.AttributeValueMemberS{Value: familyPK(familyID)},
			"SK":          &types.AttributeValueMemberS{Value: skDoc},
			"doc":         &types.AttributeValueMemberS{Value: string(doc)},
			"lastUpdated": &types.AttributeValueMemberS{Value: state.LastUpdated},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Save put item: %w", err)
	}
	return nil
}
