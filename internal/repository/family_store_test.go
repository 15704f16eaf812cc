package repository

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/hongslab/aga-care/backend/internal/model/family"
)

// fakeDynamo keeps items in a map keyed by PK|SK.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestNewFamilyStoreValidation(t *testing.T) {
	_, err := NewFamilyStore(nil, "families")
	require.Error(t, err)

	_, err = NewFamilyStore(newFakeDynamo(), "  ")
	require.Error(t, err)
}

func TestLoadMissingDocument(t *testing.T) {
	store, err := NewFamilyStore(newFakeDynamo(), "families")
	require.NoError(t, err)

	_, found, err := store.Load(context.Background(), "test_fam")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store, err := NewFamilyStore(newFakeDynamo(), "families")
	require.NoError(t, err)
	ctx := context.Background()

	want := family.ConversationState{
		BabyProfile: family.BabyProfile{Name: "아기", BirthDate: "2026-03-01", FeedingType: family.FeedingMixed},
		Messages: []family.Message{
			{Role: family.RoleAssistant, Text: "환영해요"},
			{Role: family.RoleUser, Text: "수유텀이 궁금해요"},
			{Role: family.RoleAssistant, Text: "오류", IsError: true},
		},
		LastUpdated: "2026-03-10T09:00:00Z",
	}

	require.NoError(t, store.Save(ctx, "test_fam", want))

	got, found, err := store.Load(ctx, "test_fam")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want, got)
}

func TestDocumentsAreIsolatedPerFamily(t *testing.T) {
	store, err := NewFamilyStore(newFakeDynamo(), "families")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "fam_a", family.ConversationState{
		Messages: []family.Message{{Role: family.RoleUser, Text: "a"}},
	}))

	_, found, err := store.Load(ctx, "fam_b")
	require.NoError(t, err)
	require.False(t, found)
}
