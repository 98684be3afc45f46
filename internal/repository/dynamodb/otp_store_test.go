package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-auth/internal/models"
	"admin-auth/internal/repository"
)

// fakeDynamo keeps items in memory keyed by the email attribute.
type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	err    error
	status types.TableStatus
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}, status: types.TableStatusActive}
}

func emailOf(m map[string]types.AttributeValue) string {
	if v, ok := m[keyAttribute].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[emailOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[emailOf(in.Key)]}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, emailOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: f.status,
	}}, nil
}

func TestOTPStore_PutGetOverwrite(t *testing.T) {
	fake := newFakeDynamo()
	store := NewOTPStore(fake, "otp-records")
	ctx := context.Background()

	first := &models.OTPRecord{Identity: "a@x.com", CredentialHash: "h1", ExpiresAt: 100, Algorithm: "bcrypt"}
	require.NoError(t, store.Put(ctx, first, 5*time.Minute))

	second := &models.OTPRecord{Identity: "a@x.com", CredentialHash: "h2", ExpiresAt: 200}
	require.NoError(t, store.Put(ctx, second, 5*time.Minute))
	assert.Len(t, fake.items, 1)

	got, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.CredentialHash)
	assert.Equal(t, int64(200), got.ExpiresAt)
	assert.Empty(t, got.Algorithm)

	// expiresAt must be a number for DynamoDB TTL to act on it
	_, isNumber := fake.items["a@x.com"]["expiresAt"].(*types.AttributeValueMemberN)
	assert.True(t, isNumber)
}

func TestOTPStore_NotFoundAndDelete(t *testing.T) {
	store := NewOTPStore(newFakeDynamo(), "otp-records")
	ctx := context.Background()

	_, err := store.Get(ctx, "missing@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.Put(ctx, &models.OTPRecord{Identity: "a@x.com", ExpiresAt: 1}, time.Minute))
	require.NoError(t, store.Delete(ctx, "a@x.com"))
	_, err = store.Get(ctx, "a@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOTPStore_BackendFailure(t *testing.T) {
	fake := newFakeDynamo()
	fake.err = errors.New("ProvisionedThroughputExceededException")
	store := NewOTPStore(fake, "otp-records")
	ctx := context.Background()

	err := store.Put(ctx, &models.OTPRecord{Identity: "a@x.com"}, time.Minute)
	require.Error(t, err)

	_, err = store.Get(ctx, "a@x.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestOTPStore_HealthCheck(t *testing.T) {
	fake := newFakeDynamo()
	store := NewOTPStore(fake, "otp-records")

	assert.NoError(t, store.HealthCheck(context.Background()))

	fake.status = types.TableStatusCreating
	assert.Error(t, store.HealthCheck(context.Background()))
}

func TestNewClient_Endpoint(t *testing.T) {
	c := NewClient(aws.Config{Region: "us-east-1"}, "http://localhost:8000")
	assert.Equal(t, "http://localhost:8000", aws.ToString(c.Options().BaseEndpoint))
}
