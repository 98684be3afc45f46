package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"admin-auth/internal/models"
	"admin-auth/internal/repository"
	"admin-auth/internal/util"
)

const keyAttribute = "email"

// API is the subset of the DynamoDB client the store uses.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// OTPStore keeps one item per email. Table TTL must be enabled on the
// expiresAt attribute; eviction there is lazy, so readers still check expiry.
type OTPStore struct {
	client API
	table  string
}

func NewOTPStore(client API, table string) *OTPStore {
	return &OTPStore{client: client, table: table}
}

// NewClient builds a DynamoDB client, optionally pointed at a local endpoint.
func NewClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func (s *OTPStore) Put(ctx context.Context, record *models.OTPRecord, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal otp record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		util.Error("Failed to put OTP record",
			util.Identity(record.Identity),
			util.String("table", s.table),
			util.ErrorField(err))
		return fmt.Errorf("failed to put otp record: %w", err)
	}

	util.Debug("OTP record stored",
		util.Identity(record.Identity),
		util.Duration("ttl", ttl))
	return nil
}

func (s *OTPStore) Get(ctx context.Context, identity string) (*models.OTPRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyOf(identity),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		util.Error("Failed to get OTP record",
			util.Identity(identity),
			util.String("table", s.table),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to get otp record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, repository.ErrNotFound
	}

	var record models.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal otp record: %w", err)
	}
	return &record, nil
}

func (s *OTPStore) Delete(ctx context.Context, identity string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyOf(identity),
	})
	if err != nil {
		return fmt.Errorf("failed to delete otp record: %w", err)
	}
	return nil
}

func (s *OTPStore) HealthCheck(ctx context.Context) error {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return fmt.Errorf("dynamodb describe table failed: %w", err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive {
		return fmt.Errorf("dynamodb table %s is %s", s.table, out.Table.TableStatus)
	}
	return nil
}

func keyOf(identity string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttribute: &types.AttributeValueMemberS{Value: identity},
	}
}
