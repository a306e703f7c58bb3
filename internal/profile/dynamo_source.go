package profile

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoSource loads business profiles from a DynamoDB table keyed on
// businessId.
type DynamoSource struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoSource builds a source backed by the provided DynamoDB client.
func NewDynamoSource(client dynamoAPI, tableName string) *DynamoSource {
	if client == nil {
		panic("profile: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("profile: table name cannot be empty")
	}
	return &DynamoSource{client: client, tableName: tableName}
}

// FetchProfile implements Source.
func (s *DynamoSource) FetchProfile(ctx context.Context, businessID string) (*Profile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"businessId": &types.AttributeValueMemberS{Value: businessID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("profile: get business: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var prof Profile
	if err := attributevalue.UnmarshalMap(out.Item, &prof); err != nil {
		return nil, fmt.Errorf("profile: unmarshal business: %w", err)
	}
	return &prof, nil
}
