package app

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB is the app_manager.driver=dynamodb backend, grounded on the
// aws-sdk-go-v2 family vendored by the pack's trading-bot example
// (config, credentials, service/s3) — service/dynamodb is the natural
// sibling service package within that same SDK.
type DynamoDB struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoDB loads the default AWS config (region/credentials resolved
// the usual SDK way: env, shared config, IAM role) and targets table.
func NewDynamoDB(ctx context.Context, table string) (*DynamoDB, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: dynamodb config: %w", err)
	}
	return &DynamoDB{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

func (d *DynamoDB) ByKey(ctx context.Context, key string) (App, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &d.table,
		IndexName:              strPtr("key-index"),
		KeyConditionExpression: strPtr("#k = :key"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":key": &types.AttributeValueMemberS{Value: key},
		},
		Limit: int32Ptr(1),
	})
	if err != nil {
		return App{}, fmt.Errorf("app: dynamodb query by key: %w", err)
	}
	if len(out.Items) == 0 {
		return App{}, ErrNotFound
	}
	return itemToApp(out.Items[0])
}

func (d *DynamoDB) ByID(ctx context.Context, id string) (App, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &d.table,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return App{}, fmt.Errorf("app: dynamodb get item: %w", err)
	}
	if out.Item == nil {
		return App{}, ErrNotFound
	}
	return itemToApp(out.Item)
}

func itemToApp(item map[string]types.AttributeValue) (App, error) {
	var a App
	if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
		a.ID = v.Value
	}
	if v, ok := item["key"].(*types.AttributeValueMemberS); ok {
		a.Key = v.Value
	}
	if v, ok := item["secret"].(*types.AttributeValueMemberS); ok {
		a.Secret = v.Value
	}
	if v, ok := item["enabled"].(*types.AttributeValueMemberBOOL); ok {
		a.Enabled = v.Value
	}
	if v, ok := item["max_connections"].(*types.AttributeValueMemberN); ok {
		fmt.Sscanf(v.Value, "%d", &a.MaxConnections)
	}
	if v, ok := item["max_client_events_per_second"].(*types.AttributeValueMemberN); ok {
		fmt.Sscanf(v.Value, "%d", &a.MaxClientEventsPerSecond)
	}
	if v, ok := item["max_channels_per_connection"].(*types.AttributeValueMemberN); ok {
		fmt.Sscanf(v.Value, "%d", &a.MaxChannelsPerConnection)
	}
	if v, ok := item["enable_client_messages"].(*types.AttributeValueMemberBOOL); ok {
		a.EnableClientMessages = v.Value
	}
	if v, ok := item["max_presence_members_per_channel"].(*types.AttributeValueMemberN); ok {
		fmt.Sscanf(v.Value, "%d", &a.MaxPresenceMembersPerChannel)
	}
	if v, ok := item["max_presence_member_size_kb"].(*types.AttributeValueMemberN); ok {
		fmt.Sscanf(v.Value, "%d", &a.MaxPresenceMemberSizeKB)
	}
	if v, ok := item["max_backend_events_per_second"].(*types.AttributeValueMemberN); ok {
		fmt.Sscanf(v.Value, "%d", &a.MaxBackendEventsPerSecond)
	}
	if v, ok := item["max_read_requests_per_second"].(*types.AttributeValueMemberN); ok {
		fmt.Sscanf(v.Value, "%d", &a.MaxReadRequestsPerSecond)
	}
	if v, ok := item["webhooks"].(*types.AttributeValueMemberS); ok && v.Value != "" {
		if err := json.Unmarshal([]byte(v.Value), &a.Webhooks); err != nil {
			return App{}, fmt.Errorf("app: dynamodb webhooks decode: %w", err)
		}
	}
	return a, nil
}

func strPtr(s string) *string { return &s }
func int32Ptr(n int32) *int32 { return &n }

func (d *DynamoDB) Close() error { return nil }
