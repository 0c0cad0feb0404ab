package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	appconfig "github.com/edustack/academy-api/internal/config"
)

// dynamoRecord is the table shape: composite key on collection and key,
// document body carried as a JSON string.
type dynamoRecord struct {
	Collection string `dynamodbav:"collection"`
	Key        string `dynamodbav:"key"`
	Data       string `dynamodbav:"data"`
	UpdatedAt  string `dynamodbav:"updated_at"`
}

// DynamoProvider stores documents in a DynamoDB table.
type DynamoProvider struct {
	cfg    appconfig.StoreConfig
	client *dynamodb.Client
	table  string
}

// NewDynamo returns an uninitialized DynamoDB provider.
func NewDynamo(cfg appconfig.StoreConfig) *DynamoProvider {
	return &DynamoProvider{cfg: cfg, table: cfg.DynamoDBTable}
}

// Name implements Provider.
func (p *DynamoProvider) Name() string { return "dynamodb" }

// Initialize builds the client and checks the table exists.
func (p *DynamoProvider) Initialize(ctx context.Context) error {
	if p.table == "" {
		return fmt.Errorf("dynamodb table not configured")
	}

	var awsCfg aws.Config
	var err error
	if profile := p.cfg.GetAWSProfile(); profile != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(p.cfg.Region),
			config.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(p.cfg.Region),
		)
	}
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	p.client = dynamodb.NewFromConfig(awsCfg)

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := p.client.DescribeTable(probeCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.table),
	}); err != nil {
		return fmt.Errorf("describing table %s: %w", p.table, err)
	}
	return nil
}

// Put implements Provider.
func (p *DynamoProvider) Put(ctx context.Context, doc Document) error {
	if err := ValidateRef(doc.Collection, doc.Key); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(dynamoRecord{
		Collection: doc.Collection,
		Key:        doc.Key,
		Data:       string(doc.Data),
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	if _, err := p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("putting document %s/%s: %w", doc.Collection, doc.Key, err)
	}
	return nil
}

// Get implements Provider.
func (p *DynamoProvider) Get(ctx context.Context, collection, key string) (*Document, error) {
	if err := ValidateRef(collection, key); err != nil {
		return nil, err
	}
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(p.table),
		Key:       recordKey(collection, key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching document %s/%s: %w", collection, key, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling document %s/%s: %w", collection, key, err)
	}
	return &Document{Collection: rec.Collection, Key: rec.Key, Data: []byte(rec.Data)}, nil
}

// Delete implements Provider. Deleting an absent document is not an error.
func (p *DynamoProvider) Delete(ctx context.Context, collection, key string) error {
	if err := ValidateRef(collection, key); err != nil {
		return err
	}
	if _, err := p.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(p.table),
		Key:       recordKey(collection, key),
	}); err != nil {
		return fmt.Errorf("deleting document %s/%s: %w", collection, key, err)
	}
	return nil
}

// Probe implements Provider.
func (p *DynamoProvider) Probe(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("dynamodb client not initialized")
	}
	_, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(p.table),
	})
	return err
}

// Close implements Provider.
func (p *DynamoProvider) Close() error { return nil }

func recordKey(collection, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"collection": &types.AttributeValueMemberS{Value: collection},
		"key":        &types.AttributeValueMemberS{Value: key},
	}
}
