package tiercache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
)

// DynamoAPI captures the subset of DynamoDB client methods used by the backend.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// Item attributes. dynamoAttrTTL holds epoch seconds for DynamoDB's native
// expiry sweeper; dynamoAttrExpires keeps millisecond precision for reads.
const (
	dynamoAttrID      = "id"
	dynamoAttrBody    = "body"
	dynamoAttrExpires = "expires_at_ms"
	dynamoAttrTTL     = "ttl"

	dynamoTableAttempts = 20
)

var (
	errDynamoMissingBody = errors.New("tiercache: dynamodb item has no binary body")

	dynamoEnsureRetryDelay = 150 * time.Millisecond
)

type dynamoBackend struct {
	client     DynamoAPI
	table      *string
	prefix     string
	defaultTTL time.Duration
}

func newDynamoBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	client := cfg.DynamoClient
	if client == nil {
		c, err := newDynamoClient(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		client = c
	}
	table := cfg.DynamoTable
	if table == "" {
		table = defaultDynamoTable
	}
	if err := ensureDynamoTable(ctx, client, table); err != nil {
		return nil, err
	}
	b := &dynamoBackend{
		client:     client,
		table:      aws.String(table),
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
	}
	if b.defaultTTL <= 0 {
		b.defaultTTL = defaultBackendTTL
	}
	return b, nil
}

// newDynamoClient loads the ambient AWS config. A custom endpoint such as
// DynamoDB Local gets static placeholder credentials.
func newDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (b *dynamoBackend) Driver() Driver { return DriverDynamo }

func (b *dynamoBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      b.table,
		Key:            b.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, err
	}
	if out.Item == nil {
		return nil, false, nil
	}
	entry, err := parseDynamoItem(out.Item)
	if err != nil {
		return nil, false, err
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		// The native sweeper runs lazily; drop the item now so it is not read again.
		if err := b.Delete(ctx, key); err != nil {
			glog.Warningf("tiercache: delete expired dynamodb item %q: %v", key, err)
		}
		return nil, false, nil
	}
	return entry.body, true, nil
}

func (b *dynamoBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	entry := dynamoEntry{
		id:        b.cacheKey(key),
		body:      cloneBytes(value),
		expiresAt: time.Now().Add(ttl),
	}
	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: b.table,
		Item:      entry.item(),
	})
	return err
}

func (b *dynamoBackend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: b.table,
		Key:       b.key(key),
	})
	return err
}

func (b *dynamoBackend) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoAttrID: &types.AttributeValueMemberS{Value: b.cacheKey(key)},
	}
}

func (b *dynamoBackend) cacheKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

type dynamoEntry struct {
	id        string
	body      []byte
	expiresAt time.Time
}

func (e dynamoEntry) item() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoAttrID:      &types.AttributeValueMemberS{Value: e.id},
		dynamoAttrBody:    &types.AttributeValueMemberB{Value: e.body},
		dynamoAttrExpires: &types.AttributeValueMemberN{Value: strconv.FormatInt(e.expiresAt.UnixMilli(), 10)},
		dynamoAttrTTL:     &types.AttributeValueMemberN{Value: strconv.FormatInt(e.expiresAt.Unix(), 10)},
	}
}

// parseDynamoItem reads an item written by dynamoEntry.item. A missing or
// malformed expiry is treated as no expiry.
func parseDynamoItem(item map[string]types.AttributeValue) (dynamoEntry, error) {
	var entry dynamoEntry
	if id, ok := item[dynamoAttrID].(*types.AttributeValueMemberS); ok {
		entry.id = id.Value
	}
	body, ok := item[dynamoAttrBody].(*types.AttributeValueMemberB)
	if !ok {
		return dynamoEntry{}, errDynamoMissingBody
	}
	entry.body = cloneBytes(body.Value)
	if exp, ok := item[dynamoAttrExpires].(*types.AttributeValueMemberN); ok {
		if ms, err := strconv.ParseInt(exp.Value, 10, 64); err == nil {
			entry.expiresAt = time.UnixMilli(ms)
		}
	}
	return entry, nil
}

// ensureDynamoTable creates table when it does not exist, backing off while
// the endpoint is still coming up.
func ensureDynamoTable(ctx context.Context, client DynamoAPI, table string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = dynamoEnsureRetryDelay
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, dynamoTableAttempts-1), ctx)

	err := backoff.Retry(func() error {
		err := ensureDynamoTableOnce(ctx, client, table)
		if err != nil && !dynamoRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, retry)
	if err != nil {
		return fmt.Errorf("ensure dynamo table %q: %w", table, err)
	}
	return nil
}

func ensureDynamoTableOnce(ctx context.Context, client DynamoAPI, table string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(dynamoAttrID), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(dynamoAttrID), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(dynamoAttrTTL),
			Enabled:       aws.Bool(true),
		},
	}); err != nil {
		glog.Warningf("tiercache: enable ttl on dynamodb table %q: %v", table, err)
	}
	return nil
}

func dynamoRetryable(err error) bool {
	var sendErr *smithyhttp.RequestSendError
	var netErr net.Error
	return errors.As(err, &sendErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
