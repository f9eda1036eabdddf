package tiercache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

type stubRedisEntry struct {
	value     []byte
	expiresAt time.Time
}

type stubRedisClient struct {
	mu      sync.Mutex
	entries map[string]stubRedisEntry

	getErr error
	setErr error
	delErr error
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{entries: make(map[string]stubRedisEntry)}
}

func (s *stubRedisClient) Get(_ context.Context, key string) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	entry, ok := s.entries[key]
	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		delete(s.entries, key)
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(entry.value), nil)
}

func (s *stubRedisClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return redis.NewStatusResult("", s.setErr)
	}
	body, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.New("stub redis: unsupported value type"))
	}
	entry := stubRedisEntry{value: cloneBytes(body)}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}
	s.entries[key] = entry
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return redis.NewIntResult(0, s.delErr)
	}
	var n int64
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			n++
		}
		delete(s.entries, key)
	}
	return redis.NewIntResult(n, nil)
}

type stubMemcachedClient struct {
	mu    sync.Mutex
	items map[string]*memcache.Item

	getErr error
	setErr error
}

func newStubMemcachedClient() *stubMemcachedClient {
	return &stubMemcachedClient{items: make(map[string]*memcache.Item)}
}

func (s *stubMemcachedClient) Get(key string) (*memcache.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	item, ok := s.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	cp := *item
	cp.Value = cloneBytes(item.Value)
	return &cp, nil
}

func (s *stubMemcachedClient) Set(item *memcache.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	cp := *item
	cp.Value = cloneBytes(item.Value)
	s.items[item.Key] = &cp
	return nil
}

func (s *stubMemcachedClient) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(s.items, key)
	return nil
}

type stubNATSKeyValue struct {
	mu      sync.Mutex
	bucket  string
	rev     uint64
	entries map[string]*stubNATSKeyValueEntry

	getErr    error
	putErr    error
	deleteErr error
}

func newStubNATSKeyValue(bucket string) *stubNATSKeyValue {
	return &stubNATSKeyValue{
		bucket:  bucket,
		entries: make(map[string]*stubNATSKeyValueEntry),
	}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	if entry.op == nats.KeyValueDelete || entry.op == nats.KeyValuePurge {
		return nil, nats.ErrKeyDeleted
	}
	return entry.clone(), nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return 0, s.putErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		value:    cloneBytes(value),
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValuePut,
	}
	return s.rev, nil
}

func (s *stubNATSKeyValue) Delete(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValueDelete,
	}
	return nil
}

func (s *stubNATSKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *stubNATSKeyValue) raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(entry.value), true
}

type stubNATSKeyValueEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
	delta    uint64
	op       nats.KeyValueOp
}

func (e *stubNATSKeyValueEntry) clone() *stubNATSKeyValueEntry {
	cp := *e
	cp.value = cloneBytes(e.value)
	return &cp
}

func (e *stubNATSKeyValueEntry) Bucket() string             { return e.bucket }
func (e *stubNATSKeyValueEntry) Key() string                { return e.key }
func (e *stubNATSKeyValueEntry) Value() []byte              { return cloneBytes(e.value) }
func (e *stubNATSKeyValueEntry) Revision() uint64           { return e.revision }
func (e *stubNATSKeyValueEntry) Created() time.Time         { return e.created }
func (e *stubNATSKeyValueEntry) Delta() uint64              { return e.delta }
func (e *stubNATSKeyValueEntry) Operation() nats.KeyValueOp { return e.op }

type stubDynamoClient struct {
	mu     sync.Mutex
	tables map[string]bool
	items  map[string]map[string]types.AttributeValue

	describeErrs []error
	getErr       error
	creates      int
	ttlAttr      string
}

func newStubDynamoClient() *stubDynamoClient {
	return &stubDynamoClient{
		tables: make(map[string]bool),
		items:  make(map[string]map[string]types.AttributeValue),
	}
}

func (s *stubDynamoClient) key(table string, key map[string]types.AttributeValue) string {
	k, _ := key[dynamoAttrID].(*types.AttributeValueMemberS)
	if k == nil {
		return table + "|"
	}
	return table + "|" + k.Value
}

func (s *stubDynamoClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	item, ok := s.items[s.key(aws.ToString(in.TableName), in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	cp := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if b, ok := v.(*types.AttributeValueMemberB); ok {
			v = &types.AttributeValueMemberB{Value: cloneBytes(b.Value)}
		}
		cp[k] = v
	}
	return &dynamodb.GetItemOutput{Item: cp}, nil
}

func (s *stubDynamoClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[s.key(aws.ToString(in.TableName), in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (s *stubDynamoClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, s.key(aws.ToString(in.TableName), in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (s *stubDynamoClient) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	s.tables[aws.ToString(in.TableName)] = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (s *stubDynamoClient) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.describeErrs) > 0 {
		err := s.describeErrs[0]
		s.describeErrs = s.describeErrs[1:]
		return nil, err
	}
	if !s.tables[aws.ToString(in.TableName)] {
		return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (s *stubDynamoClient) UpdateTimeToLive(_ context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttlAttr = aws.ToString(in.TimeToLiveSpecification.AttributeName)
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func (s *stubDynamoClient) putRaw(table string, item map[string]types.AttributeValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[s.key(table, item)] = item
}
