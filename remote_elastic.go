package tiercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olivere/elastic/v7"
)

// ElasticRemote is a RemoteStore backed by an Elasticsearch index. Items are
// stored as JSON documents whose _id is the item key.
type ElasticRemote[T any] struct {
	client   *elastic.Client
	index    string
	key      KeyFunc[T]
	observer Observer
}

var _ RemoteStore[struct{}] = (*ElasticRemote[struct{}])(nil)

// NewElasticRemote builds a RemoteStore over index.
// @group Tiers
//
// Example: Elasticsearch as the authoritative tier
//
//	client, _ := elastic.NewClient(elastic.SetURL("http://127.0.0.1:9200"))
//	remote := tiercache.NewElasticRemote[Video](client, "videos", func(v Video) string { return v.ID })
//	_ = remote
func NewElasticRemote[T any](client *elastic.Client, index string, key KeyFunc[T]) *ElasticRemote[T] {
	return &ElasticRemote[T]{client: client, index: index, key: key}
}

// WithObserver returns a copy of the store reporting "persist" events to o.
func (r *ElasticRemote[T]) WithObserver(o Observer) *ElasticRemote[T] {
	c := *r
	c.observer = o
	return &c
}

// Fetch loads the document with _id id.
func (r *ElasticRemote[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := r.client.Get().
		Index(r.index).
		Id(id).
		Do(ctx)
	if err != nil {
		return zero, classifyElastic(err)
	}
	if !doc.Found || len(doc.Source) == 0 {
		return zero, NewRemoteError(RemoteNotFound, fmt.Errorf("index %s has no document %q", r.index, id))
	}
	var item T
	if err := json.Unmarshal(doc.Source, &item); err != nil {
		return zero, NewRemoteError(RemoteUnknown, fmt.Errorf("decode %q: %w", id, err))
	}
	return item, nil
}

// Persist indexes item and waits for it to become searchable.
func (r *ElasticRemote[T]) Persist(ctx context.Context, item T) (T, error) {
	var zero T
	start := time.Now()
	key, err := itemKey(r.key, item)
	if err != nil {
		observe(ctx, r.observer, "persist", key, false, err, start, TierRemote)
		return zero, NewRemoteError(RemoteUnknown, err)
	}
	_, err = r.client.Index().
		Index(r.index).
		Id(key).
		BodyJson(item).
		Refresh("wait_for").
		Do(ctx)
	if err != nil {
		rerr := classifyElastic(err)
		observe(ctx, r.observer, "persist", key, false, rerr, start, TierRemote)
		return zero, rerr
	}
	observe(ctx, r.observer, "persist", key, true, nil, start, TierRemote)
	return item, nil
}

func classifyElastic(err error) *RemoteError {
	switch {
	case elastic.IsNotFound(err):
		return NewRemoteError(RemoteNotFound, err)
	case elastic.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return NewRemoteError(RemoteTimeout, err)
	case elastic.IsConnErr(err):
		return NewRemoteError(RemoteTransport, err)
	}
	return ClassifyRemote(err)
}
