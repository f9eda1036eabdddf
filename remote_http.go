package tiercache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPOption configures an HTTPRemote.
type HTTPOption func(httpConfig) httpConfig

type httpConfig struct {
	client       *http.Client
	header       http.Header
	observer     Observer
	maxBodyBytes int64
}

// defaultHTTPMaxBodyBytes caps response bodies read by HTTPRemote.
const defaultHTTPMaxBodyBytes = 8 << 20

// ErrHTTPBodyTooLarge reports a response body over the configured limit.
var ErrHTTPBodyTooLarge = errors.New("tiercache: http response body too large")

// WithHTTPClient overrides the client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(cfg httpConfig) httpConfig {
		if client != nil {
			cfg.client = client
		}
		return cfg
	}
}

// WithHTTPHeader adds a header sent with every request.
func WithHTTPHeader(name, value string) HTTPOption {
	return func(cfg httpConfig) httpConfig {
		cfg.header = cfg.header.Clone()
		if cfg.header == nil {
			cfg.header = http.Header{}
		}
		cfg.header.Add(name, value)
		return cfg
	}
}

// WithHTTPMaxBodyBytes caps how much of a response body is read. Larger
// bodies fail with ErrHTTPBodyTooLarge. Defaults to 8 MiB.
func WithHTTPMaxBodyBytes(limit int64) HTTPOption {
	return func(cfg httpConfig) httpConfig {
		if limit > 0 {
			cfg.maxBodyBytes = limit
		}
		return cfg
	}
}

// WithHTTPObserver attaches an observer receiving "persist" events.
func WithHTTPObserver(o Observer) HTTPOption {
	return func(cfg httpConfig) httpConfig {
		cfg.observer = o
		return cfg
	}
}

// HTTPRemote is a RemoteStore reading JSON items from {base}/{id}.
type HTTPRemote[T any] struct {
	base string
	key  KeyFunc[T]
	cfg  httpConfig
}

var _ RemoteStore[struct{}] = (*HTTPRemote[struct{}])(nil)

// NewHTTPRemote builds a RemoteStore over a JSON HTTP service.
// @group Tiers
//
// Example: upstream service as the remote tier
//
//	remote := tiercache.NewHTTPRemote[Video]("http://videos.internal/v1/videos", func(v Video) string { return v.ID })
//	_ = remote
func NewHTTPRemote[T any](baseURL string, key KeyFunc[T], opts ...HTTPOption) *HTTPRemote[T] {
	cfg := httpConfig{
		client:       &http.Client{Timeout: 10 * time.Second},
		maxBodyBytes: defaultHTTPMaxBodyBytes,
	}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return &HTTPRemote[T]{
		base: strings.TrimRight(baseURL, "/"),
		key:  key,
		cfg:  cfg,
	}
}

// Fetch performs GET {base}/{id}. 404 is RemoteNotFound; other non-2xx
// statuses are RemoteUnknown.
func (r *HTTPRemote[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	body, err := r.do(ctx, http.MethodGet, id, nil)
	if err != nil {
		return zero, err
	}
	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return zero, NewRemoteError(RemoteUnknown, fmt.Errorf("decode %q: %w", id, err))
	}
	return item, nil
}

// Persist performs PUT {base}/{key(item)} with item as the JSON body and
// returns the item echoed by the server, or item itself on an empty reply.
func (r *HTTPRemote[T]) Persist(ctx context.Context, item T) (T, error) {
	var zero T
	start := time.Now()
	key, err := itemKey(r.key, item)
	if err != nil {
		observe(ctx, r.cfg.observer, "persist", key, false, err, start, TierRemote)
		return zero, NewRemoteError(RemoteUnknown, err)
	}
	payload, err := json.Marshal(item)
	if err != nil {
		err = NewRemoteError(RemoteUnknown, fmt.Errorf("encode %q: %w", key, err))
		observe(ctx, r.cfg.observer, "persist", key, false, err, start, TierRemote)
		return zero, err
	}
	body, err := r.do(ctx, http.MethodPut, key, payload)
	if err != nil {
		observe(ctx, r.cfg.observer, "persist", key, false, err, start, TierRemote)
		return zero, err
	}
	observe(ctx, r.cfg.observer, "persist", key, true, nil, start, TierRemote)
	if len(bytes.TrimSpace(body)) == 0 {
		return item, nil
	}
	var stored T
	if err := json.Unmarshal(body, &stored); err != nil {
		return item, nil
	}
	return stored, nil
}

func (r *HTTPRemote[T]) do(ctx context.Context, method, id string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+"/"+url.PathEscape(id), reqBody)
	if err != nil {
		return nil, NewRemoteError(RemoteUnknown, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, values := range r.cfg.header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := r.cfg.client.Do(req)
	if err != nil {
		return nil, classifyHTTPTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.maxBodyBytes+1))
	if err != nil {
		return nil, classifyHTTPTransport(err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewRemoteError(RemoteNotFound, fmt.Errorf("%s %s: %s", method, req.URL.Path, resp.Status))
	case resp.StatusCode == http.StatusGatewayTimeout, resp.StatusCode == http.StatusRequestTimeout:
		return nil, NewRemoteError(RemoteTimeout, fmt.Errorf("%s %s: %s", method, req.URL.Path, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, NewRemoteError(RemoteUnknown, fmt.Errorf("%s %s: %s", method, req.URL.Path, resp.Status))
	}
	if int64(len(body)) > r.cfg.maxBodyBytes {
		return nil, NewRemoteError(RemoteUnknown, fmt.Errorf("%s %s: %w", method, req.URL.Path, ErrHTTPBodyTooLarge))
	}
	return body, nil
}

// classifyHTTPTransport maps client failures; anything that is not a timeout
// happened before a response was read and counts as a transport failure.
func classifyHTTPTransport(err error) *RemoteError {
	rerr := ClassifyRemote(err)
	if rerr.Kind == RemoteUnknown && !errors.Is(err, context.Canceled) {
		return NewRemoteError(RemoteTransport, err)
	}
	return rerr
}
