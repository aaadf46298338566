package mocks

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/parlance-ai/parlance/internal/ports"
)

// MockCache is a mock implementation of the ports.Cache interface. The
// default behavior is an in-memory map with no wait semantics; individual
// calls can be overridden through the function fields.
type MockCache struct {
	mu              sync.Mutex
	data            map[string][]byte
	TryRetrieveFunc func(ctx context.Context, key string, maxWait time.Duration) (*ports.CacheResult, error)
	StoreFunc       func(ctx context.Context, key string, value []byte, ttl time.Duration, overwrite bool) error
	DeleteFunc      func(ctx context.Context, key string) error
	PingFunc        func(ctx context.Context) error
	CloseFunc       func() error
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) TryRetrieve(ctx context.Context, key string, maxWait time.Duration) (*ports.CacheResult, error) {
	if m.TryRetrieveFunc != nil {
		return m.TryRetrieveFunc(ctx, key, maxWait)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.data[key]; ok {
		return &ports.CacheResult{Value: val, Latency: time.Millisecond}, nil
	}
	return nil, nil
}

func (m *MockCache) Store(ctx context.Context, key string, value []byte, ttl time.Duration, overwrite bool) error {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, key, value, ttl, overwrite)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !overwrite {
		if _, ok := m.data[key]; ok {
			return nil
		}
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCache) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockCache) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Keys returns the stored keys, for assertions.
func (m *MockCache) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// mockStream is one stored stream in a MockStreamingAudioCache.
type mockStream struct {
	codec  string
	params string
	buf    bytes.Buffer
	closed bool
}

type mockStreamWriter struct {
	cache *MockStreamingAudioCache
	key   string
}

func (w *mockStreamWriter) Write(p []byte) (int, error) {
	w.cache.mu.Lock()
	defer w.cache.mu.Unlock()
	return w.cache.streams[w.key].buf.Write(p)
}

func (w *mockStreamWriter) Close() error {
	w.cache.mu.Lock()
	defer w.cache.mu.Unlock()
	w.cache.streams[w.key].closed = true
	return nil
}

// MockStreamingAudioCache collects written streams in memory. Reads return
// only fully written streams.
type MockStreamingAudioCache struct {
	mu      sync.Mutex
	streams map[string]*mockStream

	CreateWriteStreamFunc func(ctx context.Context, key, codec, codecParams string) (ports.AudioWriteStream, error)
	OpenReadStreamFunc    func(ctx context.Context, key string, maxWait time.Duration) (*ports.AudioReadStream, error)
}

func NewMockStreamingAudioCache() *MockStreamingAudioCache {
	return &MockStreamingAudioCache{
		streams: make(map[string]*mockStream),
	}
}

func (m *MockStreamingAudioCache) CreateWriteStream(ctx context.Context, key, codec, codecParams string) (ports.AudioWriteStream, error) {
	if m.CreateWriteStreamFunc != nil {
		return m.CreateWriteStreamFunc(ctx, key, codec, codecParams)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[key] = &mockStream{codec: codec, params: codecParams}
	return &mockStreamWriter{cache: m, key: key}, nil
}

func (m *MockStreamingAudioCache) OpenReadStream(ctx context.Context, key string, maxWait time.Duration) (*ports.AudioReadStream, error) {
	if m.OpenReadStreamFunc != nil {
		return m.OpenReadStreamFunc(ctx, key, maxWait)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[key]
	if !ok || !s.closed {
		return nil, nil
	}
	return &ports.AudioReadStream{
		Codec:       s.codec,
		CodecParams: s.params,
		Reader:      io.NopCloser(bytes.NewReader(s.buf.Bytes())),
	}, nil
}

func (m *MockStreamingAudioCache) Close() error { return nil }

// StreamBytes returns what was written for key, and whether the stream was
// completed, for assertions.
func (m *MockStreamingAudioCache) StreamBytes(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[key]
	if !ok {
		return nil, false
	}
	return s.buf.Bytes(), s.closed
}
