package ports

import (
	"context"
	"io"
	"time"
)

// CacheResult is the outcome of a successful bounded-wait retrieval.
type CacheResult struct {
	Value []byte
	// Latency is how long the read waited, for instrumentation.
	Latency time.Duration
}

// Cache is the shared key-value collaborator behind the client-context
// store, the blob cache, and the cached-action store. Implementations are
// threadsafe; no locking is layered on top of them.
//
// TryRetrieve blocks up to maxWait for the key to appear and returns
// (nil, nil) on a miss; only transport-level failures surface as errors.
type Cache interface {
	TryRetrieve(ctx context.Context, key string, maxWait time.Duration) (*CacheResult, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration, overwrite bool) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// AudioReadStream is a single-use readable audio stream plus the codec
// needed to decode it.
type AudioReadStream struct {
	Codec       string
	CodecParams string
	Reader      io.ReadCloser
}

// AudioWriteStream accepts encoded audio chunks for a promised key.
// Closing it marks the stream complete for readers.
type AudioWriteStream interface {
	io.WriteCloser
}

// StreamingAudioCache stores write-once audio streams that become readable
// while still being written.
type StreamingAudioCache interface {
	// CreateWriteStream registers key and returns the sink the encoder
	// relay drains into.
	CreateWriteStream(ctx context.Context, key, codec, codecParams string) (AudioWriteStream, error)
	// OpenReadStream blocks up to maxWait for the key; a miss returns
	// (nil, nil).
	OpenReadStream(ctx context.Context, key string, maxWait time.Duration) (*AudioReadStream, error)
	Close() error
}
