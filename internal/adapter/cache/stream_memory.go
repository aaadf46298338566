package cache

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/ports"
)

// memoryStream is one write-once audio stream. Readers block on the
// condition variable until bytes arrive or the writer closes.
type memoryStream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	codec  string
	params string
	data   []byte
	closed bool
}

func newMemoryStream(codec, params string) *memoryStream {
	s := &memoryStream{codec: codec, params: params}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// streamWriter is the encoder-relay side of a memoryStream.
type streamWriter struct {
	s *memoryStream
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.closed {
		return 0, io.ErrClosedPipe
	}
	w.s.data = append(w.s.data, p...)
	w.s.cond.Broadcast()
	return len(p), nil
}

func (w *streamWriter) Close() error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	w.s.closed = true
	w.s.cond.Broadcast()
	return nil
}

// streamReader consumes a memoryStream from the beginning. Reads block
// until data is available or the writer has finished.
type streamReader struct {
	s   *memoryStream
	pos int
}

func (r *streamReader) Read(p []byte) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for r.pos == len(r.s.data) && !r.s.closed {
		r.s.cond.Wait()
	}
	if r.pos == len(r.s.data) {
		return 0, io.EOF
	}
	n := copy(p, r.s.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *streamReader) Close() error { return nil }

// MemoryStreamingAudioCache keeps write-once audio streams in process
// memory. Streams are single-use: opening a read claims the key.
type MemoryStreamingAudioCache struct {
	mu      sync.Mutex
	streams map[string]*memoryStream
	log     *zap.Logger
}

func NewMemoryStreamingAudioCache(log *zap.Logger) *MemoryStreamingAudioCache {
	return &MemoryStreamingAudioCache{
		streams: make(map[string]*memoryStream),
		log:     log,
	}
}

func (c *MemoryStreamingAudioCache) CreateWriteStream(ctx context.Context, key, codec, codecParams string) (ports.AudioWriteStream, error) {
	s := newMemoryStream(codec, codecParams)
	c.mu.Lock()
	c.streams[key] = s
	c.mu.Unlock()
	return &streamWriter{s: s}, nil
}

// OpenReadStream waits up to maxWait for the key to exist, then claims it.
// A miss returns (nil, nil).
func (c *MemoryStreamingAudioCache) OpenReadStream(ctx context.Context, key string, maxWait time.Duration) (*ports.AudioReadStream, error) {
	deadline := time.Now().Add(maxWait)

	for {
		c.mu.Lock()
		s, ok := c.streams[key]
		if ok {
			delete(c.streams, key)
		}
		c.mu.Unlock()

		if ok {
			return &ports.AudioReadStream{
				Codec:       s.codec,
				CodecParams: s.params,
				Reader:      &streamReader{s: s},
			}, nil
		}
		if time.Now().Add(pollInterval).After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (c *MemoryStreamingAudioCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, s := range c.streams {
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
		delete(c.streams, key)
	}
	return nil
}
