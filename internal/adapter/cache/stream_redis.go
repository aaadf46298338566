package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/ports"
)

// streamTTL bounds how long an unclaimed audio stream survives in Redis.
const streamTTL = 5 * time.Minute

// chunkReadTimeout bounds one blocking pop while consuming a stream whose
// writer is still running.
const chunkReadTimeout = 30 * time.Second

type streamMeta struct {
	Codec       string `json:"codec"`
	CodecParams string `json:"codecParams,omitempty"`
}

// RedisStreamingAudioCache stores write-once audio streams as Redis lists:
// one chunk per element, with a zero-length terminator element marking the
// end of stream. Readers consume destructively, so streams are single-use.
type RedisStreamingAudioCache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisStreamingAudioCache(url string, log *zap.Logger) (*RedisStreamingAudioCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStreamingAudioCache{client: client, log: log}, nil
}

func metaKey(key string) string   { return "audiostream:meta:" + key }
func chunksKey(key string) string { return "audiostream:chunks:" + key }

type redisStreamWriter struct {
	cache *RedisStreamingAudioCache
	key   string
}

func (w *redisStreamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), chunkReadTimeout)
	defer cancel()

	pipe := w.cache.client.Pipeline()
	pipe.RPush(ctx, chunksKey(w.key), append([]byte(nil), p...))
	pipe.Expire(ctx, chunksKey(w.key), streamTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *redisStreamWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), chunkReadTimeout)
	defer cancel()
	// Zero-length terminator marks end of stream.
	return w.cache.client.RPush(ctx, chunksKey(w.key), []byte{}).Err()
}

type redisStreamReader struct {
	cache *RedisStreamingAudioCache
	key   string
	buf   []byte
	done  bool
}

func (r *redisStreamReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.done {
			return 0, io.EOF
		}
		ctx, cancel := context.WithTimeout(context.Background(), chunkReadTimeout+time.Second)
		res, err := r.cache.client.BLPop(ctx, chunkReadTimeout, chunksKey(r.key)).Result()
		cancel()
		if err == redis.Nil {
			// Writer stalled past the chunk timeout; treat as end.
			r.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		chunk := []byte(res[1])
		if len(chunk) == 0 {
			r.done = true
			return 0, io.EOF
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *redisStreamReader) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.cache.client.Del(ctx, chunksKey(r.key), metaKey(r.key)).Err()
}

func (c *RedisStreamingAudioCache) CreateWriteStream(ctx context.Context, key, codec, codecParams string) (ports.AudioWriteStream, error) {
	meta, err := json.Marshal(streamMeta{Codec: codec, CodecParams: codecParams})
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, metaKey(key), meta, streamTTL).Err(); err != nil {
		return nil, err
	}
	return &redisStreamWriter{cache: c, key: key}, nil
}

func (c *RedisStreamingAudioCache) OpenReadStream(ctx context.Context, key string, maxWait time.Duration) (*ports.AudioReadStream, error) {
	deadline := time.Now().Add(maxWait)

	for {
		raw, err := c.client.GetDel(ctx, metaKey(key)).Bytes()
		if err == nil {
			var meta streamMeta
			if err := json.Unmarshal(raw, &meta); err != nil {
				return nil, fmt.Errorf("corrupt stream metadata for %q: %w", key, err)
			}
			return &ports.AudioReadStream{
				Codec:       meta.Codec,
				CodecParams: meta.CodecParams,
				Reader:      &redisStreamReader{cache: c, key: key},
			}, nil
		}
		if err != redis.Nil {
			return nil, fmt.Errorf("redis getdel %q: %w", key, err)
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

func (c *RedisStreamingAudioCache) Close() error {
	return c.client.Close()
}
