package cache

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestLocalCache_StoreAndRetrieve(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c := NewLocalCache(time.Minute, newTestLogger())
	defer c.Close()

	if err := c.Store(ctx, "k1", []byte("hello"), time.Minute, true); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	// Act
	res, err := c.TryRetrieve(ctx, "k1", time.Second)

	// Assert
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if res == nil {
		t.Fatal("expected hit, got miss")
	}
	if string(res.Value) != "hello" {
		t.Errorf("expected 'hello', got %q", res.Value)
	}
}

func TestLocalCache_MissAfterBoundedWait(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, newTestLogger())
	defer c.Close()

	start := time.Now()
	res, err := c.TryRetrieve(ctx, "absent", 150*time.Millisecond)

	if err != nil {
		t.Fatalf("expected clean miss, got %v", err)
	}
	if res != nil {
		t.Fatal("expected miss, got hit")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("wait overshot badly: %v", elapsed)
	}
}

func TestLocalCache_RetrievePicksUpConcurrentStore(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c := NewLocalCache(time.Minute, newTestLogger())
	defer c.Close()

	go func() {
		time.Sleep(120 * time.Millisecond)
		_ = c.Store(ctx, "late", []byte("arrived"), time.Minute, true)
	}()

	// Act
	res, err := c.TryRetrieve(ctx, "late", 2*time.Second)

	// Assert
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if res == nil {
		t.Fatal("expected the late store to be observed within the wait")
	}
	if string(res.Value) != "arrived" {
		t.Errorf("expected 'arrived', got %q", res.Value)
	}
	if res.Latency <= 0 {
		t.Error("expected positive observed latency")
	}
}

func TestLocalCache_NoOverwritePreservesOriginal(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, newTestLogger())
	defer c.Close()

	_ = c.Store(ctx, "k", []byte("first"), time.Minute, true)
	_ = c.Store(ctx, "k", []byte("second"), time.Minute, false)

	res, _ := c.TryRetrieve(ctx, "k", time.Second)
	if res == nil || string(res.Value) != "first" {
		t.Errorf("expected original value preserved, got %v", res)
	}
}

func TestMemoryStreamingAudioCache_ReadWhileWriting(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c := NewMemoryStreamingAudioCache(newTestLogger())
	defer c.Close()

	w, err := c.CreateWriteStream(ctx, "stream-1", "pcm", "samplerate=16000")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var want bytes.Buffer
	go func() {
		for i := 0; i < 10; i++ {
			chunk := bytes.Repeat([]byte{byte(i)}, 100)
			want.Write(chunk)
			_, _ = w.Write(chunk)
			time.Sleep(5 * time.Millisecond)
		}
		_ = w.Close()
	}()

	// Act
	stream, err := c.OpenReadStream(ctx, "stream-1", time.Second)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if stream == nil {
		t.Fatal("expected stream, got miss")
	}
	got, err := io.ReadAll(stream.Reader)

	// Assert
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if stream.Codec != "pcm" || stream.CodecParams != "samplerate=16000" {
		t.Errorf("codec metadata lost: %s %s", stream.Codec, stream.CodecParams)
	}
	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("stream bytes differ: got %d bytes, want %d", len(got), want.Len())
	}
}

func TestMemoryStreamingAudioCache_StreamsAreSingleUse(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStreamingAudioCache(newTestLogger())
	defer c.Close()

	w, _ := c.CreateWriteStream(ctx, "once", "pcm", "")
	_, _ = w.Write([]byte{1, 2, 3})
	_ = w.Close()

	first, err := c.OpenReadStream(ctx, "once", 100*time.Millisecond)
	if err != nil || first == nil {
		t.Fatalf("expected first open to succeed, got %v %v", first, err)
	}
	second, err := c.OpenReadStream(ctx, "once", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("expected clean miss, got %v", err)
	}
	if second != nil {
		t.Error("expected second open to miss: streams are single-use")
	}
}
