package audio

import (
	"io"
	"sync"

	"github.com/parlance-ai/parlance/internal/observability/telemetry"
)

// ChunkSource yields successive encoded audio chunks of roughly 100ms
// each. NextChunk returns io.EOF after the final chunk.
type ChunkSource interface {
	Codec() string
	CodecParams() string
	NextChunk() ([]byte, error)
}

// relayChunkMs is the target duration of one pumped chunk.
const relayChunkMs = 100

// encoderSource chunks an encoded payload at the codec's byte rate.
type encoderSource struct {
	codec     string
	params    string
	data      []byte
	chunkSize int
}

// NewEncoderSource encodes pcm with the given codec and exposes it as a
// stream of ~100ms chunks for the relay.
func NewEncoderSource(codec Codec, pcm *PCMBuffer) (ChunkSource, error) {
	data, params, err := codec.Encode(pcm)
	if err != nil {
		return nil, err
	}
	chunkSize := codec.BytesPerSecond(pcm.SampleRate, pcm.Channels) * relayChunkMs / 1000
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &encoderSource{
		codec:     codec.Name(),
		params:    params,
		data:      data,
		chunkSize: chunkSize,
	}, nil
}

func (s *encoderSource) Codec() string       { return s.codec }
func (s *encoderSource) CodecParams() string { return s.params }

func (s *encoderSource) NextChunk() ([]byte, error) {
	if len(s.data) == 0 {
		return nil, io.EOF
	}
	n := s.chunkSize
	if n > len(s.data) {
		n = len(s.data)
	}
	chunk := s.data[:n]
	s.data = s.data[n:]
	return chunk, nil
}

// bufferedPipe is a byte pipe whose writes never block: the buffer grows
// as needed, reads block until data arrives or the write side closes.
type bufferedPipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newBufferedPipe() *bufferedPipe {
	p := &bufferedPipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *bufferedPipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.buf = append(p.buf, b...)
	p.cond.Broadcast()
	return len(b), nil
}

func (p *bufferedPipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.buf) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

// CloseWrite marks the stream complete; pending and future reads drain the
// remaining buffer then observe EOF.
func (p *bufferedPipe) CloseWrite() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

type pipeReadResult struct {
	data []byte
	err  error
}

// Relay pumps an encoder's output into sink through an internal pipe using
// a two-phase pump. Phase one runs while the encoder still has chunks:
// each chunk is pushed into the pipe, then the pipe is drained into sink
// only if the previously issued async read has already completed (checked
// without blocking), with a fresh read issued after every drain. Phase two
// begins once the encoder is exhausted: the pipe's write side closes and
// draining blocks until EOF. Keeping exactly one outstanding read is what
// prevents the deadlock that concurrent blocking reads and writes on both
// pipe ends would cause once an internal buffer fills.
//
// On success every byte the encoder produced has been written to sink in
// order, and sink is closed.
func Relay(src ChunkSource, sink io.WriteCloser) error {
	pipe := newBufferedPipe()
	results := make(chan pipeReadResult, 1)

	issueRead := func() {
		go func() {
			buf := make([]byte, 8192)
			n, err := pipe.Read(buf)
			results <- pipeReadResult{data: buf[:n], err: err}
		}()
	}
	issueRead()

	drain := func(r pipeReadResult) (done bool, err error) {
		if len(r.data) > 0 {
			if _, werr := sink.Write(r.data); werr != nil {
				return false, werr
			}
		}
		if r.err == io.EOF {
			return true, nil
		}
		if r.err != nil {
			return false, r.err
		}
		return false, nil
	}

	for {
		chunk, err := src.NextChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			pipe.CloseWrite()
			sink.Close()
			return err
		}
		if _, err := pipe.Write(chunk); err != nil {
			sink.Close()
			return err
		}
		telemetry.AudioRelayChunksTotal.Inc()

		// Non-blocking check of the outstanding read.
		select {
		case r := <-results:
			done, err := drain(r)
			if err != nil {
				sink.Close()
				return err
			}
			if !done {
				issueRead()
			}
		default:
		}
	}

	pipe.CloseWrite()

	// Blocking drains until the pipe is exhausted.
	for {
		r := <-results
		done, err := drain(r)
		if err != nil {
			sink.Close()
			return err
		}
		if done {
			break
		}
		issueRead()
	}

	return sink.Close()
}
