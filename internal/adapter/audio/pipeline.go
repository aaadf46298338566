package audio

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/infrastructure/workerpool"
	"github.com/parlance-ai/parlance/internal/ports"
)

// Pipeline bundles the codec registry, the streaming audio cache, and the
// background relay pool behind the operations the orchestrator needs.
type Pipeline struct {
	codecs  *CodecRegistry
	streams ports.StreamingAudioCache
	pool    *workerpool.Pool
	synth   ports.SpeechSynthesizer
	log     *zap.Logger
}

func NewPipeline(codecs *CodecRegistry, streams ports.StreamingAudioCache, pool *workerpool.Pool, synth ports.SpeechSynthesizer, log *zap.Logger) *Pipeline {
	return &Pipeline{
		codecs:  codecs,
		streams: streams,
		pool:    pool,
		synth:   synth,
		log:     log,
	}
}

// Codecs exposes the registry for callers that negotiate codec names.
func (p *Pipeline) Codecs() *CodecRegistry { return p.codecs }

// DecodeToPCM runs decode and conform for any known wire codec.
func (p *Pipeline) DecodeToPCM(audio *domain.AudioData) (*PCMBuffer, error) {
	codec, ok := p.codecs.Get(audio.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown audio codec %q", audio.Codec)
	}
	pcm, err := codec.Decode(audio.CodecParams, audio.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s audio: %w", audio.Codec, err)
	}
	return Conform(pcm, CanonicalSampleRate, CanonicalChannels), nil
}

// TranscodeToPCM converts compressed input audio to canonical PCM for
// recognition. PCM input is still conformed to the canonical format.
func (p *Pipeline) TranscodeToPCM(audio *domain.AudioData) (*domain.AudioData, error) {
	pcm, err := p.DecodeToPCM(audio)
	if err != nil {
		return nil, err
	}
	data, params, err := (PCMCodec{}).Encode(pcm)
	if err != nil {
		return nil, err
	}
	return &domain.AudioData{Codec: CodecNamePCM, CodecParams: params, Data: data}, nil
}

// BuildFinalAudio selects and orders the response audio: speech is
// synthesized only when the client cannot do so itself, and plugin-supplied
// custom audio precedes it only when the ordering says before-speech or
// there is no speech at all.
func (p *Pipeline) BuildFinalAudio(ctx context.Context, ssml, locale string, clientCanSynthesize bool, custom *domain.AudioData, ordering ports.AudioOrdering) (*PCMBuffer, error) {
	var tts *PCMBuffer
	if ssml != "" && !clientCanSynthesize && p.synth != nil {
		rendered, err := p.synth.Synthesize(ctx, ssml, locale)
		if err != nil {
			return nil, fmt.Errorf("speech synthesis: %w", err)
		}
		if rendered != nil {
			tts, err = p.DecodeToPCM(rendered)
			if err != nil {
				return nil, err
			}
		}
	}

	var customPCM *PCMBuffer
	if custom != nil && len(custom.Data) > 0 {
		var err error
		customPCM, err = p.DecodeToPCM(custom)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case tts == nil && customPCM == nil:
		return nil, nil
	case tts == nil:
		return customPCM, nil
	case customPCM == nil:
		return tts, nil
	}

	out := &PCMBuffer{SampleRate: CanonicalSampleRate, Channels: CanonicalChannels}
	if ordering == ports.AudioOrderingBeforeSpeech {
		out.Samples = append(append(out.Samples, customPCM.Samples...), tts.Samples...)
	} else {
		out.Samples = append(append(out.Samples, tts.Samples...), customPCM.Samples...)
	}
	return out, nil
}

// EncodeInline encodes pcm with the client's preferred codec, falling back
// to uncompressed PCM when the preference is unknown.
func (p *Pipeline) EncodeInline(pcm *PCMBuffer, preferred string) (*domain.AudioData, error) {
	codec := p.codecs.GetOrFallback(preferred)
	data, params, err := codec.Encode(pcm)
	if err != nil {
		return nil, err
	}
	return &domain.AudioData{Codec: codec.Name(), CodecParams: params, Data: data}, nil
}

// BeginStreaming schedules the background relay of pcm into the streaming
// audio cache under key. The call returns once the work is queued; the key
// is already promised to the client, so the relay runs on a detached
// context and its failures are only logged. A reader that arrives after a
// failed relay simply observes a cache miss.
func (p *Pipeline) BeginStreaming(ctx context.Context, traceID, key string, pcm *PCMBuffer, preferred string) error {
	codec := p.codecs.GetOrFallback(preferred)
	detached := context.WithoutCancel(ctx)

	return p.pool.Submit(detached, func() {
		src, err := NewEncoderSource(codec, pcm)
		if err != nil {
			p.log.Error("Audio encoder initialization failed, abandoning stream",
				zap.String("traceId", traceID),
				zap.String("key", key),
				zap.String("codec", codec.Name()),
				zap.Error(err))
			return
		}
		sink, err := p.streams.CreateWriteStream(detached, key, src.Codec(), src.CodecParams())
		if err != nil {
			p.log.Error("Streaming audio cache rejected write stream",
				zap.String("traceId", traceID),
				zap.String("key", key),
				zap.Error(err))
			return
		}
		if err := Relay(src, sink); err != nil {
			p.log.Error("Background audio relay failed",
				zap.String("traceId", traceID),
				zap.String("key", key),
				zap.Error(err))
		}
	})
}

// OpenStream opens the single-use read side of a streamed response under
// key, waiting up to maxWait for the relay to register it. A miss returns
// (nil, nil).
func (p *Pipeline) OpenStream(ctx context.Context, key string, maxWait time.Duration) (*ports.AudioReadStream, error) {
	return p.streams.OpenReadStream(ctx, key, maxWait)
}
