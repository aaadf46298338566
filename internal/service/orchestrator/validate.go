package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/observability/telemetry"
	"github.com/parlance-ai/parlance/internal/observability/tracelog"
	"github.com/parlance-ai/parlance/internal/ports"
)

const (
	// maxIdentifierLength is the longest client/user id stored verbatim;
	// anything longer is hashed to a fixed-length pseudonymous id.
	maxIdentifierLength = 255
	// referenceTimeFormat is the only accepted client wall-clock format.
	referenceTimeFormat = "2006-01-02T15:04:05"
	// offsetGranularity is the rounding unit for inferred UTC offsets.
	offsetGranularity = 15
)

// validate normalizes a live request in place: identifier hashing,
// reference-time parsing, UTC-offset inference, timezone backfill, audio
// transcoding, and server-side speech recognition. Errors here become
// Failure responses.
func (o *Orchestrator) validate(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request) error {
	if err := o.normalizeRequest(ctx, tlog, req); err != nil {
		return err
	}
	if err := o.normalizeAudio(tlog, req); err != nil {
		return err
	}
	return o.recognizeSpeech(ctx, tlog, req)
}

// normalizeRequest is the input-independent half of validation, shared
// with action replay. Replayed actions already carry a synthesized
// hypothesis, so they never re-run audio transcoding or recognition.
func (o *Orchestrator) normalizeRequest(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request) error {
	if req.SchemaVersion != domain.CurrentSchemaVersion {
		tlog.Warn("validator", "Request uses a non-current schema version",
			zap.Int("version", req.SchemaVersion),
			zap.Int("current", domain.CurrentSchemaVersion))
	}

	cc := req.ClientContext
	if cc == nil {
		return domain.NewMissingFieldError("context")
	}
	cc.ClientID = pseudonymizeIdentifier(cc.ClientID)
	cc.UserID = pseudonymizeIdentifier(cc.UserID)

	o.normalizeTime(ctx, tlog, cc)
	return nil
}

// pseudonymizeIdentifier deterministically hashes oversized identifiers
// so cache keys and log fields stay bounded.
func pseudonymizeIdentifier(id string) string {
	if len(id) <= maxIdentifierLength {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:32]
}

// normalizeTime parses the client wall clock, infers a UTC offset from it
// when none was supplied, and lets the timezone resolver backfill the
// rest. Explicit client values always win over resolved ones.
func (o *Orchestrator) normalizeTime(ctx context.Context, tlog *tracelog.TraceLogger, cc *domain.ClientContext) {
	if cc.ReferenceDateTime != "" {
		t, err := time.Parse(referenceTimeFormat, cc.ReferenceDateTime)
		if err != nil {
			tlog.Warn("validator", "Dropping unparsable client reference time",
				zap.String("referenceDateTime", cc.ReferenceDateTime))
			cc.ReferenceDateTime = ""
		} else {
			cc.ReferenceTime = &t
		}
	}

	if cc.ReferenceTime != nil && cc.UTCOffsetMinutes == nil {
		offset := roundOffsetMinutes(cc.ReferenceTime.Sub(time.Now().UTC()))
		cc.UTCOffsetMinutes = &offset
		tlog.Debug("validator", "Inferred UTC offset from client wall clock",
			zap.Int("utcOffset", offset))
	}

	if o.timezones == nil {
		return
	}
	needsBackfill := cc.UserTimeZone == "" || cc.UTCOffsetMinutes == nil || cc.ReferenceTime == nil
	hasHints := (cc.Latitude != nil && cc.Longitude != nil) || cc.UTCOffsetMinutes != nil
	if !needsBackfill || !hasHints {
		return
	}

	result, err := o.timezones.Resolve(ctx, ports.TimezoneQuery{
		Latitude:         cc.Latitude,
		Longitude:        cc.Longitude,
		UTCOffsetMinutes: cc.UTCOffsetMinutes,
		ReferenceTime:    time.Now().UTC(),
	})
	if err != nil {
		tlog.Warn("validator", "Timezone resolution failed", zap.Error(err))
		return
	}
	if result == nil {
		return
	}
	if cc.UserTimeZone == "" {
		cc.UserTimeZone = result.TimeZoneName
	}
	if cc.UTCOffsetMinutes == nil {
		offset := result.UTCOffsetMinutes
		cc.UTCOffsetMinutes = &offset
	}
	if cc.ReferenceTime == nil && !result.LocalTime.IsZero() {
		local := result.LocalTime
		cc.ReferenceTime = &local
		cc.ReferenceDateTime = local.Format(referenceTimeFormat)
	}
}

// roundOffsetMinutes rounds a wall-clock delta to the nearest quarter
// hour, the granularity real timezone offsets use.
func roundOffsetMinutes(delta time.Duration) int {
	quarters := math.Round(delta.Minutes() / offsetGranularity)
	return int(quarters) * offsetGranularity
}

// normalizeAudio transcodes compressed input audio to canonical PCM so
// recognition and relays work from one format.
func (o *Orchestrator) normalizeAudio(tlog *tracelog.TraceLogger, req *domain.Request) error {
	if req.AudioInput == nil || len(req.AudioInput.Data) == 0 {
		return nil
	}
	transcoded, err := o.audio.TranscodeToPCM(req.AudioInput)
	if err != nil {
		return &domain.FormatError{Field: "audioInput", Err: err}
	}
	if transcoded != req.AudioInput {
		tlog.Debug("validator", "Transcoded input audio to canonical PCM",
			zap.String("sourceCodec", req.AudioInput.Codec))
	}
	req.AudioInput = transcoded
	return nil
}

// recognizeSpeech runs bounded server-side recognition when spoken input
// arrived without a transcript. Empty recognition fails the turn.
func (o *Orchestrator) recognizeSpeech(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request) error {
	if req.InteractionType != domain.InputSpoken || req.SpeechInput.BestTranscript() != "" {
		return nil
	}
	if req.AudioInput == nil || len(req.AudioInput.Data) == 0 {
		return fmt.Errorf("spoken input carries neither a transcript nor audio")
	}
	if o.recognizer == nil {
		return fmt.Errorf("no speech recognizer is configured for transcript-less audio")
	}

	srCtx, cancel := context.WithTimeout(ctx, o.cfg.SpeechTimeout)
	defer cancel()

	timer := prometheus.NewTimer(telemetry.SpeechRecognitionLatency)
	result, err := o.recognizer.Recognize(srCtx, req.AudioInput, req.ClientContext.Locale)
	timer.ObserveDuration()
	if err != nil {
		return fmt.Errorf("server-side speech recognition failed: %w", err)
	}
	if result.BestTranscript() == "" {
		return fmt.Errorf("speech recognition produced no transcript")
	}

	tlog.InfoPII("validator", "Server-side recognition transcript",
		zap.String("transcript", result.BestTranscript()))
	req.SpeechInput = result
	return nil
}
