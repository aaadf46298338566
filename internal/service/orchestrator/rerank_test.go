package orchestrator

import (
	"testing"

	"github.com/parlance-ai/parlance/internal/domain"
)

func phrase(utterance, dom, intent string, luConf, srConf float64) domain.RecognizedPhrase {
	return domain.RecognizedPhrase{
		Utterance:          utterance,
		SREngineConfidence: srConf,
		Recognition: []domain.RecoResult{{
			Domain:     dom,
			Intent:     intent,
			Utterance:  utterance,
			Confidence: luConf,
		}},
	}
}

func TestRerank_MarginBlocksNearTies(t *testing.T) {
	// Arrange: a challenger scoring only 0.5% higher than the incumbent.
	phrases := []domain.RecognizedPhrase{
		phrase("turn on the lights", "smarthome", "lights_on", 0.800, 1.0),
		phrase("turn on the light switch", "smarthome", "lights_on", 0.804, 1.0),
	}

	// Act
	hyps := rerank(phrases, "turn on the lights")

	// Assert: the first alternate keeps the win.
	if hyps[0].Result.Utterance != "turn on the lights" {
		t.Errorf("0.5%% challenger must not replace the best, got %q", hyps[0].Result.Utterance)
	}
}

func TestRerank_MarginAllowsClearWins(t *testing.T) {
	phrases := []domain.RecognizedPhrase{
		phrase("turn on the lights", "smarthome", "lights_on", 0.800, 1.0),
		phrase("turn on the light switch", "smarthome", "lights_on", 0.816, 1.0),
	}

	hyps := rerank(phrases, "turn on the lights")

	if hyps[0].Result.Utterance != "turn on the light switch" {
		t.Errorf("2%% challenger must replace the best, got %q", hyps[0].Result.Utterance)
	}
}

func TestRerank_NonReservedDomainWinsTies(t *testing.T) {
	// Equal raw confidences: side speech first, a real domain second. The
	// non-reserved boost must break the tie toward the real domain.
	phrases := []domain.RecognizedPhrase{
		phrase("play jazz", domain.DomainSideSpeech, domain.IntentSideSpeech, 0.7, 0.9),
		phrase("play jazz", "music", "play", 0.7, 0.9),
	}

	hyps := rerank(phrases, "play jazz")

	if hyps[0].Result.Domain != "music" {
		t.Errorf("non-reserved domain must win the tie, got %q", hyps[0].Result.Domain)
	}
}

func TestRerank_ReservedDomainGetsNoBoost(t *testing.T) {
	// The reserved domain needs a genuinely higher score to win; a small
	// edge that the boost would have amplified is not enough.
	phrases := []domain.RecognizedPhrase{
		phrase("hmm okay", "music", "play", 0.60, 0.9),
		phrase("hmm okay", domain.DomainCommon, domain.IntentSideSpeech, 0.65, 0.9),
	}

	hyps := rerank(phrases, "hmm okay")

	if hyps[0].Result.Domain != "music" {
		t.Errorf("reserved domain must not receive the boost, got %q", hyps[0].Result.Domain)
	}
}

func TestRerank_SideSpeechConfidenceCapped(t *testing.T) {
	// No alternates at all: the manufactured side-speech default wins and
	// must be capped.
	hyps := rerank(nil, "mumbling in the background")

	top := hyps[0].Result
	if top.Domain != domain.DomainCommon || top.Intent != domain.IntentSideSpeech {
		t.Fatalf("expected side-speech default, got %s/%s", top.Domain, top.Intent)
	}
	if top.Confidence != sideSpeechCap {
		t.Errorf("side-speech confidence must be capped at %v, got %v", sideSpeechCap, top.Confidence)
	}
}

func TestRerank_NoUtteranceFallsBackToNoReco(t *testing.T) {
	hyps := rerank(nil, "")

	top := hyps[0].Result
	if top.Intent != domain.IntentNoReco {
		t.Errorf("expected noreco fallback, got %s", top.Intent)
	}
}

func TestRerank_DefaultSRConfidenceIsHalf(t *testing.T) {
	// An unknown SR confidence halves the blended score, so a candidate
	// with a known high SR confidence (0.6 x 0.95) beats a higher
	// understanding confidence with an unknown one (0.9 x 0.5).
	phrases := []domain.RecognizedPhrase{
		phrase("set an alarm", "clock", "set_alarm", 0.9, 0),
		phrase("set an alarm", "music", "play", 0.6, 0.95),
	}

	hyps := rerank(phrases, "set an alarm")

	if hyps[0].Result.Domain != "music" {
		t.Errorf("known SR confidence must outweigh the default, got %q", hyps[0].Result.Domain)
	}
}

func TestRerank_FallbackAlwaysPresent(t *testing.T) {
	phrases := []domain.RecognizedPhrase{
		phrase("what time is it", "clock", "current_time", 0.9, 1.0),
	}

	hyps := rerank(phrases, "what time is it")

	last := hyps[len(hyps)-1].Result
	if last.Domain != domain.DomainCommon || last.Intent != domain.IntentSideSpeech {
		t.Errorf("engine must always receive the manufactured fallback, got %s/%s", last.Domain, last.Intent)
	}
}
