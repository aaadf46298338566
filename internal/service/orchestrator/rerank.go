package orchestrator

import "github.com/parlance-ai/parlance/internal/domain"

const (
	// rerankMargin is the strict relative margin a challenger must clear
	// to replace the current best. It exists so a longer, more verbose
	// transcript cannot win purely on tie-breaking.
	rerankMargin = 1.01
	// nonReservedBoost is the prior toward matches outside the fallback
	// domains.
	nonReservedBoost = 1.15
	// sideSpeechCap keeps the side-speech fallback from fully dominating
	// a legitimate domain match downstream.
	sideSpeechCap = 0.75
	// defaultSRConfidence stands in when the recognizer's per-transcript
	// confidence is unknown.
	defaultSRConfidence = 0.5
)

// rerank selects the best recognition across transcript alternates and
// returns the hypothesis list handed to the engine: the winner first,
// remaining alternates in original order, and the manufactured fallback
// last when it did not win.
func rerank(phrases []domain.RecognizedPhrase, utterance string) []domain.RankedHypothesis {
	def := defaultHypothesis(utterance)

	best := def
	bestScore := 0.0
	var alternates []*domain.RecoResult

	for i := range phrases {
		top := phrases[i].Best()
		if top == nil {
			continue
		}
		candidate := *top
		if candidate.Utterance == "" {
			candidate.Utterance = phrases[i].Utterance
		}
		alternates = append(alternates, &candidate)

		score := blendedScore(&phrases[i], &candidate)
		if score > bestScore*rerankMargin {
			best = &candidate
			bestScore = score
		}
	}

	hyps := make([]domain.RankedHypothesis, 0, len(alternates)+1)
	hyps = append(hyps, domain.RankedHypothesis{Result: best})
	for _, alt := range alternates {
		if alt != best {
			hyps = append(hyps, domain.RankedHypothesis{Result: alt})
		}
	}
	if best != def {
		hyps = append(hyps, domain.RankedHypothesis{Result: def})
	}

	for _, h := range hyps {
		if h.Result.Intent == domain.IntentSideSpeech && h.Result.Confidence > sideSpeechCap {
			h.Result.Confidence = sideSpeechCap
		}
	}
	return hyps
}

// blendedScore blends understanding confidence with the recognizer's
// per-transcript confidence and applies the non-reserved-domain boost.
func blendedScore(phrase *domain.RecognizedPhrase, result *domain.RecoResult) float64 {
	sr := phrase.SREngineConfidence
	if sr == 0 {
		sr = defaultSRConfidence
	}
	score := result.Confidence * sr
	if !domain.IsReservedDomain(result.Domain) {
		score *= nonReservedBoost
	}
	return score
}

// defaultHypothesis manufactures the fallback the engine always has to
// fall back on: side speech when there is any utterance text, otherwise
// no-recognition.
func defaultHypothesis(utterance string) *domain.RecoResult {
	intent := domain.IntentNoReco
	if utterance != "" {
		intent = domain.IntentSideSpeech
	}
	return &domain.RecoResult{
		Domain:     domain.DomainCommon,
		Intent:     intent,
		Utterance:  utterance,
		Confidence: 1.0,
	}
}
