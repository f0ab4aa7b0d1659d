package triage

import "strings"

// Offline keyword scorer: the network-free substitute for the remote emotion
// model. Explicit crisis keywords force CRITICAL with score 0 before any
// weighted scoring happens.

var positiveKeywords = []string{
	"happy", "great", "good", "better", "excited", "grateful", "relaxed",
	"calm", "hopeful", "proud", "fun", "enjoyed", "love", "amazing",
}

// Negative keywords grouped by the emotion class they indicate. The class
// with the most hits becomes the dominant emotion.
var negativeKeywords = map[Emotion][]string{
	EmotionSadness: {
		"sad", "depressed", "hopeless", "lonely", "crying", "empty",
		"worthless", "miserable", "numb", "exhausted", "tired of",
	},
	EmotionFear: {
		"anxious", "anxiety", "scared", "afraid", "panic", "worried",
		"overwhelmed", "terrified", "can't sleep", "cant sleep", "restless",
	},
	EmotionAnger: {
		"angry", "furious", "hate", "frustrated", "annoyed", "unfair",
	},
}

const (
	offlineBaseScore   = 50
	offlinePosWeight   = 10
	offlineNegWeight   = 12
	offlineCrisisScore = 0
)

// scoreOffline produces an assessment from keyword counts alone. It is
// deterministic: the same text always yields the same assessment.
func scoreOffline(text string) EmotionAssessment {
	lower := strings.ToLower(text)

	if IsCrisis(lower) {
		return EmotionAssessment{
			Dominant:       EmotionSadness,
			Distribution:   []EmotionScore{{Emotion: EmotionSadness, Score: 1}},
			WellbeingScore: offlineCrisisScore,
			RiskTier:       TierCritical,
			Source:         SourceOfflineFallback,
		}
	}

	posCount := 0
	for _, kw := range positiveKeywords {
		posCount += strings.Count(lower, kw)
	}

	negCount := 0
	classCounts := map[Emotion]int{}
	for emotion, keywords := range negativeKeywords {
		for _, kw := range keywords {
			n := strings.Count(lower, kw)
			classCounts[emotion] += n
			negCount += n
		}
	}

	score := clampScore(offlineBaseScore + offlinePosWeight*posCount - offlineNegWeight*negCount)
	dominant := offlineDominant(posCount, classCounts)

	return EmotionAssessment{
		Dominant:       dominant,
		Distribution:   []EmotionScore{{Emotion: dominant, Score: 1}},
		WellbeingScore: score,
		RiskTier:       deriveRiskTier(dominant, score),
		Source:         SourceOfflineFallback,
	}
}

// offlineDominant picks the emotion whose keyword class dominates. Ties
// between negative classes resolve in fixed severity order so the scorer
// stays deterministic.
func offlineDominant(posCount int, classCounts map[Emotion]int) Emotion {
	negTotal := 0
	for _, n := range classCounts {
		negTotal += n
	}
	if posCount == 0 && negTotal == 0 {
		return EmotionNeutral
	}
	if posCount > negTotal {
		return EmotionJoy
	}

	best := EmotionNeutral
	bestCount := 0
	for _, emotion := range []Emotion{EmotionSadness, EmotionFear, EmotionAnger} {
		if classCounts[emotion] > bestCount {
			best = emotion
			bestCount = classCounts[emotion]
		}
	}
	if bestCount == 0 {
		return EmotionNeutral
	}
	return best
}
