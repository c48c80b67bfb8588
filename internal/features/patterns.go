package features

// Patterns is the immutable trigger configuration for feature detection.
// It is passed into the Extractor explicitly rather than living in mutable
// package state, so tests can run different pattern sets in parallel.
//
// All phrases are lowercase. Curly (U+2019) and straight apostrophe
// variants are both listed because lowercasing does not normalize U+2019
// to the ASCII apostrophe.
type Patterns struct {
	// Direct acknowledgement phrasings, checked before bare emotion words.
	EmotionDirect []string
	// Bare emotion vocabulary.
	EmotionWords []string
	// Substrings that veto an emotion match ("if you feel stressed" is a
	// hypothetical, not an acknowledgement).
	EmotionExclusions []string
	// Invitations to continue or disclose.
	Invitation []string
	// First-person offers of ongoing support.
	FirstPersonSupport []string
	// Relational framing phrases.
	Relational []string
	// Newline-anchored structural markers that open a numbered plan.
	PlanMarkers []string
	// Phrases that mark step-by-step guidance without list structure.
	PlanPhrases []string
}

// DefaultPatterns returns the trigger set used for the landlord/tenant
// scenario. The lists are the single source of truth for both detection
// and evidence anchoring.
func DefaultPatterns() Patterns {
	return Patterns{
		EmotionDirect: []string{
			"it's understandable to feel",
			"it’s understandable to feel",
			"it is understandable to feel",
			"that's completely understandable",
			"that’s completely understandable",
			"that's understandable",
			"that’s understandable",
			"i'm sorry you're feeling",
			"i’m sorry you’re feeling",
			"i am sorry you're feeling",
		},
		EmotionWords: []string{
			"stressed", "stressful", "worried", "anxious", "overwhelmed", "overwhelming",
		},
		EmotionExclusions: []string{
			"if you feel",
		},
		Invitation: []string{
			"if you'd like",
			"if you’d like",
			"if you want",
			"let me know",
			"feel free",
			"you can share",
			"tell me",
			"if you tell me",
			"want to keep talking",
			"keep talking about this",
		},
		FirstPersonSupport: []string{
			"i can help",
			"i'm here to help",
			"i’m here to help",
			"i am here to help",
			"happy to help",
			"i'm here",
			"i’m here",
			"i am here",
		},
		Relational: []string{
			"you're not alone",
			"you’re not alone",
			"you are not alone",
			"you don't have to go through this alone",
			"you don’t have to go through this alone",
			"i'm here to help",
			"i’m here to help",
			"i am here to help",
			"i'm here for you",
			"i’m here for you",
			"i am here for you",
			"i can stay with you",
			"stay with you through this",
		},
		PlanMarkers: []string{
			"\n1.", "\n1)", "\n**1.",
		},
		PlanPhrases: []string{
			"step-by-step", "step by step",
		},
	}
}
