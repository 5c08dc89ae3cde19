package ai

import "math/rand/v2"

// FallbackResponses stand in for a reply whenever the model call fails.
var FallbackResponses = []string{
	"I'm having trouble connecting to AI services right now. Please try again later.",
	"Sorry, I'm experiencing some technical difficulties. Can you rephrase your question?",
	"I'm currently unable to process your request. Please try again in a moment.",
}

// PickFallback returns one of FallbackResponses. A nil r uses the global source.
func PickFallback(r *rand.Rand) string {
	if r == nil {
		return FallbackResponses[rand.IntN(len(FallbackResponses))]
	}
	return FallbackResponses[r.IntN(len(FallbackResponses))]
}
