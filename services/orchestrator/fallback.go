package orchestrator

import (
	"strings"

	"github.com/brightline-ai/enhance-gateway/services/providers"
)

// renderFallback produces a deterministic local result from the input alone:
// whitespace normalization plus light profile-specific shaping. No network
// calls, no randomness. It always returns non-empty output, even for blank
// input.
func renderFallback(input string, profile providers.Profile) string {
	text := strings.Join(strings.Fields(input), " ")
	if text == "" {
		return fallbackPlaceholder(profile)
	}

	switch profile {
	case providers.ProfileConcise:
		return truncateWords(text, 40)
	case providers.ProfileCasual, providers.ProfileFriendly:
		return text
	case providers.ProfileProfessional:
		fallthrough
	default:
		return ensureSentence(capitalize(text))
	}
}

func fallbackPlaceholder(profile providers.Profile) string {
	switch profile {
	case providers.ProfileCasual, providers.ProfileFriendly:
		return "Nothing to rewrite yet - add some text and try again."
	default:
		return "No input text was provided."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func ensureSentence(s string) string {
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	default:
		return s + "."
	}
}

func truncateWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
