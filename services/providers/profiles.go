package providers

// Profile identifies the target writing style a caller asks for. The set is
// closed on purpose: adding a profile is a compile-time change, and every
// lookup has an explicit default so an unknown identifier can never produce
// a silent miss.
type Profile string

const (
	ProfileProfessional Profile = "professional"
	ProfileCasual       Profile = "casual"
	ProfileConcise      Profile = "concise"
	ProfileFriendly     Profile = "friendly"
)

// ParseProfile maps a request string to a known Profile, falling back to
// ProfileProfessional for anything unrecognized.
func ParseProfile(s string) Profile {
	switch Profile(s) {
	case ProfileProfessional, ProfileCasual, ProfileConcise, ProfileFriendly:
		return Profile(s)
	default:
		return ProfileProfessional
	}
}

// Instruction returns the system instruction sent to providers for this
// profile. The enhancement prompt content itself is deliberately plain; it is
// an opaque payload as far as the orchestration layer is concerned.
func (p Profile) Instruction() string {
	switch p {
	case ProfileCasual:
		return "Rewrite the user's text in a relaxed, conversational tone. Keep the original meaning. Return only the rewritten text."
	case ProfileConcise:
		return "Rewrite the user's text to be as brief as possible without losing meaning. Return only the rewritten text."
	case ProfileFriendly:
		return "Rewrite the user's text in a warm, approachable tone. Keep the original meaning. Return only the rewritten text."
	case ProfileProfessional:
		fallthrough
	default:
		return "Rewrite the user's text in a polished, professional tone. Keep the original meaning. Return only the rewritten text."
	}
}
