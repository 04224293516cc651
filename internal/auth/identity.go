package auth

// Identity is the normalized result of a provider callback. It contains
// identity facts only, no decisions; it is handed to the resolver and
// discarded, never persisted as-is.
type Identity struct {
	Provider      string // "google", "facebook"
	Subject       string // provider-scoped unique user identifier
	Email         string
	EmailVerified bool // whether the provider asserts email ownership
	DisplayName   string
	AvatarURL     string
}
