package ir

// Capability is a named permission, granted to identities by administrators.
type Capability string

const (
	// CapabilityAdmin may grant and revoke capabilities.
	CapabilityAdmin Capability = "admin"

	// CapabilityUpgrade may authorize a code upgrade.
	CapabilityUpgrade Capability = "upgrade"
)

// KnownCapabilities lists every tag the registry accepts, in display order.
var KnownCapabilities = []Capability{CapabilityAdmin, CapabilityUpgrade}

// ParseCapability validates a capability tag.
func ParseCapability(s string) (Capability, error) {
	for _, c := range KnownCapabilities {
		if string(c) == s {
			return c, nil
		}
	}
	return "", NewError(CodeUnknownCapability, "unknown capability "+s)
}
