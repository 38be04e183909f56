package ir

// Version constants for the stored format and the binary.
const (
	// SchemaVersion is the change-event format version, matched by DomainEvent.
	SchemaVersion = "1"

	// Version is the chitchat release.
	Version = "0.1.0"
)
