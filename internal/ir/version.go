package ir

// Version constants for the textual format and engine.
const (
	// FormatVersion is the version of the Bassline/Action/Event object forms.
	FormatVersion = "1"

	// EngineVersion is the bassline engine version.
	EngineVersion = "0.1.0"
)
