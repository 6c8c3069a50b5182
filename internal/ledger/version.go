package ledger

// Version constants for the event payload schema and the software.
const (
	// SchemaVersion is written into every new EventPayload.
	SchemaVersion = 1

	// AppVersion is the software version exchanged during discovery and handshake.
	AppVersion = "0.3.0"
)
