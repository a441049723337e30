package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, attached to a context and carried down the call chain.
const (
	FieldRequestID      = "request_id"
	FieldCycleID        = "cycle_id"
	FieldComponent      = "component"
	FieldSource         = "source"
	FieldRegion         = "region"
	FieldSubscriptionID = "subscription_id"
	FieldRecipient      = "recipient"
)

// Metric fields, set per line through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	// FieldSize is a response or payload size in bytes.
	FieldSize   = "size"
	FieldStatus = "status"
)
