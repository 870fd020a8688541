package ir

// Version constants for records and tooling.
const (
	// SchemaVersion is the artifact schema version. Version 2 appended the
	// campaign_id, variant_index, input_digest and seq columns.
	SchemaVersion = 2

	// ToolVersion is the zkfuzz version written into run logs.
	ToolVersion = "0.1.0"
)
