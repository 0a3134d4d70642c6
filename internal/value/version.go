package value

// Version constants for persisted formats and the engine.
const (
	// SnapshotVersion is the saved-tree snapshot schema version.
	SnapshotVersion = "1"

	// EngineVersion is the kitbash engine version.
	EngineVersion = "0.1.0"
)
