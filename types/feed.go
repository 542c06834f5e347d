package types

// FeedMeta identifies one consumer instance in logs, metrics and archives.
type FeedMeta struct {
	// Name is the configured feed name (defaults to the database name).
	Name string
	// Database is the database segment of the store URL.
	Database string
	// ConsumerID is an optional caller-assigned identity.
	ConsumerID *string
}
