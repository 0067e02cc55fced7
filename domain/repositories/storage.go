package repositories

// KeyValue abstracts the synchronous, local-only persistence capability.
// Values are opaque strings; snapshots are stored as JSON.
type KeyValue interface {
	// Get returns the stored value, or false when the key is absent or the
	// read failed
	Get(key string) (string, bool)
	// Set stores the value; a failure is reported but never blocks the
	// in-memory state transition
	Set(key, value string) error
	// Delete removes the key; deleting an absent key is not an error
	Delete(key string) error
}
