package rules

// Storage keys under which the two serialized rule documents are kept.
// Temporary rules are never persisted.
const (
	StorageKeyAllow = "rules/allow"
	StorageKeyDeny  = "rules/deny"
)

// PersistenceProvider is the host-supplied durability contract. The store
// owns the in-memory index and calls out for durability, not vice versa.
type PersistenceProvider interface {
	// Load returns the stored value for key, with ok=false when the key
	// has never been saved.
	Load(key string) (value string, ok bool, err error)
	// Save durably stores value under key before returning.
	Save(key, value string) error
}
