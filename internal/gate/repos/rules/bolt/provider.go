// Package bolt provides a bbolt-backed implementation of the rule
// store's PersistenceProvider contract for hosts without their own
// preference storage.
package bolt

import (
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/perch-io/crossgate/internal/gate/repos/rules"
)

var bucketRules = []byte("rules")

// Provider stores serialized rule documents keyed by storage key.
type Provider struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures the rules
// bucket exists.
func New(path string) (*Provider, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRules)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Provider{db: db}, nil
}

// Close releases the underlying database.
func (p *Provider) Close() error { return p.db.Close() }

// Load returns the value stored under key, with ok=false when absent.
func (p *Provider) Load(key string) (string, bool, error) {
	var value string
	var ok bool
	err := p.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRules)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = string(v)
			ok = true
		}
		return nil
	})
	return value, ok, err
}

// Save durably stores value under key. The enclosing bbolt transaction
// fsyncs before Update returns, which is the durability guarantee the
// rule store's flush contract requires.
func (p *Provider) Save(key, value string) error {
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRules).Put([]byte(key), []byte(value))
	})
}

var _ rules.PersistenceProvider = (*Provider)(nil)
