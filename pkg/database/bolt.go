package database

import (
	"fmt"

	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("sessions")

// BoltStore keeps session values in a single BBolt bucket.
type BoltStore struct {
	db *bbolt.DB
}

var _ session.Backend = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the BBolt database at path.
func NewBoltStore(path string, options *bbolt.Options) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Put(name string, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(name), []byte(value))
	})
}

func (s *BoltStore) Get(name string) (string, bool, error) {
	var value string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(name))
		if data == nil {
			return nil
		}
		// data is only valid inside the transaction
		value = string(data)
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (s *BoltStore) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(name))
	})
}
