//go:build !js

package table

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/lci-net/lcifwd/wire"
)

// CsStore is an optional durable backing for the Content Store,
// adapted from the teacher's BadgerStore (std/object/storage). Unlike
// the in-memory Cs, a CsStore survives restarts. The forwarder only
// writes to it (Put, keyed by name); nothing reads entries back into
// the in-memory Cs or serves them on a miss.
type CsStore struct {
	db *badger.DB
}

// OpenCsStore opens (creating if necessary) a Badger-backed Content
// Store at path.
func OpenCsStore(path string) (*CsStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path))
	if err != nil {
		return nil, err
	}
	return &CsStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *CsStore) Close() error {
	return s.db.Close()
}

// Get retrieves the encoded Content Object stored under name, if any.
func (s *CsStore) Get(name wire.Name) (encoded []byte, found bool, err error) {
	key := name.Bytes()
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		encoded, err = item.ValueCopy(nil)
		return err
	})
	return encoded, found, err
}

// Put persists the encoded wire form of a Content Object under its name.
func (s *CsStore) Put(name wire.Name, encoded []byte) error {
	key := name.Bytes()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encoded)
	})
}

// Remove deletes the entry stored under name, if any.
func (s *CsStore) Remove(name wire.Name) error {
	key := name.Bytes()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// RemovePrefix deletes every entry whose name has prefix as a prefix,
// using a key-only iterator scoped to the prefix's byte range.
func (s *CsStore) RemovePrefix(prefix wire.Name) error {
	keyPfx := prefix.Bytes()
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPfx); it.ValidForPrefix(keyPfx); it.Next() {
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
