package faculty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/facultyattendance/internal/keys"
)

type Store struct {
	db            *badger.DB
	encryptionKey *keys.Key
}

func NewStore(
	db *badger.DB,
	encryptionKey *keys.Key,
) *Store {
	return &Store{
		db:            db,
		encryptionKey: encryptionKey,
	}
}

var ErrNotFound = errors.New("not found")

func (s *Store) FindByID(_ context.Context, id ID) (*Profile, error) {
	var profile EncodedProfile
	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &profile)
		})
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return profile.Decode(s.encryptionKey)
}

func (s *Store) Insert(_ context.Context, profile *Profile) error {
	encoded, err := profile.Encode(s.encryptionKey)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(encoded)
		if err != nil {
			return err
		}
		return txn.Set(idKey(encoded.ID), data)
	})
}

func idKey(id ID) []byte {
	return []byte(fmt.Sprintf("profiles/%s", id))
}
