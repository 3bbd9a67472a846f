package courses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type Store struct {
	db *badger.DB
}

func NewStore(db *badger.DB) *Store {
	return &Store{
		db: db,
	}
}

var ErrNotFound = errors.New("not found")

func (s *Store) Insert(_ context.Context, course *Course) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(course)
		if err != nil {
			return err
		}
		if err := txn.Set(idKey(course.ID), data); err != nil {
			return err
		}
		if err := txn.Set(facultyKey(course.FacultyID, course.ID), []byte(course.ID)); err != nil {
			return err
		}
		return nil
	})
}

func (s *Store) FindByID(_ context.Context, id string) (*Course, error) {
	var course Course
	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &course)
		})
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}

// ListByFaculty returns courses taught by the faculty member, ordered by id.
func (s *Store) ListByFaculty(_ context.Context, facultyID string) ([]*Course, error) {
	courses := make([]*Course, 0)
	if err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := facultyPrefix(facultyID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id []byte
			if err := it.Item().Value(func(value []byte) error {
				id = append(id, value...)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(idKey(string(id)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			} else if err != nil {
				return err
			}
			course := &Course{}
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, course)
			}); err != nil {
				return err
			}
			courses = append(courses, course)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return courses, nil
}

func idKey(id string) []byte {
	return []byte(fmt.Sprintf("courses/%s", id))
}

func facultyPrefix(facultyID string) []byte {
	return []byte(fmt.Sprintf("faculties/%s/courses/", facultyID))
}

func facultyKey(facultyID, id string) []byte {
	return append(facultyPrefix(facultyID), id...)
}
