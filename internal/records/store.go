package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

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

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidDate = errors.New("invalid date")
)

// Insert stores the record. Records are immutable, inserting an existing id fails.
func (s *Store) Insert(_ context.Context, record *Record) error {
	// index keys invert the date and only order dates from the epoch on
	if record.Date.Before(time.Unix(0, 0)) {
		return fmt.Errorf("%w: record %q dated %s", ErrInvalidDate, record.ID, record.Date)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idKey(record.ID)); err == nil {
			return fmt.Errorf("record %q already exists", record.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := txn.Set(idKey(record.ID), data); err != nil {
			return err
		}
		if err := txn.Set(indexKey("faculty", record.FacultyID, record), []byte(record.ID)); err != nil {
			return err
		}
		if err := txn.Set(indexKey("course", record.CourseID, record), []byte(record.ID)); err != nil {
			return err
		}
		return nil
	})
}

func (s *Store) FindByID(_ context.Context, id ID) (*Record, error) {
	var record Record
	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &record)
		})
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListByFaculty returns records of the faculty member sorted by date, most recent first.
func (s *Store) ListByFaculty(ctx context.Context, facultyID string, filters ...func(*Record) bool) ([]*Record, error) {
	return s.list(ctx, indexPrefix("faculty", facultyID), 0, filters)
}

// ListRecentByFaculty returns at most limit most recent records of the faculty member.
func (s *Store) ListRecentByFaculty(ctx context.Context, facultyID string, limit int) ([]*Record, error) {
	return s.list(ctx, indexPrefix("faculty", facultyID), limit, nil)
}

// ListByCourse returns records of the course sorted by date, most recent first.
func (s *Store) ListByCourse(ctx context.Context, courseID string, filters ...func(*Record) bool) ([]*Record, error) {
	return s.list(ctx, indexPrefix("course", courseID), 0, filters)
}

func (s *Store) list(_ context.Context, prefix []byte, limit int, filters []func(*Record) bool) ([]*Record, error) {
	records := make([]*Record, 0)
	if err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
	next:
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) == limit {
				return nil
			}
			var id []byte
			if err := it.Item().Value(func(value []byte) error {
				id = append(id, value...)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(idKey(ID(id)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			} else if err != nil {
				return err
			}
			record := &Record{}
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, record)
			}); err != nil {
				return err
			}
			for _, filter := range filters {
				if !filter(record) {
					continue next
				}
			}
			records = append(records, record)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return records, nil
}

func idKey(id ID) []byte {
	return []byte(fmt.Sprintf("records/id/%s", id))
}

func indexPrefix(kind, owner string) []byte {
	return []byte(fmt.Sprintf("records/by-%s/%s/", kind, owner))
}

// indexKey sorts records newest first: badger iterates keys in ascending
// order, so the date is stored inverted.
func indexKey(kind, owner string, record *Record) []byte {
	inverted := math.MaxInt64 - record.Date.UnixNano()
	return append(indexPrefix(kind, owner), fmt.Sprintf("%020d/%s", inverted, record.ID)...)
}
