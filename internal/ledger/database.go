package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	ledgerBucketName     = "ledgers"
	ledgerUserBucketName = "ledger_users"
)

// BoltStore implements Store on a bbolt database. Ledgers are stored as JSON
// documents keyed by ID, with a user ID to ledger ID index.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates the ledger buckets on an open database.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(ledgerBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(ledgerUserBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating ledger buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// FetchLedgerByUser returns the user's ledger.
func (b *BoltStore) FetchLedgerByUser(ctx context.Context, userID string) (*Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var l *Ledger
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		l, err = ledgerForUser(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CreateLedger creates the user's ledger unless it already exists.
func (b *BoltStore) CreateLedger(ctx context.Context, userID string) (*Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var l *Ledger
	err := b.db.Update(func(tx *bbolt.Tx) error {
		existing, err := ledgerForUser(tx, userID)
		if err == nil {
			l = existing
			return nil
		}
		if !errors.Is(err, ErrLedgerNotFound) {
			return err
		}

		l = &Ledger{
			ID:      uuid.NewString(),
			UserID:  userID,
			Version: 1,
			Periods: make(map[string]*YearPeriod),
		}
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshaling ledger: %w", err)
		}
		if err := tx.Bucket([]byte(ledgerBucketName)).Put([]byte(l.ID), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(ledgerUserBucketName)).Put([]byte(userID), []byte(l.ID))
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLedgerFields patches the ledger document in a single transaction.
func (b *BoltStore) UpdateLedgerFields(ctx context.Context, ledgerID string, version int, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ledgerBucketName))
		data := bucket.Get([]byte(ledgerID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrLedgerNotFound, ledgerID)
		}

		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("unmarshaling ledger: %w", err)
		}

		current, _ := doc["version"].(float64)
		if int(current) != version {
			return fmt.Errorf("%w: have %d, stored %d", ErrVersionConflict, version, int(current))
		}

		paths := make([]string, 0, len(fields))
		for path := range fields {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			value, err := toDocument(fields[path])
			if err != nil {
				return fmt.Errorf("encoding %s: %w", path, err)
			}
			if err := setPath(doc, path, value); err != nil {
				return err
			}
		}
		doc["version"] = version + 1

		out, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling ledger: %w", err)
		}
		return bucket.Put([]byte(ledgerID), out)
	})
}

func ledgerForUser(tx *bbolt.Tx, userID string) (*Ledger, error) {
	id := tx.Bucket([]byte(ledgerUserBucketName)).Get([]byte(userID))
	if id == nil {
		return nil, ErrLedgerNotFound
	}
	data := tx.Bucket([]byte(ledgerBucketName)).Get(id)
	if data == nil {
		return nil, ErrLedgerNotFound
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("unmarshaling ledger: %w", err)
	}
	return &l, nil
}

// toDocument converts a typed value to its generic JSON form.
func toDocument(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// setPath sets doc[a][b][c] = value for path "a.b.c", creating objects on the way.
func setPath(doc map[string]any, path string, value any) error {
	keys := strings.Split(path, ".")
	node := doc
	for _, key := range keys[:len(keys)-1] {
		switch child := node[key].(type) {
		case map[string]any:
			node = child
		case nil:
			next := make(map[string]any)
			node[key] = next
			node = next
		default:
			return fmt.Errorf("path %s: %s is not an object", path, key)
		}
	}
	node[keys[len(keys)-1]] = value
	return nil
}
