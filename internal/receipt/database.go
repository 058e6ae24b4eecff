package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var (
	receiptsBucket = []byte("receipts")
	// userIndexBucket holds one nested bucket per user, keyed by receipt ID
	userIndexBucket = []byte("receipts_by_user")
)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt creates or replaces a receipt
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns the user's receipts, newest first
	ListReceipts(userID string) ([]*Receipt, error)

	// DeleteReceipt removes a receipt; deleting a missing receipt is not an error
	DeleteReceipt(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens the database file and creates its buckets
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{receiptsBucket, userIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// Bolt exposes the underlying database so the ledger store can share the file
func (b *BoltDB) Bolt() *bbolt.DB {
	return b.db
}

func getReceipt(tx *bbolt.Tx, id string) (*Receipt, error) {
	data := tx.Bucket(receiptsBucket).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var receipt Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt %s: %w", id, err)
	}
	return &receipt, nil
}

// SaveReceipt stores the receipt and indexes it under its owner
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshaling receipt: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(receiptsBucket).Put([]byte(receipt.ID), data); err != nil {
			return fmt.Errorf("writing receipt: %w", err)
		}
		users, err := tx.Bucket(userIndexBucket).CreateBucketIfNotExists([]byte(receipt.UserID))
		if err != nil {
			return fmt.Errorf("creating user index: %w", err)
		}
		return users.Put([]byte(receipt.ID), nil)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		receipt, err = getReceipt(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns the user's receipts, newest first
func (b *BoltDB) ListReceipts(userID string) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		users := tx.Bucket(userIndexBucket).Bucket([]byte(userID))
		if users == nil {
			return nil
		}
		return users.ForEach(func(k, _ []byte) error {
			receipt, err := getReceipt(tx, string(k))
			if err != nil {
				return err
			}
			receipts = append(receipts, receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt and its index entry
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		receipt, err := getReceipt(tx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if users := tx.Bucket(userIndexBucket).Bucket([]byte(receipt.UserID)); users != nil {
			if err := users.Delete([]byte(id)); err != nil {
				return fmt.Errorf("removing user index: %w", err)
			}
		}
		return tx.Bucket(receiptsBucket).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
