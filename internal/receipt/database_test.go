package receipt

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/budgetbyte/budgetbyte/internal/ledger"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newReceipt := func(id, userID string, createdAt time.Time) *Receipt {
		r := &Receipt{
			ID:          id,
			UserID:      userID,
			Store:       "Test Market",
			Date:        "01/15/2024",
			Items:       []ledger.GroceryItem{groceryItem("Milk", "3.49", 2, "Dairy")},
			Filename:    id + "_test.jpg",
			ContentType: "image/jpeg",
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}
		r.recomputeTotal()
		return r
	}

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = newReceipt("test-id", "alice", time.Now())
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the receipt to the database", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
			})
		})

		When("the receipt already exists", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(newReceipt("test-id", "alice", time.Now()))).To(Succeed())
				receipt.Store = "Corner Shop"
			})

			It("overwrites it", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Store).To(Equal("Corner Shop"))
			})
		})
	})

	Describe("GetReceipt", func() {
		var (
			receiptID string
			receipt   *Receipt
			err       error
		)

		JustBeforeEach(func() {
			receipt, err = db.GetReceipt(receiptID)
		})

		When("receipt exists", func() {
			BeforeEach(func() {
				receiptID = "test-id"
				Expect(db.SaveReceipt(newReceipt("test-id", "alice", time.Now()))).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the owner", func() {
				Expect(receipt.UserID).To(Equal("alice"))
			})

			It("should keep item amounts exact", func() {
				Expect(receipt.Items).To(HaveLen(1))
				Expect(receipt.Items[0].ItemPrice.StringFixed(2)).To(Equal("3.49"))
				Expect(receipt.Items[0].TotalPrice.StringFixed(2)).To(Equal("6.98"))
				Expect(receipt.Total.StringFixed(2)).To(Equal("6.98"))
			})
		})

		When("receipt does not exist", func() {
			BeforeEach(func() {
				receiptID = "nonexistent"
			})

			It("returns ErrNotFound", func() {
				Expect(err).To(MatchError(ErrNotFound))
				Expect(err.Error()).To(Equal("receipt not found: nonexistent"))
			})
		})
	})

	Describe("ListReceipts", func() {
		var (
			receipts []*Receipt
			err      error
		)

		JustBeforeEach(func() {
			receipts, err = db.ListReceipts("alice")
		})

		When("receipts exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
				Expect(db.SaveReceipt(newReceipt("id1", "alice", base))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("id2", "alice", base.Add(time.Hour)))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("id3", "bob", base.Add(2*time.Hour)))).To(Succeed())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns only the user's receipts, newest first", func() {
				Expect(receipts).To(HaveLen(2))
				Expect(receipts[0].ID).To(Equal("id2"))
				Expect(receipts[1].ID).To(Equal("id1"))
			})
		})

		When("the receipt is saved again", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(newReceipt("id1", "alice", time.Now()))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("id1", "alice", time.Now()))).To(Succeed())
			})

			It("is listed once", func() {
				Expect(receipts).To(HaveLen(1))
			})
		})

		When("no receipts exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).NotTo(BeNil())
				Expect(receipts).To(BeEmpty())
			})
		})
	})

	Describe("DeleteReceipt", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(newReceipt("test-id", "alice", time.Now()))).To(Succeed())
		})

		It("removes the receipt", func() {
			Expect(db.DeleteReceipt("test-id")).To(Succeed())
			_, err := db.GetReceipt("test-id")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("drops it from the owner's list", func() {
			Expect(db.DeleteReceipt("test-id")).To(Succeed())
			receipts, err := db.ListReceipts("alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})

		It("does not fail for a missing receipt", func() {
			Expect(db.DeleteReceipt("nonexistent")).To(Succeed())
		})
	})

	Describe("Bolt", func() {
		It("lets the ledger store share the file", func() {
			store, err := ledger.NewBoltStore(db.Bolt())
			Expect(err).NotTo(HaveOccurred())
			created, err := store.CreateLedger(context.Background(), "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(created.UserID).To(Equal("alice"))
		})
	})
})
