package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"booklend/pkg/interval"
	"booklend/pkg/models"
)

var ErrInvalidInterval = errors.New("return time must be after issue time")

// ConflictError is returned when a requested window overlaps an existing
// booking. NextAvailableAt is the conflicting booking's return time.
type ConflictError struct {
	NextAvailableAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("book is not available until %s", e.NextAvailableAt.Format(time.RFC3339))
}

// StorageError wraps a backing-store failure so handlers can tell it apart
// from client errors. Never retried here.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "storage error: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

type Availability struct {
	Available       bool
	NextAvailableAt *time.Time
}

// Ledger is the authoritative store of bookings. Borrow serializes
// check-then-insert per book: a per-book mutex in this process, a
// transaction with row locks underneath, and on Postgres an exclusion
// constraint as the storage-level backstop.
type Ledger struct {
	db    *gorm.DB
	locks sync.Map // book uid -> *sync.Mutex
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Booking{}); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return err
	}
	return db.Exec(`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
			ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
				EXCLUDE USING gist (book_uid WITH =, tstzrange(issue_time, return_time) WITH &&);
		END IF;
	END $$`).Error
}

// CheckAvailability answers whether the book is free at the given instant.
// It is a read-only snapshot: the answer can be stale by the time the
// caller acts on it, only Borrow gives a guarantee.
func (l *Ledger) CheckAvailability(bookUid string, at time.Time) (Availability, error) {
	// By the no-overlap invariant the booking with the smallest return
	// time past the instant is the only one that could cover it.
	var candidate models.Booking
	err := l.db.
		Where("book_uid = ? AND return_time > ?", bookUid, at).
		Order("return_time asc").
		First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Availability{Available: true}, nil
	}
	if err != nil {
		return Availability{}, &StorageError{Err: err}
	}
	if !interval.IsActive(interval.New(candidate.IssueTime, candidate.ReturnTime), at) {
		return Availability{Available: true}, nil
	}
	next := candidate.ReturnTime
	return Availability{Available: false, NextAvailableAt: &next}, nil
}

// Borrow reserves the book for [issue, ret) and returns the new booking.
// The overlap check and the insert run as one atomic unit; two concurrent
// calls with overlapping windows for the same book can never both succeed.
func (l *Ledger) Borrow(bookUid, userUid string, issue, ret time.Time) (*models.Booking, error) {
	if !interval.New(issue, ret).Valid() {
		return nil, ErrInvalidInterval
	}

	mu := l.lockFor(bookUid)
	mu.Lock()
	defer mu.Unlock()

	booking := &models.Booking{
		BookingUid: uuid.New().String(),
		BookUid:    bookUid,
		UserUid:    userUid,
		IssueTime:  issue,
		ReturnTime: ret,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Booking{}).
			Where("book_uid = ?", bookUid).
			Where("issue_time < ? AND return_time > ?", ret, issue).
			Order("return_time asc")
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var existing models.Booking
		ferr := q.First(&existing).Error
		if ferr == nil {
			return &ConflictError{NextAvailableAt: existing.ReturnTime}
		}
		if !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return &StorageError{Err: ferr}
		}

		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, l.classify(err, bookUid, issue, ret)
	}
	return booking, nil
}

// ListByUser returns all bookings held by a user, earliest issue first.
func (l *Ledger) ListByUser(userUid string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := l.db.
		Where("user_uid = ?", userUid).
		Order("issue_time asc").
		Find(&bookings).Error
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return bookings, nil
}

func (l *Ledger) lockFor(bookUid string) *sync.Mutex {
	v, _ := l.locks.LoadOrStore(bookUid, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (l *Ledger) classify(err error, bookUid string, issue, ret time.Time) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	var storage *StorageError
	if errors.As(err, &storage) {
		return storage
	}

	// Exclusion constraint fired: another writer committed an overlapping
	// booking between our check and insert. Report it as a plain conflict.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return &ConflictError{NextAvailableAt: l.nextAvailableAfter(bookUid, issue, ret)}
	}

	return &StorageError{Err: err}
}

// nextAvailableAfter looks up the return time of the booking that blocks
// the requested window. When the lookup cannot name the winner, the
// window's own return time is reported so the caller never sees a zero
// timestamp.
func (l *Ledger) nextAvailableAfter(bookUid string, issue, ret time.Time) time.Time {
	requested := interval.New(issue, ret)

	var candidates []models.Booking
	err := l.db.
		Where("book_uid = ? AND return_time > ?", bookUid, issue).
		Order("return_time asc").
		Find(&candidates).Error
	if err == nil {
		for _, b := range candidates {
			if interval.Overlaps(requested, interval.New(b.IssueTime, b.ReturnTime)) {
				return b.ReturnTime
			}
		}
	}
	return ret
}
