package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"quarklog/internal/config"
	"quarklog/internal/model"
	"quarklog/internal/repository"
)

// FatalError marks a failure the shell must not recover from. It is produced only
// under the abort failure policy; the service itself never exits the process.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// EntryService defines the use cases the shell calls.
type EntryService interface {
	// Initialize prepares the store. Its failure is always fatal to startup.
	Initialize(ctx context.Context) error

	// Save stores text as a new entry and returns its id.
	Save(ctx context.Context, text string) (model.RecordID, error)

	// Entries returns every stored entry in the configured display order.
	Entries(ctx context.Context) ([]model.Record, error)
}

// Options configures an entryService.
type Options struct {
	// FailurePolicy is config.PolicyReport or config.PolicyAbort.
	FailurePolicy string
	// ListOrder is config.OrderID, config.OrderCreatedAt or config.OrderNewest.
	ListOrder string
}

// entryService is a concrete implementation of EntryService.
type entryService struct {
	store repository.RecordStore
	opts  Options
}

// NewEntryService constructs a new EntryService.
func NewEntryService(store repository.RecordStore, opts Options) EntryService {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.PolicyReport
	}
	if opts.ListOrder == "" {
		opts.ListOrder = config.OrderID
	}
	return &entryService{store: store, opts: opts}
}

func (s *entryService) Initialize(ctx context.Context) error {
	if err := s.store.Initialize(ctx); err != nil {
		return &FatalError{Err: err}
	}
	return nil
}

func (s *entryService) Save(ctx context.Context, text string) (model.RecordID, error) {
	id, err := s.store.Insert(ctx, text)
	if err != nil {
		return 0, s.apply(err)
	}
	return id, nil
}

func (s *entryService) Entries(ctx context.Context) ([]model.Record, error) {
	items, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, s.apply(err)
	}
	SortRecords(items, s.opts.ListOrder)
	return items, nil
}

func (s *entryService) apply(err error) error {
	if s.opts.FailurePolicy == config.PolicyAbort {
		return &FatalError{Err: err}
	}
	return err
}

// SortRecords orders items in place. Ties on created_at fall back to id.
func SortRecords(items []model.Record, order string) {
	switch order {
	case config.OrderCreatedAt:
		sort.SliceStable(items, func(i, j int) bool {
			if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
				return items[i].CreatedAt.Before(items[j].CreatedAt)
			}
			return items[i].ID < items[j].ID
		})
	case config.OrderNewest:
		sort.SliceStable(items, func(i, j int) bool {
			if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
				return items[i].CreatedAt.After(items[j].CreatedAt)
			}
			return items[i].ID > items[j].ID
		})
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	}
}

// SavedMessage is the status line shown after a successful save.
func SavedMessage(id model.RecordID) string {
	return fmt.Sprintf("Saved entry #%d", id)
}

// FailureMessage turns a store failure into a short status line.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *repository.StorageError
	if !errors.As(err, &se) {
		return "Error: " + err.Error()
	}

	var cause string
	switch {
	case errors.Is(se, repository.ErrReadOnly):
		cause = "storage is read-only"
	case errors.Is(se, repository.ErrClosed):
		cause = "storage is closed"
	case errors.Is(se, context.Canceled), errors.Is(se, context.DeadlineExceeded):
		cause = "operation cancelled"
	default:
		cause = se.Err.Error()
	}

	switch se.Op {
	case repository.OpInsert:
		return "Failed to save: " + cause
	case repository.OpList:
		return "Failed to load entries: " + cause
	case repository.OpInitialize, repository.OpOpen:
		return "Failed to open storage: " + cause
	default:
		return "Storage error: " + cause
	}
}
