// Package submission runs a single ledger submission end to end: access
// check, validation, mapping, persistence and webhook notification.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-desk/internal/logctx"
	"invoice-desk/internal/mapping"
	"invoice-desk/internal/models"
	"invoice-desk/internal/notify"
	"invoice-desk/internal/notion"
)

var (
	// ErrUnauthenticated means the request carried no identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the identity is not on the allowlist.
	ErrForbidden = errors.New("not authorized")
)

// State names a step of a submission. Denied and Rejected end a submission
// early; Responded is the successful end. NotifyFailed still leads to
// Responded because the record already exists.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateAuthorized      State = "authorized"
	StateDenied          State = "denied"
	StateValidated       State = "validated"
	StateRejected        State = "rejected"
	StatePersisted       State = "persisted"
	StateNotified        State = "notified"
	StateNotifyFailed    State = "notify_failed"
	StateResponded       State = "responded"
)

// UpstreamError wraps a failure of the external store's create call.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "creating record: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Gate decides whether an email may submit.
type Gate interface {
	Allows(email string) bool
}

// Validator turns a raw payload into an entry.
type Validator interface {
	Validate(payload []byte) (models.Entry, error)
}

// Store creates pages in the external store.
type Store interface {
	CreatePage(ctx context.Context, databaseID string, props notion.Properties) (*notion.Page, error)
}

// Notifier delivers the post-create notification.
type Notifier interface {
	Notify(ctx context.Context, p notify.Payload) error
}

// Databases are the external store's collection ids.
type Databases struct {
	Consulting string
	Expense    string
}

// Config wires a Service.
type Config struct {
	Gate      Gate
	Validator Validator
	Store     Store
	Notifier  Notifier
	Databases Databases

	// StoreTimeout bounds the create call. Zero means 10s.
	StoreTimeout time.Duration
	// NotifyTimeout bounds the webhook call. Zero means 5s.
	NotifyTimeout time.Duration
}

// Result describes a successful submission.
type Result struct {
	PageID    string
	EntryType models.EntryType
	Message   string
	Notified  bool
	State     State
}

// Service runs submissions. It holds no per-request state.
type Service struct {
	cfg Config
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return &Service{cfg: cfg}
}

// Submit validates payload on behalf of email and, if it is acceptable,
// writes it to the store and notifies the webhook. A store failure is
// returned as *UpstreamError and is not retried. A webhook failure is logged
// and does not fail the submission.
func (s *Service) Submit(ctx context.Context, email string, payload []byte) (*Result, error) {
	logger := logctx.Logger(ctx).With("component", "submission")
	state := StateUnauthenticated
	advance := func(next State) {
		logger.Debug("submission.state", "from", state, "to", next)
		state = next
	}

	if email == "" {
		return nil, ErrUnauthenticated
	}
	advance(StateAuthenticated)

	if !s.cfg.Gate.Allows(email) {
		advance(StateDenied)
		logger.Warn("submission denied", "email", email)
		return nil, ErrForbidden
	}
	advance(StateAuthorized)

	entry, err := s.cfg.Validator.Validate(payload)
	if err != nil {
		advance(StateRejected)
		return nil, err
	}
	advance(StateValidated)

	rec, err := mapping.Map(entry)
	if err != nil {
		return nil, err
	}
	databaseID, err := s.databaseFor(rec.Collection)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	page, err := s.cfg.Store.CreatePage(storeCtx, databaseID, rec.Properties)
	cancel()
	if err != nil {
		logger.Error("creating record failed", "entry_type", rec.Collection, "error", err)
		return nil, &UpstreamError{Err: err}
	}
	advance(StatePersisted)
	logger.Info("record created", "entry_type", rec.Collection, "page_id", page.ID, "identifier", entry.Identifier())

	res := &Result{
		PageID:    page.ID,
		EntryType: rec.Collection,
		Message:   successMessage(rec.Collection),
	}

	// The record exists now; a client disconnect must not cut the
	// notification short.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	err = s.cfg.Notifier.Notify(notifyCtx, notify.Payload{
		EntryType:  rec.Collection,
		PageID:     page.ID,
		Properties: entry,
	})
	cancel()
	if err != nil {
		advance(StateNotifyFailed)
		logger.Warn("webhook notification failed", "page_id", page.ID, "error", err)
	} else {
		advance(StateNotified)
		res.Notified = true
	}

	advance(StateResponded)
	res.State = state
	return res, nil
}

func (s *Service) databaseFor(t models.EntryType) (string, error) {
	var id string
	switch t {
	case models.EntryConsulting:
		id = s.cfg.Databases.Consulting
	case models.EntryExpense:
		id = s.cfg.Databases.Expense
	}
	if id == "" {
		return "", fmt.Errorf("no database configured for %s entries", t)
	}
	return id, nil
}

func successMessage(t models.EntryType) string {
	if t == models.EntryExpense {
		return "Expense entry created successfully"
	}
	return "Consulting entry created successfully"
}
