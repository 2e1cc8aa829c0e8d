// Package invoice suggests sequential invoice numbers of the form
// FH-<year>-<NNNN>.
//
// Suggestions are advisory. Nothing reserves a number between the
// suggestion and the page being created, so two callers that ask at the
// same time are offered the same number.
package invoice

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"invoice-desk/internal/notion"
)

const (
	// TitleProperty is the consulting database's title column.
	TitleProperty = "Invoice #"

	prefix   = "FH"
	minWidth = 4
)

// Querier runs database queries against the external store.
type Querier interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) (*notion.QueryResult, error)
}

// Sequencer reads the most recent consulting entry and derives the next
// invoice number from it.
type Sequencer struct {
	store      Querier
	databaseID string
	timeout    time.Duration
	now        func() time.Time
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTimeout bounds each store query.
func WithTimeout(d time.Duration) Option {
	return func(s *Sequencer) { s.timeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

// NewSequencer creates a Sequencer over the consulting database.
func NewSequencer(store Querier, databaseID string, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:      store,
		databaseID: databaseID,
		timeout:    10 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastInvoiceNumber returns the title of the most recently created
// consulting entry. ok is false when the database is empty or the newest
// page has no title. Query failures are returned as errors and are never
// reported as "no invoice".
func (s *Sequencer) LastInvoiceNumber(ctx context.Context) (last string, ok bool, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.store.QueryDatabase(ctx, s.databaseID, notion.Query{
		Sorts:    []notion.Sort{{Timestamp: notion.TimestampCreated, Direction: notion.Descending}},
		PageSize: 1,
	})
	if err != nil {
		return "", false, fmt.Errorf("querying latest invoice: %w", err)
	}
	if len(res.Results) == 0 {
		return "", false, nil
	}

	title := pageTitle(res.Results[0])
	if title == "" {
		return "", false, nil
	}
	return title, true, nil
}

// Next returns the suggested invoice number for the current year.
func (s *Sequencer) Next(ctx context.Context) (string, error) {
	last, _, err := s.LastInvoiceNumber(ctx)
	if err != nil {
		return "", err
	}
	return NextInvoiceNumber(last, s.now().Year()), nil
}

func pageTitle(p notion.Page) string {
	if prop, ok := p.Properties[TitleProperty]; ok {
		return strings.TrimSpace(prop.PlainText())
	}
	// Fall back to whichever column is the title, in case it was renamed.
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			return strings.TrimSpace(prop.PlainText())
		}
	}
	return ""
}

// NextInvoiceNumber computes the invoice number following last in the given
// year. An empty last, a number from another year, or a malformed number
// restarts the sequence at 0001. The sequence is zero-padded to four digits
// and widens past 9999 rather than wrapping.
func NextInvoiceNumber(last string, year int) string {
	p := fmt.Sprintf("%s-%d-", prefix, year)
	first := p + pad(1)

	if !strings.HasPrefix(last, p) {
		return first
	}
	seq := last[len(p):]
	if seq == "" || strings.ContainsAny(seq, "+-") {
		return first
	}
	n, err := strconv.ParseUint(seq, 10, 32)
	if err != nil {
		return first
	}
	return p + pad(n+1)
}

func pad(n uint64) string {
	return fmt.Sprintf("%0*d", minWidth, n)
}
