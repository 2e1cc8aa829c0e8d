package models

import (
	"github.com/shopspring/decimal"
)

// EntryType discriminates the two ledger entry shapes.
type EntryType string

const (
	EntryConsulting EntryType = "consulting"
	EntryExpense    EntryType = "expense"
)

// CWCategory is the ConnectWise classification of the work.
type CWCategory string

const (
	CWProject     CWCategory = "Project"
	CWTicket      CWCategory = "Ticket"
	CWOpportunity CWCategory = "Opportunity"
)

// Category is the business category of an entry. Networking is only valid
// on expense entries.
type Category string

const (
	CategoryConsulting        Category = "Consulting"
	CategorySales             Category = "Sales"
	CategoryNetworking        Category = "Networking"
	CategoryProjectManagement Category = "Project Management"
)

// ReimbursementType says what an expense entry is being reimbursed for.
type ReimbursementType string

const (
	ReimbursementExpense       ReimbursementType = "Expense Reimbursement"
	ReimbursementBillableHours ReimbursementType = "Billable Hours"
)

// CWCategories lists the accepted CWCategory values.
var CWCategories = []CWCategory{CWProject, CWTicket, CWOpportunity}

// ConsultingCategories lists the categories accepted on consulting entries.
var ConsultingCategories = []Category{CategoryConsulting, CategorySales, CategoryProjectManagement}

// ExpenseCategories lists the categories accepted on expense entries.
var ExpenseCategories = []Category{CategoryConsulting, CategorySales, CategoryNetworking, CategoryProjectManagement}

// ReimbursementTypes lists the accepted ReimbursementType values.
var ReimbursementTypes = []ReimbursementType{ReimbursementExpense, ReimbursementBillableHours}

// Number is an exact decimal that encodes as a bare JSON number.
type Number struct {
	decimal.Decimal
}

// NewNumber wraps d.
func NewNumber(d decimal.Decimal) *Number {
	return &Number{Decimal: d}
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	return n.Decimal.UnmarshalJSON(b)
}

// Entry is a validated ledger submission. It is either a *ConsultingEntry or
// an *ExpenseEntry.
type Entry interface {
	Type() EntryType
	// Identifier is the invoice number used as the record title.
	Identifier() string
	Common() *LedgerFields
}

// LedgerFields are the optional fields shared by both entry shapes.
// Zero values (empty string, nil pointer) mean the field was not set.
type LedgerFields struct {
	CWCategory         CWCategory `json:"cwCategory,omitempty"`
	CWClientName       string     `json:"cwClientName,omitempty"`
	Category           Category   `json:"category,omitempty"`
	BillableTimeHrs    *Number    `json:"billableTimeHrs,omitempty"`
	ClientHourlyRate   *Number    `json:"clientHourlyRate,omitempty"`
	CommissionRate     *Number    `json:"commissionRate,omitempty"` // percent, 0-100
	AmountDue          *Number    `json:"amountDue,omitempty"`
	DateSubmitted      string     `json:"dateSubmitted,omitempty"` // YYYY-MM-DD
	DatePerformed      string     `json:"datePerformed,omitempty"`
	DateExpected       string     `json:"dateExpected,omitempty"`
	TWCInvoiceNumber   string     `json:"twcInvoiceNumber,omitempty"`
	TWCInvoiceSentDate string     `json:"twcInvoiceSentDate,omitempty"`
	TWCInvoicePaidDate string     `json:"twcInvoicePaidDate,omitempty"`
}

// ConsultingEntry is billable consulting work, titled by an FH invoice number.
type ConsultingEntry struct {
	EntryType         EntryType `json:"entryType"`
	InvoiceNumber     string    `json:"invoiceNumber"`
	TicketOrOppNumber *int64    `json:"ticketOrOppNumber,omitempty"`
	LedgerFields
}

func (e *ConsultingEntry) Type() EntryType       { return EntryConsulting }
func (e *ConsultingEntry) Identifier() string    { return e.InvoiceNumber }
func (e *ConsultingEntry) Common() *LedgerFields { return &e.LedgerFields }

// ExpenseEntry is a reimbursable expense, titled by a JRF invoice number.
type ExpenseEntry struct {
	EntryType              EntryType         `json:"entryType"`
	JRFInvoiceNumber       string            `json:"jrfInvoiceNumber"`
	ReimbursementEntryType ReimbursementType `json:"reimbursementEntryType,omitempty"`
	CWIdentifier           string            `json:"cwIdentifier,omitempty"`
	LedgerFields
}

func (e *ExpenseEntry) Type() EntryType       { return EntryExpense }
func (e *ExpenseEntry) Identifier() string    { return e.JRFInvoiceNumber }
func (e *ExpenseEntry) Common() *LedgerFields { return &e.LedgerFields }
