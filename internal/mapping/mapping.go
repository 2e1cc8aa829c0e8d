// Package mapping converts validated ledger entries into Notion page
// properties.
package mapping

import (
	"fmt"

	"invoice-desk/internal/models"
	"invoice-desk/internal/notion"

	"github.com/shopspring/decimal"
)

// Property names in the consulting and expense databases. The two databases
// share every column except their title and the variant-specific fields.
const (
	PropConsultingTitle  = "Invoice #"
	PropExpenseTitle     = "title" // the title column's property id; its display name is blank
	PropTicketOrOpp      = "Ticket #/Opp #"
	PropEntryType        = "Entry Type"
	PropCWCategory       = "CW - Category"
	PropCWClientName     = "CW - Client Name"
	PropCWIdentifier     = "CW - Identifier"
	PropCategory         = "Category"
	PropBillableTime     = "Billable Time (Hrs.)"
	PropClientHourlyRate = "Client Hourly Rate"
	PropCommissionRate   = "Commission Rate (%)"
	PropAmountDue        = "Amount Due"
	PropDateSubmitted    = "Date Submitted"
	PropDatePerformed    = "Date Performed"
	PropDateExpected     = "Date Expected"
	PropTWCInvoiceNumber = "TWC Invoice #"
	PropTWCInvoiceSent   = "TWC Invoice Sent Date"
	PropTWCInvoicePaid   = "TWC Invoice Paid Date"
)

var hundred = decimal.NewFromInt(100)

// Record is an entry ready to be written: the collection it belongs in and
// its property values.
type Record struct {
	Collection models.EntryType
	Properties notion.Properties
}

// Map builds the Notion properties for entry. Unset optional fields produce
// no property at all.
func Map(entry models.Entry) (Record, error) {
	switch e := entry.(type) {
	case *models.ConsultingEntry:
		return Record{Collection: models.EntryConsulting, Properties: consulting(e)}, nil
	case *models.ExpenseEntry:
		return Record{Collection: models.EntryExpense, Properties: expense(e)}, nil
	default:
		return Record{}, fmt.Errorf("mapping: unsupported entry %T", entry)
	}
}

func consulting(e *models.ConsultingEntry) notion.Properties {
	b := builder{notion.Properties{
		PropConsultingTitle: notion.TitleProperty(e.InvoiceNumber),
	}}
	if e.TicketOrOppNumber != nil {
		b.props[PropTicketOrOpp] = notion.NumberProperty(float64(*e.TicketOrOppNumber))
	}
	b.common(&e.LedgerFields)
	return b.props
}

func expense(e *models.ExpenseEntry) notion.Properties {
	b := builder{notion.Properties{
		PropExpenseTitle: notion.TitleProperty(e.JRFInvoiceNumber),
	}}
	b.selectOpt(PropEntryType, string(e.ReimbursementEntryType))
	b.text(PropCWIdentifier, e.CWIdentifier)
	b.common(&e.LedgerFields)
	return b.props
}

type builder struct {
	props notion.Properties
}

func (b builder) common(f *models.LedgerFields) {
	b.selectOpt(PropCWCategory, string(f.CWCategory))
	b.text(PropCWClientName, f.CWClientName)
	b.selectOpt(PropCategory, string(f.Category))
	b.number(PropBillableTime, f.BillableTimeHrs)
	b.number(PropClientHourlyRate, f.ClientHourlyRate)
	if f.CommissionRate != nil {
		// Notion percent columns hold fractions.
		b.props[PropCommissionRate] = notion.NumberProperty(f.CommissionRate.Div(hundred).InexactFloat64())
	}
	b.number(PropAmountDue, f.AmountDue)
	b.date(PropDateSubmitted, f.DateSubmitted)
	b.date(PropDatePerformed, f.DatePerformed)
	b.date(PropDateExpected, f.DateExpected)
	b.text(PropTWCInvoiceNumber, f.TWCInvoiceNumber)
	b.date(PropTWCInvoiceSent, f.TWCInvoiceSentDate)
	b.date(PropTWCInvoicePaid, f.TWCInvoicePaidDate)
}

func (b builder) text(name, v string) {
	if v != "" {
		b.props[name] = notion.RichTextProperty(v)
	}
}

func (b builder) selectOpt(name, v string) {
	if v != "" {
		b.props[name] = notion.SelectProperty(v)
	}
}

func (b builder) date(name, v string) {
	if v != "" {
		b.props[name] = notion.DateProperty(v)
	}
}

func (b builder) number(name string, n *models.Number) {
	if n != nil {
		b.props[name] = notion.NumberProperty(n.InexactFloat64())
	}
}
