package mapping

import (
	"sort"
	"testing"

	"invoice-desk/internal/models"
	"invoice-desk/internal/notion"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(s string) *models.Number {
	return models.NewNumber(decimal.RequireFromString(s))
}

func keys(p notion.Properties) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func mapProps(t *testing.T, e models.Entry) notion.Properties {
	t.Helper()
	rec, err := Map(e)
	require.NoError(t, err)
	assert.Equal(t, e.Type(), rec.Collection)
	return rec.Properties
}

// consultingFields sets one optional field at a time and names the property
// it must produce.
var consultingFields = []struct {
	prop string
	set  func(*models.ConsultingEntry)
}{
	{PropTicketOrOpp, func(e *models.ConsultingEntry) { n := int64(0); e.TicketOrOppNumber = &n }},
	{PropCWCategory, func(e *models.ConsultingEntry) { e.CWCategory = models.CWProject }},
	{PropCWClientName, func(e *models.ConsultingEntry) { e.CWClientName = "Acme" }},
	{PropCategory, func(e *models.ConsultingEntry) { e.Category = models.CategorySales }},
	{PropBillableTime, func(e *models.ConsultingEntry) { e.BillableTimeHrs = num("0") }},
	{PropClientHourlyRate, func(e *models.ConsultingEntry) { e.ClientHourlyRate = num("125") }},
	{PropCommissionRate, func(e *models.ConsultingEntry) { e.CommissionRate = num("10") }},
	{PropAmountDue, func(e *models.ConsultingEntry) { e.AmountDue = num("99.99") }},
	{PropDateSubmitted, func(e *models.ConsultingEntry) { e.DateSubmitted = "2025-01-02" }},
	{PropDatePerformed, func(e *models.ConsultingEntry) { e.DatePerformed = "2025-01-01" }},
	{PropDateExpected, func(e *models.ConsultingEntry) { e.DateExpected = "2025-02-01" }},
	{PropTWCInvoiceNumber, func(e *models.ConsultingEntry) { e.TWCInvoiceNumber = "TWC-1" }},
	{PropTWCInvoiceSent, func(e *models.ConsultingEntry) { e.TWCInvoiceSentDate = "2025-01-03" }},
	{PropTWCInvoicePaid, func(e *models.ConsultingEntry) { e.TWCInvoicePaidDate = "2025-01-20" }},
}

func TestConsultingEmitsOnlySetFields(t *testing.T) {
	base := func() *models.ConsultingEntry {
		return &models.ConsultingEntry{EntryType: models.EntryConsulting, InvoiceNumber: "FH-2025-0001"}
	}

	props := mapProps(t, base())
	assert.Equal(t, []string{PropConsultingTitle}, keys(props), "unset optional fields must be omitted")

	for _, f := range consultingFields {
		t.Run(f.prop, func(t *testing.T) {
			e := base()
			f.set(e)
			want := []string{PropConsultingTitle, f.prop}
			sort.Strings(want)
			assert.Equal(t, want, keys(mapProps(t, e)))
		})
	}

	all := base()
	want := []string{PropConsultingTitle}
	for _, f := range consultingFields {
		f.set(all)
		want = append(want, f.prop)
	}
	sort.Strings(want)
	assert.Equal(t, want, keys(mapProps(t, all)))
}

func TestConsultingPropertyKinds(t *testing.T) {
	ticket := int64(4521)
	e := &models.ConsultingEntry{
		EntryType:         models.EntryConsulting,
		InvoiceNumber:     "FH-2025-0042",
		TicketOrOppNumber: &ticket,
		LedgerFields: models.LedgerFields{
			CWCategory:       models.CWOpportunity,
			CWClientName:     "Acme Corp",
			Category:         models.CategoryConsulting,
			BillableTimeHrs:  num("2.5"),
			ClientHourlyRate: num("150"),
			CommissionRate:   num("35"),
			AmountDue:        num("375"),
			DateSubmitted:    "2025-03-01",
			TWCInvoiceNumber: "TWC-9",
		},
	}
	props := mapProps(t, e)

	assert.Equal(t, notion.TitleProperty("FH-2025-0042"), props[PropConsultingTitle])
	assert.Equal(t, notion.NumberProperty(4521), props[PropTicketOrOpp])
	assert.Equal(t, notion.SelectProperty("Opportunity"), props[PropCWCategory])
	assert.Equal(t, notion.RichTextProperty("Acme Corp"), props[PropCWClientName])
	assert.Equal(t, notion.SelectProperty("Consulting"), props[PropCategory])
	assert.Equal(t, notion.NumberProperty(2.5), props[PropBillableTime])
	assert.Equal(t, notion.NumberProperty(150), props[PropClientHourlyRate])
	assert.Equal(t, notion.NumberProperty(0.35), props[PropCommissionRate])
	assert.Equal(t, notion.NumberProperty(375), props[PropAmountDue], "amount due is passed through, not recomputed")
	assert.Equal(t, notion.DateProperty("2025-03-01"), props[PropDateSubmitted])
	assert.Equal(t, notion.RichTextProperty("TWC-9"), props[PropTWCInvoiceNumber])
}

func TestCommissionRateBecomesFraction(t *testing.T) {
	tests := map[string]float64{
		"35":   0.35,
		"0":    0,
		"100":  1,
		"33.3": 0.333,
		"7":    0.07,
	}
	for in, want := range tests {
		e := &models.ConsultingEntry{InvoiceNumber: "x", LedgerFields: models.LedgerFields{CommissionRate: num(in)}}
		got := mapProps(t, e)[PropCommissionRate]
		require.NotNil(t, got.Number, "commission %s", in)
		assert.Equal(t, want, *got.Number, "commission %s", in)
	}
}

func TestExpenseMapping(t *testing.T) {
	e := &models.ExpenseEntry{
		EntryType:              models.EntryExpense,
		JRFInvoiceNumber:       "JRF-12",
		ReimbursementEntryType: models.ReimbursementBillableHours,
		CWIdentifier:           "T-77",
		LedgerFields: models.LedgerFields{
			Category:       models.CategoryNetworking,
			CommissionRate: num("20"),
			DatePerformed:  "2025-04-04",
		},
	}
	props := mapProps(t, e)

	assert.Equal(t, []string{
		PropCategory, PropCommissionRate, PropCWIdentifier, PropDatePerformed, PropEntryType, PropExpenseTitle,
	}, keys(props))
	assert.Equal(t, notion.TitleProperty("JRF-12"), props[PropExpenseTitle])
	assert.Equal(t, notion.SelectProperty("Billable Hours"), props[PropEntryType])
	assert.Equal(t, notion.RichTextProperty("T-77"), props[PropCWIdentifier])
	assert.Equal(t, notion.SelectProperty("Networking"), props[PropCategory])
	assert.Equal(t, notion.NumberProperty(0.2), props[PropCommissionRate])
	assert.Equal(t, notion.DateProperty("2025-04-04"), props[PropDatePerformed])
	assert.NotContains(t, props, PropTicketOrOpp)
	assert.NotContains(t, props, PropConsultingTitle)
}

func TestExpenseMinimal(t *testing.T) {
	props := mapProps(t, &models.ExpenseEntry{JRFInvoiceNumber: "JRF-1"})
	assert.Equal(t, []string{PropExpenseTitle}, keys(props))
}

type otherEntry struct{ models.ConsultingEntry }

func TestMapRejectsUnknownEntry(t *testing.T) {
	_, err := Map(&otherEntry{})
	assert.Error(t, err)
}
