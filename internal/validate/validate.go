// Package validate turns untyped entry payloads into typed ledger entries.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"invoice-desk/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// FieldError is one violated constraint. Field is the JSON key, or "" for
// problems with the payload as a whole.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error lists every constraint a payload violated.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has at least one violation.
func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Validator validates entry payloads. It is safe for concurrent use.
type Validator struct {
	consulting *jsonschema.Schema
	expense    *jsonschema.Schema
}

// New compiles the entry schemas.
func New() (*Validator, error) {
	consulting, err := compile("consulting.json", consultingSchema())
	if err != nil {
		return nil, err
	}
	expense, err := compile("expense.json", expenseSchema())
	if err != nil {
		return nil, err
	}
	return &Validator{consulting: consulting, expense: expense}, nil
}

func compile(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// Validate decodes a JSON payload and validates it. The result is either a
// complete entry or an *Error; never both.
func (v *Validator) Validate(payload []byte) (models.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &Error{Fields: []FieldError{{Message: "payload is not valid JSON"}}}
	}
	if dec.More() {
		return nil, &Error{Fields: []FieldError{{Message: "payload has trailing data"}}}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &Error{Fields: []FieldError{{Message: "payload must be a JSON object"}}}
	}
	return v.ValidateValue(obj)
}

// ValidateValue validates an already decoded payload. Numbers may be
// json.Number or float64.
func (v *Validator) ValidateValue(obj map[string]any) (models.Entry, error) {
	entryType, _ := obj["entryType"].(string)

	var (
		schema   *jsonschema.Schema
		required string
		message  string
	)
	switch models.EntryType(entryType) {
	case models.EntryConsulting:
		schema, required, message = v.consulting, "invoiceNumber", "Invoice number is required"
	case models.EntryExpense:
		schema, required, message = v.expense, "jrfInvoiceNumber", "JRF invoice number is required"
	default:
		return nil, &Error{Fields: []FieldError{{
			Field:   "entryType",
			Message: `must be "consulting" or "expense"`,
		}}}
	}

	var errs []FieldError
	if val, ok := obj[required]; !ok || val == nil {
		errs = append(errs, FieldError{Field: required, Message: message})
	} else if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		errs = append(errs, FieldError{Field: required, Message: message})
	}

	if err := schema.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, fmt.Errorf("schema validation: %w", err)
		}
		errs = append(errs, leafErrors(ve)...)
	}
	if len(errs) > 0 {
		return nil, newError(errs)
	}

	d := decoder{obj: obj}
	var entry models.Entry
	if entryType == string(models.EntryConsulting) {
		e := &models.ConsultingEntry{
			EntryType:     models.EntryConsulting,
			InvoiceNumber: d.str("invoiceNumber"),
		}
		e.TicketOrOppNumber = d.integer("ticketOrOppNumber")
		e.LedgerFields = d.common()
		entry = e
	} else {
		e := &models.ExpenseEntry{
			EntryType:              models.EntryExpense,
			JRFInvoiceNumber:       d.str("jrfInvoiceNumber"),
			ReimbursementEntryType: models.ReimbursementType(d.str("reimbursementEntryType")),
			CWIdentifier:           d.str("cwIdentifier"),
		}
		e.LedgerFields = d.common()
		entry = e
	}
	if len(d.errs) > 0 {
		return nil, newError(d.errs)
	}
	return entry, nil
}

func newError(errs []FieldError) *Error {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Field != errs[j].Field {
			return errs[i].Field < errs[j].Field
		}
		return errs[i].Message < errs[j].Message
	})
	return &Error{Fields: errs}
}

// leafErrors flattens the validation error tree into the innermost causes,
// which carry the specific keyword failures.
func leafErrors(ve *jsonschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		return []FieldError{{Field: field, Message: ve.Message}}
	}
	var out []FieldError
	for _, c := range ve.Causes {
		out = append(out, leafErrors(c)...)
	}
	return out
}

// decoder reads schema-checked values out of the payload. Types are already
// guaranteed by the schema; calendar validity of dates and numeric range
// are checked here.
type decoder struct {
	obj  map[string]any
	errs []FieldError
}

func (d *decoder) str(key string) string {
	s, _ := d.obj[key].(string)
	return s
}

// number rejects values that have no finite float64 form, since that is
// what the store receives.
func (d *decoder) number(key string) *models.Number {
	n, ok := toDecimal(d.obj[key])
	if !ok {
		return nil
	}
	if math.IsInf(n.InexactFloat64(), 0) {
		d.errs = append(d.errs, FieldError{Field: key, Message: "is out of range"})
		return nil
	}
	return models.NewNumber(n)
}

var (
	maxSafeInteger = decimal.NewFromInt(1<<53 - 1)
	minSafeInteger = maxSafeInteger.Neg()
)

// integer accepts whole numbers the store can hold exactly.
func (d *decoder) integer(key string) *int64 {
	n, ok := toDecimal(d.obj[key])
	if !ok {
		return nil
	}
	if !n.IsInteger() || n.GreaterThan(maxSafeInteger) || n.LessThan(minSafeInteger) {
		d.errs = append(d.errs, FieldError{Field: key, Message: "must be a whole number between -9007199254740991 and 9007199254740991"})
		return nil
	}
	i := n.IntPart()
	return &i
}

func (d *decoder) date(key string) string {
	s := d.str(key)
	if s == "" {
		return ""
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		d.errs = append(d.errs, FieldError{Field: key, Message: "must be a calendar date (YYYY-MM-DD)"})
		return ""
	}
	return s
}

func (d *decoder) common() models.LedgerFields {
	return models.LedgerFields{
		CWCategory:         models.CWCategory(d.str("cwCategory")),
		CWClientName:       d.str("cwClientName"),
		Category:           models.Category(d.str("category")),
		BillableTimeHrs:    d.number("billableTimeHrs"),
		ClientHourlyRate:   d.number("clientHourlyRate"),
		CommissionRate:     d.number("commissionRate"),
		AmountDue:          d.number("amountDue"),
		DateSubmitted:      d.date("dateSubmitted"),
		DatePerformed:      d.date("datePerformed"),
		DateExpected:       d.date("dateExpected"),
		TWCInvoiceNumber:   d.str("twcInvoiceNumber"),
		TWCInvoiceSentDate: d.date("twcInvoiceSentDate"),
		TWCInvoicePaidDate: d.date("twcInvoicePaidDate"),
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}
