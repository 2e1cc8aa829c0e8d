package validate

import (
	"invoice-desk/internal/models"
)

const datePattern = `^(\d{4}-\d{2}-\d{2})?$`

// consultingSchema returns the JSON Schema (draft 2020-12) for consulting
// entries. Required identifiers are checked separately so that errors can
// name the missing field.
func consultingSchema() map[string]any {
	props := commonProps(models.ConsultingCategories)
	props["entryType"] = map[string]any{"const": string(models.EntryConsulting)}
	props["invoiceNumber"] = map[string]any{"type": "string"}
	props["ticketOrOppNumber"] = map[string]any{"type": "integer"}
	return objectSchema(props)
}

// expenseSchema returns the JSON Schema for expense entries.
func expenseSchema() map[string]any {
	props := commonProps(models.ExpenseCategories)
	props["entryType"] = map[string]any{"const": string(models.EntryExpense)}
	props["jrfInvoiceNumber"] = map[string]any{"type": "string"}
	props["reimbursementEntryType"] = enumProp(models.ReimbursementTypes)
	props["cwIdentifier"] = map[string]any{"type": "string"}
	return objectSchema(props)
}

func commonProps(categories []models.Category) map[string]any {
	return map[string]any{
		"cwCategory":         enumProp(models.CWCategories),
		"cwClientName":       map[string]any{"type": "string"},
		"category":           enumProp(categories),
		"billableTimeHrs":    map[string]any{"type": "number", "minimum": 0},
		"clientHourlyRate":   map[string]any{"type": "number", "minimum": 0},
		"commissionRate":     map[string]any{"type": "number", "minimum": 0, "maximum": 100},
		"amountDue":          map[string]any{"type": "number"},
		"dateSubmitted":      dateProp(),
		"datePerformed":      dateProp(),
		"dateExpected":       dateProp(),
		"twcInvoiceNumber":   map[string]any{"type": "string"},
		"twcInvoiceSentDate": dateProp(),
		"twcInvoicePaidDate": dateProp(),
	}
}

// Unknown keys are tolerated and dropped during decoding.
func objectSchema(props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func dateProp() map[string]any {
	return map[string]any{"type": "string", "pattern": datePattern}
}

func enumProp[T ~string](values []T) map[string]any {
	enum := make([]string, len(values))
	for i, v := range values {
		enum[i] = string(v)
	}
	return map[string]any{"type": "string", "enum": enum}
}
