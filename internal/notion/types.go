package notion

import "time"

// Text is the content of a text rich-text object.
type Text struct {
	Content string `json:"content"`
}

// RichText is a Notion rich-text object. Requests set Text; responses also
// carry PlainText.
type RichText struct {
	Type      string `json:"type,omitempty"`
	Text      *Text  `json:"text,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
}

// SelectOption names a select option.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is a date property value. Start is an ISO 8601 date or datetime.
type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// Property is a single page property value. Exactly one of the value fields
// is set on a request; Type is filled in by Notion on responses.
type Property struct {
	Type     string        `json:"type,omitempty"`
	Title    []RichText    `json:"title,omitempty"`
	RichText []RichText    `json:"rich_text,omitempty"`
	Number   *float64      `json:"number,omitempty"`
	Select   *SelectOption `json:"select,omitempty"`
	Date     *DateValue    `json:"date,omitempty"`
}

// Properties maps property names (or ids) to values.
type Properties map[string]Property

// TitleProperty builds a title property value.
func TitleProperty(s string) Property {
	return Property{Title: []RichText{{Text: &Text{Content: s}}}}
}

// RichTextProperty builds a rich_text property value.
func RichTextProperty(s string) Property {
	return Property{RichText: []RichText{{Text: &Text{Content: s}}}}
}

// NumberProperty builds a number property value.
func NumberProperty(f float64) Property {
	return Property{Number: &f}
}

// SelectProperty builds a select property value.
func SelectProperty(name string) Property {
	return Property{Select: &SelectOption{Name: name}}
}

// DateProperty builds a date property value.
func DateProperty(start string) Property {
	return Property{Date: &DateValue{Start: start}}
}

// PlainText joins the plain text of a title or rich_text value.
func (p Property) PlainText() string {
	parts := p.Title
	if len(parts) == 0 {
		parts = p.RichText
	}
	var s string
	for _, rt := range parts {
		if rt.PlainText != "" {
			s += rt.PlainText
		} else if rt.Text != nil {
			s += rt.Text.Content
		}
	}
	return s
}

// Page is a database row.
type Page struct {
	Object      string     `json:"object"`
	ID          string     `json:"id"`
	CreatedTime time.Time  `json:"created_time"`
	URL         string     `json:"url,omitempty"`
	Properties  Properties `json:"properties"`
}

// Sort orders a database query. Set either Property or Timestamp.
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

const (
	TimestampCreated = "created_time"
	Descending       = "descending"
	Ascending        = "ascending"
)

// Query is the body of a database query.
type Query struct {
	Sorts       []Sort `json:"sorts,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
}

// QueryResult is one page of database query results.
type QueryResult struct {
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createPageRequest struct {
	Parent     parent     `json:"parent"`
	Properties Properties `json:"properties"`
}
