// Package extract pulls labelled values out of semi-structured HTML pages.
//
// Every strategy is a pure function of a parsed document and a Field. Extract
// tries them in a fixed order and returns the first non-empty value; absence
// is a normal result, never an error.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// RowSelector matches containers that pair a label with its value.
	RowSelector = "tr, .row, .form-group, li, dl"
	// ValueSelector matches the highlighted value inside a row.
	ValueSelector = "span.highlight, span.value, .text-primary, strong, b, dd"
	// BannerSelector matches validation-error containers.
	BannerSelector = ".validation-summary-errors, .field-validation-error, .alert-danger, .error-summary"
)

// Field names one value to pull out of a page.
type Field struct {
	// Name is the store field the value is written to.
	Name string
	// InputID is the id of an input element carrying the value, if any.
	InputID string
	// Label is the text that introduces the value in a label/value row.
	Label string
}

// Strategy extracts one field from a document.
type Strategy func(doc *goquery.Document, f Field) (string, bool)

// Strategies returns the extraction order. It is fixed: input elements win
// over labelled rows.
func Strategies() []Strategy {
	return []Strategy{ByInputID, ByLabeledRow}
}

// Extract returns the first non-empty value any strategy finds for f.
func Extract(doc *goquery.Document, f Field) (string, bool) {
	for _, s := range Strategies() {
		if v, ok := s(doc, f); ok {
			return v, true
		}
	}
	return "", false
}

// ExtractAll runs Extract for each field and keeps only the ones found.
func ExtractAll(doc *goquery.Document, fields []Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := Extract(doc, f); ok {
			out[f.Name] = v
		}
	}
	return out
}

// ByInputID reads the value attribute of the input with the field's id.
func ByInputID(doc *goquery.Document, f Field) (string, bool) {
	if doc == nil || f.InputID == "" {
		return "", false
	}
	var out string
	doc.Find("input").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		if id != f.InputID {
			return true
		}
		out = Clean(s.AttrOr("value", ""))
		return out == ""
	})
	return out, out != ""
}

// ByLabeledRow finds the innermost row whose text contains the field's label
// and returns the text of the value element nested in it.
func ByLabeledRow(doc *goquery.Document, f Field) (string, bool) {
	if doc == nil || strings.TrimSpace(f.Label) == "" {
		return "", false
	}
	label := strings.ToLower(Clean(f.Label))
	hasLabel := func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(Clean(s.Text())), label)
	}

	var out string
	doc.Find(RowSelector).FilterFunction(hasLabel).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if row.Find(RowSelector).FilterFunction(hasLabel).Length() > 0 {
			// a nested row holds the label; it is visited later
			return true
		}
		row.Find(ValueSelector).EachWithBreak(func(_ int, v *goquery.Selection) bool {
			text := Clean(v.Text())
			if text == "" || strings.Contains(strings.ToLower(text), label) {
				return true
			}
			out = text
			return false
		})
		return out == ""
	})
	return out, out != ""
}

// ValidationErrors returns the messages of every validation-error banner in
// the page: list items when the banner has them, otherwise its own text.
func ValidationErrors(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	seen := map[string]bool{}
	var msgs []string
	add := func(s string) {
		s = Clean(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		msgs = append(msgs, s)
	}
	doc.Find(BannerSelector).Each(func(_ int, banner *goquery.Selection) {
		items := banner.Find("li")
		if items.Length() == 0 {
			add(banner.Text())
			return
		}
		items.Each(func(_ int, li *goquery.Selection) { add(li.Text()) })
	})
	return msgs
}

// HasValidationBanner reports whether any validation-error container exists,
// even an empty one.
func HasValidationBanner(doc *goquery.Document) bool {
	return doc != nil && doc.Find(BannerSelector).Length() > 0
}

var whitespace = regexp.MustCompile(`\s+`)

// Clean trims and collapses whitespace, including non-breaking spaces.
func Clean(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
