package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

var account = Field{Name: "tax_account_number", InputID: "AccountNum", Label: "Account#"}

func TestByInputID(t *testing.T) {
	doc := parse(t, `<form><input type="hidden" id="AccountNum" value=" 998877 "></form>`)
	v, ok := ByInputID(doc, account)
	require.True(t, ok)
	require.Equal(t, "998877", v)

	empty := parse(t, `<form><input type="hidden" id="AccountNum" value=""></form>`)
	_, ok = ByInputID(empty, account)
	require.False(t, ok)
}

func TestByLabeledRow(t *testing.T) {
	doc := parse(t, `
<div class="container">
  <div class="row"><div class="col">Block:</div><div class="col"><span class="highlight">100</span></div></div>
  <div class="row"><div class="col">Account#:</div><div class="col"><span class="highlight"> 4455 </span></div></div>
</div>`)
	v, ok := ByLabeledRow(doc, account)
	require.True(t, ok)
	require.Equal(t, "4455", v)
}

func TestByLabeledRowPrefersInnermostRow(t *testing.T) {
	doc := parse(t, `
<div class="row">
  <span class="value">outer</span>
  <div class="row"><strong>Account#:</strong> <span class="value">inner</span></div>
</div>`)
	v, ok := ByLabeledRow(doc, account)
	require.True(t, ok)
	require.Equal(t, "inner", v)
}

func TestByLabeledRowTableLayout(t *testing.T) {
	doc := parse(t, `<table>
<tr><td>Principal</td><td><span class="value">$1,204.50</span></td></tr>
<tr><td>Total</td><td><span class="value">$1,310.02</span></td></tr>
</table>`)
	v, ok := ByLabeledRow(doc, Field{Name: "tax_total", Label: "Total"})
	require.True(t, ok)
	require.Equal(t, "$1,310.02", v)
}

func TestExtractStrategyOrder(t *testing.T) {
	doc := parse(t, `
<input id="AccountNum" value="from-input">
<div class="row">Account#: <span class="highlight">from-row</span></div>`)
	v, ok := Extract(doc, account)
	require.True(t, ok)
	require.Equal(t, "from-input", v)

	noInput := parse(t, `<div class="row">Account#: <span class="highlight">from-row</span></div>`)
	v, ok = Extract(noInput, account)
	require.True(t, ok)
	require.Equal(t, "from-row", v)
}

func TestExtractAbsent(t *testing.T) {
	v, ok := Extract(parse(t, `<p>nothing to see</p>`), account)
	require.False(t, ok)
	require.Empty(t, v)

	v, ok = Extract(nil, account)
	require.False(t, ok)
	require.Empty(t, v)

	// a row with the label but no value element
	_, ok = Extract(parse(t, `<div class="row">Account#:</div>`), account)
	require.False(t, ok)

	// unclosed tags parse leniently and simply do not match
	_, ok = Extract(parse(t, `<div class="row"><span class="highlight">`), account)
	require.False(t, ok)
}

func TestExtractAll(t *testing.T) {
	doc := parse(t, `<input id="AccountNum" value="1"><div class="row">Location <span class="value">12 Oak</span></div>`)
	got := ExtractAll(doc, []Field{
		account,
		{Name: "tax_location", InputID: "Location", Label: "Location"},
		{Name: "tax_total", InputID: "Total", Label: "Total"},
	})
	require.Equal(t, map[string]string{"tax_account_number": "1", "tax_location": "12 Oak"}, got)
}

func TestValidationErrors(t *testing.T) {
	doc := parse(t, `
<div class="validation-summary-errors"><ul><li>msg1</li><li> msg2 </li><li>msg1</li></ul></div>
<input id="AccountNum" value="998877">`)
	require.True(t, HasValidationBanner(doc))
	require.Equal(t, []string{"msg1", "msg2"}, ValidationErrors(doc))

	bare := parse(t, `<div class="alert-danger">Invalid block</div>`)
	require.Equal(t, []string{"Invalid block"}, ValidationErrors(bare))

	clean := parse(t, `<div class="validation-summary-valid"><ul><li style="display:none"></li></ul></div>`)
	require.False(t, HasValidationBanner(clean))
	require.Empty(t, ValidationErrors(clean))
}

func TestFieldValidationErrors(t *testing.T) {
	doc := parse(t, `
<input id="Lot" name="Lot" value="x">
<span class="field-validation-error">The Lot field is invalid.</span>
<span class="field-validation-valid" data-valmsg-for="Block"></span>`)
	require.True(t, HasValidationBanner(doc))
	require.Equal(t, []string{"The Lot field is invalid."}, ValidationErrors(doc))

	valid := parse(t, `<span class="field-validation-valid" data-valmsg-for="Lot"></span>`)
	require.False(t, HasValidationBanner(valid))
}
