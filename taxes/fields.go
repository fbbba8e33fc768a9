package taxes

import "github.com/yourorg/vacants-enricher/internal/extract"

// Store fields filled from the tax account page.
const (
	FieldAccountNumber = "tax_account_number"
	FieldLocation      = "tax_location"
	FieldAddress       = "tax_address"
	FieldCityState     = "tax_city_state"
	FieldPrincipal     = "tax_principal"
	FieldTotal         = "tax_total"
)

// DefaultFields lists where each value lives on the result page. The account
// number is required for a lookup to count as a match.
var DefaultFields = []extract.Field{
	{Name: FieldAccountNumber, InputID: "AccountNum", Label: "Account#"},
	{Name: FieldLocation, InputID: "Location", Label: "Location"},
	{Name: FieldAddress, InputID: "OwnerAddress", Label: "Address"},
	{Name: FieldCityState, InputID: "CityState", Label: "City/State"},
	{Name: FieldPrincipal, InputID: "Principal", Label: "Principal"},
	{Name: FieldTotal, InputID: "Total", Label: "Total"},
}

// Form field names posted to the lookup page.
const (
	formAccount   = "accountNumber"
	formBlock     = "Block"
	formLot       = "Lot"
	formQualifier = "Qualifier"
)

// monetary placeholders the form expects even when empty
var formPlaceholders = []string{"PrincipalAmount", "InterestAmount", "TotalAmount"}

// echoBlock and echoLot read back the key the server says it answered for.
var (
	echoBlock = extract.Field{Name: "block", InputID: "Block"}
	echoLot   = extract.Field{Name: "lot", InputID: "Lot"}
)
