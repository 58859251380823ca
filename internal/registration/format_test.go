package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatters(t *testing.T) {
	t.Run("postal code", func(t *testing.T) {
		tests := map[string]string{
			"":            "",
			"0100":        "0100",
			"01001000":    "01001-000",
			"01001-000":   "01001-000",
			"0100100099":  "01001-000",
			"abc01001000": "01001-000",
		}
		for in, want := range tests {
			assert.Equal(t, want, FormatPostalCode(in), in)
		}
	})

	t.Run("document", func(t *testing.T) {
		tests := map[string]string{
			"12345678":           "12345678",
			"123456789":          "123.456.789",
			"12345678901":        "123.456.789-01",
			"123.456.789-01":     "123.456.789-01",
			"123456789012":       "12.345.678/9012",
			"12345678000195":     "12.345.678/0001-95",
			"12.345.678/0001-95": "12.345.678/0001-95",
		}
		for in, want := range tests {
			assert.Equal(t, want, FormatDocument(in), in)
		}
	})

	t.Run("phone", func(t *testing.T) {
		tests := map[string]string{
			"":                "",
			"11":              "(11",
			"119":             "(11) 9",
			"1133334444":      "(11) 3333-4444",
			"11933334444":     "(11) 93333-4444",
			"(11) 93333-4444": "(11) 93333-4444",
		}
		for in, want := range tests {
			assert.Equal(t, want, FormatPhone(in), in)
		}
	})
}

func TestFormNormalize(t *testing.T) {
	f := Form{
		Company: Company{Name: "  Acme  ", Schema: " ACME ", Document: "12345678000195"},
		Admin:   Admin{Email: " Ana@Acme.COM ", Phone: "11933334444"},
		Address: Address{PostalCode: "01001000", State: "sp"},
	}
	f.Normalize()

	assert.Equal(t, "Acme", f.Company.Name)
	assert.Equal(t, "acme", f.Company.Schema)
	assert.Equal(t, "12.345.678/0001-95", f.Company.Document)
	assert.Equal(t, "ana@acme.com", f.Admin.Email)
	assert.Equal(t, "(11) 93333-4444", f.Admin.Phone)
	assert.Equal(t, "01001-000", f.Address.PostalCode)
	assert.Equal(t, "SP", f.Address.State)
}
