package cmd

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field normalization: pure, total functions. Nothing here returns an
// error; every input, including empty and garbage, maps to a documented
// default so a bad cell never aborts a record.

const statusUnknown = "Não Informada"

// stripMarkup renders a cell that may carry embedded HTML down to its
// visible text. Empty-after-strip yields "", which callers treat as absent.
func stripMarkup(cell string) string {
	if cell == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cell))
	if err != nil {
		return strings.TrimSpace(cell)
	}
	return strings.TrimSpace(doc.Text())
}

// nullable maps "" to an explicit JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var dateBRPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// parseDate accepts exactly DD/MM/YYYY and returns the ISO form. Any other
// shape, including an already-ISO string, is absent; dates favor explicit
// nulls over guessed values.
func parseDate(text string) *string {
	cleaned := strings.TrimSpace(text)
	if !dateBRPattern.MatchString(cleaned) {
		return nil
	}
	t, err := time.Parse("02/01/2006", cleaned)
	if err != nil {
		return nil
	}
	iso := t.Format("2006-01-02")
	return &iso
}

// parseCurrency converts portal money text ("R$ 1.234,56") to a decimal.
// Parenthesis-wrapped values are negative, accountant style. Unparsable
// input is zero, not null: invoices without monetary text are zero-valued
// by convention so financial aggregation stays total.
func parseCurrency(text string) decimal.Decimal {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, " ", " ")
	negative := strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")")
	cleaned = strings.Trim(cleaned, "()")
	cleaned = strings.ReplaceAll(cleaned, "R$", "")
	cleaned = strings.Join(strings.Fields(cleaned), "")
	if strings.Contains(cleaned, ",") {
		// Brazilian notation: dot groups thousands, comma marks decimals.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return value.Neg()
	}
	return value
}

var statusTitleCaser = cases.Title(language.BrazilianPortuguese)

// Ordered: the first rule whose phrase appears in the lowered text wins.
var statusRules = []struct {
	phrase    string
	canonical string
}{
	{"apropriação em andamento", "Em Andamento"},
	{"em andamento", "Em Andamento"},
	{"apropriada", "Apropriada"},
	{"pendente", "Pendente"},
	{"cancelada", "Cancelada"},
	{"paga", "Paga"},
}

// canonicalizeStatus folds the portal's free-text situation field into a
// fixed vocabulary. Unknown but non-empty text passes through title-cased;
// empty text becomes the explicit "not informed" label.
func canonicalizeStatus(text string) string {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return statusUnknown
	}
	for _, rule := range statusRules {
		if strings.Contains(cleaned, rule.phrase) {
			return rule.canonical
		}
	}
	return statusTitleCaser.String(cleaned)
}

var vendorPattern = regexp.MustCompile(`^(\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2})\s*[-–]?\s*(.*)$`)

// splitVendor splits the portal's combined "CNPJ - name" supplier string.
// Text without a leading registration number is all name.
func splitVendor(text string) (cnpj, name *string) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, nil
	}
	if m := vendorPattern.FindStringSubmatch(cleaned); m != nil {
		return nullable(m[1]), nullable(strings.TrimSpace(m[2]))
	}
	return nil, nullable(cleaned)
}
