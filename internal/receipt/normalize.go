// Package receipt converts the loosely-typed document returned by the
// recognition service into the canonical models.Receipt shape.
//
// The service is an opaque collaborator and its output is best-effort: numeric
// fields arrive as numbers or formatted strings ("12,000"), whole sections may
// be missing, and the tax amount is sometimes nested one level deep. Every
// coercion here follows the same rule: parse as decimal, and on failure or
// absence substitute zero. Malformed shapes are never a failure, only defaults.
package receipt

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"patungan/internal/models"
)

// Document is the raw receipt payload as produced by the recognition service.
// Numeric fields are kept as json.RawMessage because the service emits them
// inconsistently as numbers or strings.
type Document struct {
	ShopName    string          `json:"shop_name"`
	ShopAddress string          `json:"shop_address"`
	Date        string          `json:"date"`
	Items       []DocumentItem  `json:"items"`
	Totals      *DocumentTotals `json:"totals"`

	// Some responses carry these at the top level instead of inside totals.
	ServiceCharge json.RawMessage `json:"service_charge"`
	TaxAmount     json.RawMessage `json:"tax_amount"`
}

// DocumentItem is one loosely-typed line item.
type DocumentItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    json.RawMessage `json:"price"`
	Quantity json.RawMessage `json:"quantity"`
	Total    json.RawMessage `json:"total"`
}

// DocumentTotals is the loosely-typed totals block.
type DocumentTotals struct {
	Total         json.RawMessage `json:"total"`
	Discount      json.RawMessage `json:"discount"`
	ServiceCharge json.RawMessage `json:"service_charge"`
	Tax           json.RawMessage `json:"tax"` // number, string, or {"total_tax": ...}
	Payment       json.RawMessage `json:"payment"`
}

// nestedTax matches the {"total_tax": ...} variant of the tax field.
type nestedTax struct {
	TotalTax json.RawMessage `json:"total_tax"`
}

// Parse decodes raw JSON into a Document. An empty body is an error; anything
// that decodes is accepted and left to Normalize to make sense of.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Normalize converts a Document into the canonical Receipt. It never fails:
// unparseable fields become zero, missing quantities become one, and items
// without an ID get one derived from their name and position.
func Normalize(doc *Document) *models.Receipt {
	r := &models.Receipt{
		ShopName:    doc.ShopName,
		ShopAddress: doc.ShopAddress,
		Date:        doc.Date,
		Items:       make([]models.ReceiptItem, 0, len(doc.Items)),
	}

	for _, item := range doc.Items {
		r.Items = append(r.Items, models.ReceiptItem{
			ID:        item.ID,
			Name:      item.Name,
			UnitPrice: parseAmount(item.Price),
			Quantity:  parseQuantity(item.Quantity),
			LineTotal: parseAmount(item.Total),
		})
	}

	if t := doc.Totals; t != nil {
		r.Totals = models.ReceiptTotals{
			Total:         parseAmount(t.Total),
			Discount:      parseAmount(t.Discount),
			ServiceCharge: parseAmount(t.ServiceCharge),
			Tax:           parseTax(t.Tax),
			Payment:       parseAmount(t.Payment),
		}
	}
	// The top-level service_charge is authoritative when present; the totals
	// block is only a fallback. Tax works the other way around: the nested
	// totals.tax wins and the top-level tax_amount fills gaps.
	if sc := parseAmount(doc.ServiceCharge); !sc.IsZero() {
		r.Totals.ServiceCharge = sc
	}
	if r.Totals.Tax.IsZero() {
		r.Totals.Tax = parseAmount(doc.TaxAmount)
	}

	return NormalizeReceipt(r)
}

// NormalizeReceipt enforces the canonical invariants on a Receipt, whether it
// came from the recognition service or a user edit: non-negative money,
// quantity >= 1, derived item IDs and line totals. It is idempotent, so
// re-normalizing an already-normalized receipt changes nothing.
func NormalizeReceipt(r *models.Receipt) *models.Receipt {
	out := &models.Receipt{
		ShopName:    r.ShopName,
		ShopAddress: r.ShopAddress,
		Date:        r.Date,
		Items:       make([]models.ReceiptItem, len(r.Items)),
		Totals: models.ReceiptTotals{
			Total:         clampNonNegative(r.Totals.Total),
			Discount:      clampNonNegative(r.Totals.Discount),
			ServiceCharge: clampNonNegative(r.Totals.ServiceCharge),
			Tax:           clampNonNegative(r.Totals.Tax),
			Payment:       r.Totals.Payment,
		},
	}

	for i, item := range r.Items {
		norm := models.ReceiptItem{
			ID:        item.ID,
			Name:      item.Name,
			UnitPrice: clampNonNegative(item.UnitPrice),
			Quantity:  item.Quantity,
			LineTotal: clampNonNegative(item.LineTotal),
		}
		if norm.Quantity < 1 {
			norm.Quantity = 1
		}
		if norm.ID == "" {
			norm.ID = deriveItemID(norm.Name, i)
		}
		if norm.LineTotal.IsZero() {
			norm.LineTotal = norm.UnitPrice.Mul(decimal.NewFromInt(int64(norm.Quantity)))
		}
		out.Items[i] = norm
	}

	return out
}

// deriveItemID builds a stable item identifier from the name and position,
// e.g. "Es Kopi Susu" at index 2 becomes "es_kopi_susu_2".
func deriveItemID(name string, index int) string {
	slug := strings.Map(func(run rune) rune {
		if unicode.IsSpace(run) {
			return '_'
		}
		return unicode.ToLower(run)
	}, name)
	return slug + "_" + strconv.Itoa(index)
}

// parseAmount coerces a raw JSON value into a non-negative decimal.
// Accepts numbers and formatted strings; anything else is zero.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	return clampNonNegative(parseDecimal(raw))
}

// parseTax handles the three observed shapes of the tax field: a plain number,
// a formatted string, or an object carrying total_tax.
func parseTax(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	var nested nestedTax
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested.TotalTax) > 0 {
		return parseAmount(nested.TotalTax)
	}
	return parseAmount(raw)
}

// parseQuantity coerces a raw JSON value into a purchase count, floored at 1.
func parseQuantity(raw json.RawMessage) int {
	d := parseDecimal(raw)
	qty := int(d.IntPart())
	if qty < 1 {
		return 1
	}
	return qty
}

// parseDecimal is the single coercion point: JSON number or string to decimal,
// stripping digit-group separators from formatted strings. Failure is zero.
func parseDecimal(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if d, err := decimal.NewFromString(num.String()); err == nil {
			return d
		}
		return decimal.Zero
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
