package models

import "github.com/shopspring/decimal"

// ReceiptItem represents a single purchased line item on a receipt.
type ReceiptItem struct {
	// ID is unique within a receipt. When the recognition service omits one,
	// normalization derives it deterministically from the item name and index.
	ID string `json:"id"`

	// Name is the item description as printed on the receipt (e.g., "Es Kopi Susu").
	Name string `json:"name"`

	// UnitPrice is the price of one unit. Never negative after normalization.
	UnitPrice decimal.Decimal `json:"unit_price"`

	// Quantity is the originally purchased count. Always >= 1.
	Quantity int `json:"quantity"`

	// LineTotal is the printed line amount. Derived as UnitPrice * Quantity when
	// the source document omits it.
	LineTotal decimal.Decimal `json:"line_total"`
}

// ReceiptTotals holds the receipt-level amounts. Absent source fields default to
// zero; negative inputs are clamped to zero during normalization.
type ReceiptTotals struct {
	Total         decimal.Decimal `json:"total"`
	Discount      decimal.Decimal `json:"discount"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	Tax           decimal.Decimal `json:"tax"`

	// Payment is the amount tendered. Informational only; it never enters the split.
	Payment decimal.Decimal `json:"payment"`
}

// Receipt is the canonical structured representation of a parsed receipt.
// It is produced from the recognition service response and may be replaced
// wholesale by a user-edited copy. Edits are full-document overwrites, not
// field-level merges.
type Receipt struct {
	ShopName    string        `json:"shop_name"`
	ShopAddress string        `json:"shop_address"`
	Date        string        `json:"date"`
	Items       []ReceiptItem `json:"items"`
	Totals      ReceiptTotals `json:"totals"`
}

// Item returns the item with the given ID, or false when no such item exists.
func (r *Receipt) Item(itemID string) (ReceiptItem, bool) {
	for _, item := range r.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return ReceiptItem{}, false
}

// Subtotal is the sum of UnitPrice * Quantity across every item. This is the
// denominator for every proportional share and the grand total the assignment
// phase reconciles against.
func (r *Receipt) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range r.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}
