// Package calculator computes per-person cost breakdowns for a bill.
//
// Everything here is a pure function of (receipt, assignments, participants):
// no hidden state, deterministic, and cheap enough to recompute on every
// change rather than patch incrementally.
package calculator

import (
	"github.com/shopspring/decimal"

	"patungan/internal/models"
)

// AssignedItem is one participant's claim on a receipt item, with the value
// of that claim.
type AssignedItem struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"` // unit price x claimed quantity
}

// PersonShare is the calculated breakdown for one participant.
type PersonShare struct {
	Participant models.Participant `json:"participant"`

	// Subtotal is the value of the participant's claimed items.
	Subtotal decimal.Decimal `json:"subtotal"`

	// Discount, ServiceCharge and Tax are the participant's proportional
	// slices of the receipt-level amounts.
	Discount      decimal.Decimal `json:"discount"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	Tax           decimal.Decimal `json:"tax"`

	// Total is what the participant owes:
	// subtotal - discount + service charge + tax + additional fees.
	Total decimal.Decimal `json:"total"`

	Items []AssignedItem `json:"items"`
}

// Summary is the whole-bill view of an assignment state.
type Summary struct {
	// GrandTotal is the sum of unit price x purchased quantity over all items.
	// The receipt-level discount, service charge and tax are distributed into
	// the per-person shares, not added again here.
	GrandTotal decimal.Decimal `json:"grand_total"`

	// TotalAssigned is the value claimed by everyone so far.
	TotalAssigned decimal.Decimal `json:"total_assigned"`

	// Remaining is GrandTotal - TotalAssigned. The split is complete exactly
	// when this is zero; decimal arithmetic makes the comparison exact.
	Remaining decimal.Decimal `json:"remaining"`

	Shares []PersonShare `json:"shares"`
}

// Complete reports whether every purchased unit's value has been claimed.
func (s Summary) Complete() bool {
	return s.Remaining.IsZero()
}

// Subtotal returns the value of one participant's claimed items. Claims on
// item IDs that no longer exist on the receipt count as zero.
func Subtotal(r *models.Receipt, assignments models.Assignments, participantID int) decimal.Decimal {
	sum := decimal.Zero
	for itemID, qty := range assignments[participantID] {
		item, ok := r.Item(itemID)
		if !ok {
			continue
		}
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}
	return sum
}

// DiscountShare returns the participant's proportional slice of the global
// discount: subtotal / receiptSubtotal x discount. Zero when the receipt
// subtotal is zero.
func DiscountShare(r *models.Receipt, assignments models.Assignments, participantID int) decimal.Decimal {
	receiptSubtotal := r.Subtotal()
	if receiptSubtotal.IsZero() {
		return decimal.Zero
	}
	subtotal := Subtotal(r, assignments, participantID)
	return subtotal.Div(receiptSubtotal).Mul(r.Totals.Discount)
}

// ServiceChargeShare returns the participant's slice of the service charge,
// proportional to their post-discount subtotal against the post-discount
// receipt subtotal. Zero when that denominator is zero or negative.
func ServiceChargeShare(r *models.Receipt, assignments models.Assignments, participantID int) decimal.Decimal {
	denom := r.Subtotal().Sub(r.Totals.Discount)
	if !denom.IsPositive() {
		return decimal.Zero
	}
	numer := Subtotal(r, assignments, participantID).Sub(DiscountShare(r, assignments, participantID))
	return numer.Div(denom).Mul(r.Totals.ServiceCharge)
}

// TaxShare returns the participant's slice of the tax, proportional to their
// subtotal after discount and service charge against the receipt subtotal
// after the same adjustments. Zero when that denominator is zero or negative.
func TaxShare(r *models.Receipt, assignments models.Assignments, participantID int) decimal.Decimal {
	denom := r.Subtotal().Sub(r.Totals.Discount).Add(r.Totals.ServiceCharge)
	if !denom.IsPositive() {
		return decimal.Zero
	}
	numer := Subtotal(r, assignments, participantID).
		Sub(DiscountShare(r, assignments, participantID)).
		Add(ServiceChargeShare(r, assignments, participantID))
	return numer.Div(denom).Mul(r.Totals.Tax)
}

// Allocate computes the full breakdown for every participant plus the
// whole-bill reconciliation totals.
func Allocate(r *models.Receipt, assignments models.Assignments, participants []models.Participant) Summary {
	summary := Summary{
		GrandTotal:    r.Subtotal(),
		TotalAssigned: decimal.Zero,
		Shares:        make([]PersonShare, 0, len(participants)),
	}

	for _, p := range participants {
		share := PersonShare{
			Participant:   p,
			Subtotal:      Subtotal(r, assignments, p.ID),
			Discount:      DiscountShare(r, assignments, p.ID),
			ServiceCharge: ServiceChargeShare(r, assignments, p.ID),
			Tax:           TaxShare(r, assignments, p.ID),
			Items:         assignedItems(r, assignments, p.ID),
		}
		share.Total = share.Subtotal.
			Sub(share.Discount).
			Add(share.ServiceCharge).
			Add(share.Tax).
			Add(p.AdditionalFees)

		summary.TotalAssigned = summary.TotalAssigned.Add(share.Subtotal)
		summary.Shares = append(summary.Shares, share)
	}

	summary.Remaining = summary.GrandTotal.Sub(summary.TotalAssigned)
	return summary
}

// assignedItems lists the participant's claims in receipt order so breakdowns
// render stably.
func assignedItems(r *models.Receipt, assignments models.Assignments, participantID int) []AssignedItem {
	claims := assignments[participantID]
	if len(claims) == 0 {
		return nil
	}
	items := make([]AssignedItem, 0, len(claims))
	for _, item := range r.Items {
		qty, ok := claims[item.ID]
		if !ok {
			continue
		}
		items = append(items, AssignedItem{
			ItemID:   item.ID,
			Name:     item.Name,
			Quantity: qty,
			Amount:   item.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return items
}
