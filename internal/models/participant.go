package models

import "github.com/shopspring/decimal"

// Participant represents one person splitting the bill. Participants exist only
// for the lifetime of a session; IDs are small integers assigned by the registry
// and stable for the session.
type Participant struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	// Avatar is a decorative image reference shown next to the name.
	// Nothing load-bearing reads it.
	Avatar string `json:"avatar,omitempty"`

	// AdditionalFees is a per-person surcharge added on top of the proportional
	// shares. Currently always zero; reserved for future per-person fees.
	AdditionalFees decimal.Decimal `json:"additional_fees"`
}

// Assignments records how many units of each item each participant claims.
// The outer key is the participant ID, the inner key the item ID. The mapping
// is sparse: absence means zero, and zero-quantity entries are pruned so the
// two states stay indistinguishable.
type Assignments map[int]map[string]int

// AssignedQuantity returns how many units of the item the participant claims.
func (a Assignments) AssignedQuantity(participantID int, itemID string) int {
	return a[participantID][itemID]
}

// TotalAssigned returns how many units of the item are claimed by anyone.
func (a Assignments) TotalAssigned(itemID string) int {
	total := 0
	for _, items := range a {
		total += items[itemID]
	}
	return total
}

// Clone returns a deep copy, so callers can hand out snapshots without
// exposing the live maps.
func (a Assignments) Clone() Assignments {
	out := make(Assignments, len(a))
	for pid, items := range a {
		inner := make(map[string]int, len(items))
		for itemID, qty := range items {
			inner[itemID] = qty
		}
		out[pid] = inner
	}
	return out
}
