// Package ledger is the source of truth for who claims how many units of what.
package ledger

import (
	"fmt"

	"patungan/internal/models"
	"patungan/internal/shared"
)

// NoActivePerson is the active-participant value before anyone is selected.
const NoActivePerson = 0

// Ledger records item assignments for one session plus the participant
// currently receiving assignment actions. All mutations go through Assign, so
// the invariant "total assigned per item never exceeds the purchased quantity"
// is enforced at write time rather than checked defensively on read.
//
// Not safe for concurrent use; the owning session serializes access.
type Ledger struct {
	assignments models.Assignments
	activeID    int
}

// New returns an empty ledger with no active participant.
func New() *Ledger {
	return &Ledger{assignments: models.Assignments{}}
}

// SetActive selects the participant who receives subsequent assignment actions.
func (l *Ledger) SetActive(participantID int) {
	l.activeID = participantID
}

// Active returns the selected participant ID, or NoActivePerson.
func (l *Ledger) Active() int {
	return l.activeID
}

// AssignedQuantity returns how many units of the item the participant claims.
func (l *Ledger) AssignedQuantity(participantID int, itemID string) int {
	return l.assignments.AssignedQuantity(participantID, itemID)
}

// RemainingQuantity returns how many units of the item nobody has claimed yet.
// Never negative: Assign refuses any change that would overdraw the item.
func (l *Ledger) RemainingQuantity(item models.ReceiptItem) int {
	return item.Quantity - l.assignments.TotalAssigned(item.ID)
}

// Assign adjusts the active participant's claim on the item by delta
// (positive claims more, negative releases). It fails, changing nothing, when:
//
//   - no active participant is selected;
//   - the participant's quantity would go negative;
//   - a positive delta exceeds what is still unclaimed by anyone;
//   - the participant's quantity would exceed the item's purchased quantity.
//
// A claim that lands on exactly zero is pruned from the ledger, keeping the
// sparse representation minimal.
func (l *Ledger) Assign(item models.ReceiptItem, delta int) error {
	if l.activeID == NoActivePerson {
		return fmt.Errorf("%w: select a person before assigning items", shared.ErrValidation)
	}

	current := l.assignments.AssignedQuantity(l.activeID, item.ID)
	next := current + delta
	if next < 0 {
		return fmt.Errorf("%w: %s has only %d unit(s) assigned", shared.ErrValidation, item.Name, current)
	}
	remaining := l.RemainingQuantity(item)
	if delta > 0 && next > current+remaining {
		return fmt.Errorf("%w: only %d unit(s) of %s remain", shared.ErrValidation, remaining, item.Name)
	}
	if next > item.Quantity {
		return fmt.Errorf("%w: only %d unit(s) of %s were purchased", shared.ErrValidation, item.Quantity, item.Name)
	}

	if next == 0 {
		delete(l.assignments[l.activeID], item.ID)
		if len(l.assignments[l.activeID]) == 0 {
			delete(l.assignments, l.activeID)
		}
		return nil
	}

	if l.assignments[l.activeID] == nil {
		l.assignments[l.activeID] = make(map[string]int)
	}
	l.assignments[l.activeID][item.ID] = next
	return nil
}

// Reconcile drops claims the receipt no longer supports: claims on items that
// are gone, and every claim on an item whose assigned total now exceeds its
// purchased quantity. Clearing the whole item rather than shaving individual
// claims keeps the outcome independent of map iteration order; the affected
// item simply goes back to fully unassigned.
func (l *Ledger) Reconcile(r *models.Receipt) {
	over := make(map[string]bool)
	for _, item := range r.Items {
		if l.assignments.TotalAssigned(item.ID) > item.Quantity {
			over[item.ID] = true
		}
	}
	for pid, claims := range l.assignments {
		for itemID := range claims {
			if _, ok := r.Item(itemID); !ok || over[itemID] {
				delete(claims, itemID)
			}
		}
		if len(claims) == 0 {
			delete(l.assignments, pid)
		}
	}
}

// Assignments returns a deep-copied snapshot of the current claims.
func (l *Ledger) Assignments() models.Assignments {
	return l.assignments.Clone()
}

// Reset clears every assignment and the active-participant selection.
func (l *Ledger) Reset() {
	l.assignments = models.Assignments{}
	l.activeID = NoActivePerson
}
