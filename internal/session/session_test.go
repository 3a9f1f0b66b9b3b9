package session

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"patungan/internal/models"
	"patungan/internal/registry"
	"patungan/internal/shared"
)

func coffeeReceipt() *models.Receipt {
	return &models.Receipt{
		ShopName: "Kopi Tuku",
		Items: []models.ReceiptItem{
			{Name: "Coffee", UnitPrice: decimal.NewFromInt(20000), Quantity: 2},
		},
		Totals: models.ReceiptTotals{
			Total:         decimal.NewFromInt(40000),
			Discount:      decimal.NewFromInt(4000),
			ServiceCharge: decimal.NewFromInt(2000),
			Tax:           decimal.NewFromInt(1800),
		},
	}
}

// driveToAssigning walks a fresh session to the assigning stage with Alice
// and Bob registered.
func driveToAssigning(t *testing.T) *Session {
	t.Helper()
	s := NewStore().Create()

	if err := s.SetReceipt(coffeeReceipt(), ""); err != nil {
		t.Fatalf("SetReceipt failed: %v", err)
	}
	if err := s.CollectParticipants(); err != nil {
		t.Fatalf("CollectParticipants failed: %v", err)
	}
	err := s.WithRegistry(func(reg *registry.Registry) error {
		if err := reg.Rename(1, "Alice"); err != nil {
			return err
		}
		return reg.Rename(2, "Bob")
	})
	if err != nil {
		t.Fatalf("naming participants failed: %v", err)
	}
	if err := s.BeginAssigning(); err != nil {
		t.Fatalf("BeginAssigning failed: %v", err)
	}
	return s
}

func TestFullFlowToCompletion(t *testing.T) {
	s := driveToAssigning(t)

	if s.Stage() != StageAssigning {
		t.Fatalf("stage = %s, want assigning", s.Stage())
	}
	// First participant is active by default.
	if s.ActivePerson() != 1 {
		t.Fatalf("active = %d, want 1", s.ActivePerson())
	}

	itemID := s.Receipt().Items[0].ID
	if err := s.Assign(itemID, 1); err != nil {
		t.Fatalf("Alice's claim failed: %v", err)
	}
	if err := s.SetActivePerson(2); err != nil {
		t.Fatalf("SetActivePerson failed: %v", err)
	}
	if err := s.Assign(itemID, 1); err != nil {
		t.Fatalf("Bob's claim failed: %v", err)
	}

	summary := s.Breakdown()
	if !summary.Remaining.IsZero() {
		t.Fatalf("remaining = %s, want 0", summary.Remaining)
	}
	for _, share := range summary.Shares {
		if !share.Total.Equal(decimal.NewFromInt(19900)) {
			t.Errorf("%s owes %s, want 19900", share.Participant.Name, share.Total)
		}
	}

	if err := s.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if s.Stage() != StageCompleted {
		t.Errorf("stage = %s, want completed", s.Stage())
	}
}

func TestCompleteBlockedWhileValueUnassigned(t *testing.T) {
	s := driveToAssigning(t)
	itemID := s.Receipt().Items[0].ID

	// Only Alice claims; half the bill is unassigned.
	if err := s.Assign(itemID, 1); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	err := s.Complete()
	if !errors.Is(err, shared.ErrBlocked) {
		t.Fatalf("error = %v, want blocked", err)
	}
	if s.Stage() != StageAssigning {
		t.Errorf("stage = %s, want assigning after refused completion", s.Stage())
	}
}

func TestSetReceiptOnlyFromCapturing(t *testing.T) {
	s := NewStore().Create()
	if err := s.SetReceipt(coffeeReceipt(), ""); err != nil {
		t.Fatalf("SetReceipt failed: %v", err)
	}
	if s.Stage() != StageReviewing {
		t.Fatalf("stage = %s, want reviewing", s.Stage())
	}
	if err := s.SetReceipt(coffeeReceipt(), ""); !errors.Is(err, shared.ErrBlocked) {
		t.Errorf("second SetReceipt error = %v, want blocked", err)
	}
}

func TestCollectParticipantsRequiresReceipt(t *testing.T) {
	s := NewStore().Create()
	if err := s.CollectParticipants(); !errors.Is(err, shared.ErrBlocked) {
		t.Errorf("error = %v, want blocked", err)
	}
	if s.Stage() != StageCapturing {
		t.Errorf("stage = %s, want capturing", s.Stage())
	}
}

func TestEditReceiptInvalidatesNothingButRecomputes(t *testing.T) {
	s := driveToAssigning(t)
	itemID := s.Receipt().Items[0].ID
	if err := s.Assign(itemID, 2); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Double the price; the breakdown must reflect the new receipt, computed
	// fresh rather than patched.
	edited := coffeeReceipt()
	edited.Items[0].UnitPrice = decimal.NewFromInt(40000)
	if err := s.EditReceipt(edited); err != nil {
		t.Fatalf("EditReceipt failed: %v", err)
	}

	summary := s.Breakdown()
	if !summary.GrandTotal.Equal(decimal.NewFromInt(80000)) {
		t.Errorf("grand total = %s, want 80000", summary.GrandTotal)
	}
}

func TestEditReceiptDropsExcessClaims(t *testing.T) {
	s := driveToAssigning(t)
	itemID := s.Receipt().Items[0].ID
	if err := s.Assign(itemID, 2); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// The edit sells only one coffee, so the two claimed units can no longer
	// stand. The item goes back to unassigned rather than carrying more
	// claims than quantity.
	edited := coffeeReceipt()
	edited.Items[0].Quantity = 1
	if err := s.EditReceipt(edited); err != nil {
		t.Fatalf("EditReceipt failed: %v", err)
	}

	summary := s.Breakdown()
	if !summary.TotalAssigned.IsZero() {
		t.Errorf("total assigned = %s, want 0 after the edit", summary.TotalAssigned)
	}
	if !summary.Remaining.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("remaining = %s, want 20000", summary.Remaining)
	}

	// The single remaining unit can be claimed and the split finished.
	if err := s.Assign(itemID, 1); err != nil {
		t.Fatalf("re-claim failed: %v", err)
	}
	if err := s.Complete(); err != nil {
		t.Errorf("Complete after reconciled edit failed: %v", err)
	}
}

func TestBeginAssigningPropagatesFinalizeError(t *testing.T) {
	s := NewStore().Create()
	if err := s.SetReceipt(coffeeReceipt(), ""); err != nil {
		t.Fatalf("SetReceipt failed: %v", err)
	}
	if err := s.CollectParticipants(); err != nil {
		t.Fatalf("CollectParticipants failed: %v", err)
	}

	// Both participants blank: finalize must fail and the stage must hold.
	if err := s.BeginAssigning(); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if s.Stage() != StageCollectingParticipants {
		t.Errorf("stage = %s, want collecting_participants", s.Stage())
	}
}

func TestResetFromAnyStage(t *testing.T) {
	s := driveToAssigning(t)
	itemID := s.Receipt().Items[0].ID
	if err := s.Assign(itemID, 1); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	s.Reset()

	if s.Stage() != StageCapturing {
		t.Errorf("stage = %s, want capturing", s.Stage())
	}
	if s.Receipt() != nil {
		t.Error("receipt not cleared")
	}
	if len(s.Participants()) != 0 {
		t.Errorf("participants not cleared: %v", s.Participants())
	}
	if s.ActivePerson() != 0 {
		t.Errorf("active person not cleared: %d", s.ActivePerson())
	}

	// The session is reusable for a fresh bill.
	if err := s.SetReceipt(coffeeReceipt(), ""); err != nil {
		t.Errorf("SetReceipt after reset failed: %v", err)
	}
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore()
	s := store.Create()

	got, err := store.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get returned %v, %v", got, err)
	}

	store.Delete(s.ID())
	if _, err := store.Get(s.ID()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("error after delete = %v, want not found", err)
	}
	if store.Len() != 0 {
		t.Errorf("len = %d, want 0", store.Len())
	}
}
