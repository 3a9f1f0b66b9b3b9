// Package session orchestrates the linear bill-splitting workflow.
//
// A session owns one bill's state: the normalized receipt, the participant
// registry and the assignment ledger. The UI layer drives it with transition
// requests; the session only answers "allowed" or "blocked with reason" and
// never initiates navigation itself.
package session

import (
	"fmt"
	"sync"
	"time"

	"patungan/internal/calculator"
	"patungan/internal/ledger"
	"patungan/internal/models"
	"patungan/internal/receipt"
	"patungan/internal/registry"
	"patungan/internal/shared"
)

// Stage identifies where in the workflow a session is.
type Stage string

const (
	StageCapturing              Stage = "capturing"
	StageReviewing              Stage = "reviewing"
	StageCollectingParticipants Stage = "collecting_participants"
	StageAssigning              Stage = "assigning"
	StageCompleted              Stage = "completed"
)

// Session is one in-flight bill. All state is in memory and dies with the
// session. Methods serialize access internally: each user action mutates the
// session atomically, so no partial-update state is ever observable.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time

	stage    Stage
	receipt  *models.Receipt
	imageURI string

	registry     *registry.Registry
	ledger       *ledger.Ledger
	participants []models.Participant // finalized list, set when assigning begins
}

func newSession(id string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
		stage:     StageCapturing,
		registry:  registry.New(),
		ledger:    ledger.New(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Stage returns the current workflow stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Receipt returns the current receipt, or nil before one is captured.
func (s *Session) Receipt() *models.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipt
}

// ImageURI returns the captured receipt image as a data URI, for display.
func (s *Session) ImageURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageURI
}

// SetReceipt installs a freshly recognized receipt and advances
// Capturing -> Reviewing. Recognition failures never reach this point, so the
// session stays in Capturing until a receipt actually exists.
func (s *Session) SetReceipt(r *models.Receipt, imageURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageCapturing {
		return fmt.Errorf("%w: a receipt was already captured; reset to start a new bill", shared.ErrBlocked)
	}
	s.receipt = receipt.NormalizeReceipt(r)
	s.imageURI = imageURI
	s.stage = StageReviewing
	return nil
}

// EditReceipt replaces the receipt wholesale with a user-edited copy.
// Previously displayed splits are invalidated implicitly: every breakdown is
// recomputed from the current receipt, never patched. Claims the edited
// receipt can no longer support are dropped so the ledger never carries more
// assigned units than an item has.
func (s *Session) EditReceipt(r *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		return fmt.Errorf("%w: no receipt to edit", shared.ErrBlocked)
	}
	s.receipt = receipt.NormalizeReceipt(r)
	s.ledger.Reconcile(s.receipt)
	return nil
}

// CollectParticipants advances Reviewing -> CollectingParticipants and seeds
// the registry with two blank participants on first entry.
func (s *Session) CollectParticipants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		return fmt.Errorf("%w: capture a receipt first", shared.ErrBlocked)
	}
	if s.stage != StageReviewing && s.stage != StageCollectingParticipants {
		return fmt.Errorf("%w: cannot collect participants while %s", shared.ErrBlocked, s.stage)
	}
	s.registry.Initialize()
	s.stage = StageCollectingParticipants
	return nil
}

// WithRegistry runs fn against the participant registry, atomically with the
// stage check. Participant edits are only allowed while collecting.
func (s *Session) WithRegistry(fn func(*registry.Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageCollectingParticipants {
		return fmt.Errorf("%w: participants can only be edited while collecting", shared.ErrBlocked)
	}
	return fn(s.registry)
}

// Participants returns the finalized list once assigning has begun, or the
// in-progress registry contents before that.
func (s *Session) Participants() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participants != nil {
		out := make([]models.Participant, len(s.participants))
		copy(out, s.participants)
		return out
	}
	return s.registry.Participants()
}

// BeginAssigning finalizes the registry and advances
// CollectingParticipants -> Assigning. The first finalized participant becomes
// the active person so assignment actions have a target immediately.
func (s *Session) BeginAssigning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageCollectingParticipants {
		return fmt.Errorf("%w: cannot start assigning while %s", shared.ErrBlocked, s.stage)
	}
	finalized, err := s.registry.Finalize()
	if err != nil {
		return err
	}
	s.participants = finalized
	s.ledger.SetActive(finalized[0].ID)
	s.stage = StageAssigning
	return nil
}

// SetActivePerson selects who receives subsequent assignment actions.
func (s *Session) SetActivePerson(participantID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageAssigning {
		return fmt.Errorf("%w: not in the assigning stage", shared.ErrBlocked)
	}
	for _, p := range s.participants {
		if p.ID == participantID {
			s.ledger.SetActive(participantID)
			return nil
		}
	}
	return fmt.Errorf("%w: participant %d", shared.ErrNotFound, participantID)
}

// ActivePerson returns the selected participant ID, or ledger.NoActivePerson.
func (s *Session) ActivePerson() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Active()
}

// Assign adjusts the active person's claim on an item by delta.
func (s *Session) Assign(itemID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageAssigning {
		return fmt.Errorf("%w: not in the assigning stage", shared.ErrBlocked)
	}
	item, ok := s.receipt.Item(itemID)
	if !ok {
		return fmt.Errorf("%w: item %q", shared.ErrNotFound, itemID)
	}
	return s.ledger.Assign(item, delta)
}

// Breakdown recomputes the full allocation from current state.
func (s *Session) Breakdown() calculator.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		return calculator.Summary{}
	}
	participants := s.participants
	if participants == nil {
		participants = s.registry.Participants()
	}
	return calculator.Allocate(s.receipt, s.ledger.Assignments(), participants)
}

// Complete advances Assigning -> Completed. It is blocked while any purchased
// value remains unassigned; the check is an exact decimal comparison.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageAssigning {
		return fmt.Errorf("%w: not in the assigning stage", shared.ErrBlocked)
	}
	summary := calculator.Allocate(s.receipt, s.ledger.Assignments(), s.participants)
	if !summary.Complete() {
		return fmt.Errorf("%w: %s of the bill is still unassigned", shared.ErrBlocked, summary.Remaining.String())
	}
	s.stage = StageCompleted
	return nil
}

// Reset returns the session to Capturing from any stage, clearing the
// receipt, participants, assignments and active-person selection.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipt = nil
	s.imageURI = ""
	s.registry.Reset()
	s.ledger.Reset()
	s.participants = nil
	s.stage = StageCapturing
}
