// Package registry manages the set of people splitting the bill.
package registry

import (
	"fmt"
	"strings"

	"patungan/internal/models"
	"patungan/internal/shared"
)

// MinParticipants is the smallest registry the workflow accepts. A bill split
// with fewer than two people is not a split.
const MinParticipants = 2

// Registry holds the participants for one session. It is not safe for
// concurrent use; the owning session serializes access.
type Registry struct {
	participants []models.Participant
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Initialize seeds the registry with two blank participants so the collection
// screen always starts with the minimum. Calling it on a non-empty registry
// does nothing.
func (r *Registry) Initialize() {
	if len(r.participants) > 0 {
		return
	}
	r.participants = []models.Participant{
		{ID: 1},
		{ID: 2},
	}
}

// Add appends a blank participant with a fresh ID (max existing + 1) and
// returns it.
func (r *Registry) Add() models.Participant {
	id := 1
	for _, p := range r.participants {
		if p.ID >= id {
			id = p.ID + 1
		}
	}
	p := models.Participant{ID: id}
	r.participants = append(r.participants, p)
	return p
}

// Rename sets the participant's name. Uniqueness is not enforced here;
// Finalize rejects duplicates when the collection phase ends.
func (r *Registry) Rename(id int, name string) error {
	for i := range r.participants {
		if r.participants[i].ID == id {
			r.participants[i].Name = name
			return nil
		}
	}
	return fmt.Errorf("%w: participant %d", shared.ErrNotFound, id)
}

// Remove deletes a participant. It fails, leaving the registry untouched,
// when removal would drop below MinParticipants.
func (r *Registry) Remove(id int) error {
	if len(r.participants) <= MinParticipants {
		return fmt.Errorf("%w: at least %d participants are required", shared.ErrValidation, MinParticipants)
	}
	for i := range r.participants {
		if r.participants[i].ID == id {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: participant %d", shared.ErrNotFound, id)
}

// Participants returns a copy of the current list, blanks included.
func (r *Registry) Participants() []models.Participant {
	out := make([]models.Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// Len reports how many participants are registered, blanks included.
func (r *Registry) Len() int {
	return len(r.participants)
}

// Reset drops every participant.
func (r *Registry) Reset() {
	r.participants = nil
}

// Finalize trims names, drops participants whose name is empty after
// trimming, and returns the finalized list. It fails when nobody remains or
// when two remaining names collide case-insensitively ("Alice" vs "alice ").
// On failure the registry is left unchanged so the user can keep editing.
func (r *Registry) Finalize() ([]models.Participant, error) {
	named := make([]models.Participant, 0, len(r.participants))
	seen := make(map[string]string, len(r.participants))
	for _, p := range r.participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate participant names %q and %q", shared.ErrValidation, other, name)
		}
		seen[key] = name
		p.Name = name
		named = append(named, p)
	}
	if len(named) == 0 {
		return nil, fmt.Errorf("%w: enter at least one participant name", shared.ErrValidation)
	}
	r.participants = named
	return r.Participants(), nil
}
