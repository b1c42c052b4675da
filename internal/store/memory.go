package store

import (
	"context"
	"fmt"
	"sync"

	"dispatcher/internal/models"
)

// MemoryStore keeps cases and hospitals in process memory.
// Listings preserve insertion order and always return copies.
type MemoryStore struct {
	mu sync.RWMutex

	cases     []models.Case
	caseIndex map[string]int

	hospitals     []models.Hospital
	hospitalIndex map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:         make([]models.Case, 0),
		caseIndex:     make(map[string]int),
		hospitals:     make([]models.Hospital, 0),
		hospitalIndex: make(map[string]int),
	}
}

// ListCases returns all cases in insertion order
func (s *MemoryStore) ListCases(ctx context.Context) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Case, len(s.cases))
	for i, c := range s.cases {
		result[i] = cloneCase(c)
	}
	return result, nil
}

// GetCase returns the case with the given ID
func (s *MemoryStore) GetCase(ctx context.Context, id string) (models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.caseIndex[id]
	if !ok {
		return models.Case{}, fmt.Errorf("case %s: %w", id, ErrNotFound)
	}
	return cloneCase(s.cases[i]), nil
}

// SaveCase inserts or replaces a case
func (s *MemoryStore) SaveCase(ctx context.Context, c models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c = cloneCase(c)
	if i, ok := s.caseIndex[c.ID]; ok {
		s.cases[i] = c
		return nil
	}
	s.caseIndex[c.ID] = len(s.cases)
	s.cases = append(s.cases, c)
	return nil
}

// DeleteCase removes a case
func (s *MemoryStore) DeleteCase(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.caseIndex[id]
	if !ok {
		return fmt.Errorf("case %s: %w", id, ErrNotFound)
	}
	s.cases = append(s.cases[:i], s.cases[i+1:]...)
	delete(s.caseIndex, id)
	for j := i; j < len(s.cases); j++ {
		s.caseIndex[s.cases[j].ID] = j
	}
	return nil
}

// SetAssignments updates the assigned hospital of existing cases
func (s *MemoryStore) SetAssignments(ctx context.Context, assignments map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, hospital := range assignments {
		if i, ok := s.caseIndex[id]; ok {
			s.cases[i].AssignTo(hospital)
		}
	}
	return nil
}

// ListHospitals returns the registry in insertion order
func (s *MemoryStore) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Hospital, len(s.hospitals))
	for i, h := range s.hospitals {
		result[i] = cloneHospital(h)
	}
	return result, nil
}

// GetHospital returns the hospital with the given name
func (s *MemoryStore) GetHospital(ctx context.Context, name string) (models.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.hospitalIndex[name]
	if !ok {
		return models.Hospital{}, fmt.Errorf("hospital %s: %w", name, ErrNotFound)
	}
	return cloneHospital(s.hospitals[i]), nil
}

// SaveHospital inserts or replaces a hospital keyed by name
func (s *MemoryStore) SaveHospital(ctx context.Context, h models.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h = cloneHospital(h)
	if i, ok := s.hospitalIndex[h.Name]; ok {
		s.hospitals[i] = h
		return nil
	}
	s.hospitalIndex[h.Name] = len(s.hospitals)
	s.hospitals = append(s.hospitals, h)
	return nil
}

// DeleteHospital removes a hospital from the registry
func (s *MemoryStore) DeleteHospital(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.hospitalIndex[name]
	if !ok {
		return fmt.Errorf("hospital %s: %w", name, ErrNotFound)
	}
	s.hospitals = append(s.hospitals[:i], s.hospitals[i+1:]...)
	delete(s.hospitalIndex, name)
	for j := i; j < len(s.hospitals); j++ {
		s.hospitalIndex[s.hospitals[j].Name] = j
	}
	return nil
}

func cloneCase(c models.Case) models.Case {
	c.Symptoms = append([]string(nil), c.Symptoms...)
	c.ChronicDiseases = append([]string(nil), c.ChronicDiseases...)
	if c.Patients != nil {
		patients := make([]models.Patient, len(c.Patients))
		for i, p := range c.Patients {
			p.Symptoms = append([]string(nil), p.Symptoms...)
			patients[i] = p
		}
		c.Patients = patients
	}
	if c.AssignedHospital != nil {
		name := *c.AssignedHospital
		c.AssignedHospital = &name
	}
	return c
}

func cloneHospital(h models.Hospital) models.Hospital {
	caps := make(models.CapabilitySet, len(h.Capabilities))
	caps.Union(h.Capabilities)
	h.Capabilities = caps
	return h
}
