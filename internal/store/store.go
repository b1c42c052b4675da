// Package store persists cases and the hospital registry.
package store

import (
	"context"
	"errors"

	"dispatcher/internal/models"
)

// ErrNotFound is returned when a case or hospital does not exist
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary for the dispatch service
type Store interface {
	ListCases(ctx context.Context) ([]models.Case, error)
	GetCase(ctx context.Context, id string) (models.Case, error)
	SaveCase(ctx context.Context, c models.Case) error
	DeleteCase(ctx context.Context, id string) error

	// SetAssignments records the hospital of each listed case; an empty name clears it.
	// Cases that no longer exist are skipped.
	SetAssignments(ctx context.Context, assignments map[string]string) error

	ListHospitals(ctx context.Context) ([]models.Hospital, error)
	GetHospital(ctx context.Context, name string) (models.Hospital, error)
	SaveHospital(ctx context.Context, h models.Hospital) error
	DeleteHospital(ctx context.Context, name string) error
}
