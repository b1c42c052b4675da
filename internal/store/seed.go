package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"dispatcher/internal/models"
)

// LoadHospitalSeed reads a JSON array of hospitals and validates it as a registry
func LoadHospitalSeed(path string) ([]models.Hospital, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hospital seed: %w", err)
	}

	var hospitals []models.Hospital
	if err := json.Unmarshal(data, &hospitals); err != nil {
		return nil, fmt.Errorf("decode hospital seed: %w", err)
	}
	if err := models.ValidateRegistry(hospitals); err != nil {
		return nil, fmt.Errorf("hospital seed: %w", err)
	}
	return hospitals, nil
}

// SeedHospitals saves every hospital into the store
func SeedHospitals(ctx context.Context, s Store, hospitals []models.Hospital) error {
	for _, h := range hospitals {
		if err := s.SaveHospital(ctx, h); err != nil {
			return fmt.Errorf("seed hospital %s: %w", h.Name, err)
		}
	}
	return nil
}
