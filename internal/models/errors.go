package models

import "errors"

// Validation errors returned before data reaches the assignment engine
var (
	// ErrInvalidCase is returned when a case fails validation
	ErrInvalidCase = errors.New("invalid case")

	// ErrInvalidHospital is returned when a hospital record fails validation
	ErrInvalidHospital = errors.New("invalid hospital")

	// ErrDuplicateHospital is returned when two hospitals share the same name
	ErrDuplicateHospital = errors.New("duplicate hospital name")
)
