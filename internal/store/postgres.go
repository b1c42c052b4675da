package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"dispatcher/internal/logger"
	"dispatcher/internal/models"
)

// PostgresStore persists cases and hospitals in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool and ensures the schema exists
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error { return s.db.Close() }

// EnsureSchema creates the dispatch tables when they are missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dispatch_cases (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			severity TEXT NOT NULL,
			victims INT NOT NULL,
			symptoms TEXT[] NOT NULL DEFAULT '{}',
			trauma_history TEXT NOT NULL DEFAULT '',
			chronic_diseases TEXT[] NOT NULL DEFAULT '{}',
			patients JSONB NOT NULL DEFAULT '[]',
			reported_at TIMESTAMPTZ NOT NULL,
			assigned_hospital TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatch_cases_seq ON dispatch_cases(seq)`,
		`CREATE TABLE IF NOT EXISTS dispatch_hospitals (
			seq BIGSERIAL,
			name TEXT PRIMARY KEY,
			id TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			resources JSONB NOT NULL,
			capabilities TEXT[] NOT NULL DEFAULT '{}'
		)`,
	}
	for i, stmt := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

const caseColumns = `id, location, latitude, longitude, severity, victims, symptoms,
	trauma_history, chronic_diseases, patients, reported_at, assigned_hospital`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (models.Case, error) {
	var (
		c        models.Case
		patients []byte
		assigned sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Location, &c.Latitude, &c.Longitude, &c.Severity, &c.Victims,
		pq.Array(&c.Symptoms), &c.TraumaHistory, pq.Array(&c.ChronicDiseases),
		&patients, &c.ReportedAt, &assigned,
	)
	if err != nil {
		return models.Case{}, err
	}
	if len(patients) > 0 {
		if err := json.Unmarshal(patients, &c.Patients); err != nil {
			return models.Case{}, fmt.Errorf("decode patients of case %s: %w", c.ID, err)
		}
	}
	if assigned.Valid {
		c.AssignTo(assigned.String)
	}
	return c, nil
}

// ListCases returns all cases in insertion order
func (s *PostgresStore) ListCases(ctx context.Context) ([]models.Case, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+caseColumns+` FROM dispatch_cases ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	cases := make([]models.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("list cases: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// GetCase returns the case with the given ID
func (s *PostgresStore) GetCase(ctx context.Context, id string) (models.Case, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM dispatch_cases WHERE id=$1`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Case{}, fmt.Errorf("case %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Case{}, fmt.Errorf("get case %s: %w", id, err)
	}
	return c, nil
}

// SaveCase inserts or replaces a case
func (s *PostgresStore) SaveCase(ctx context.Context, c models.Case) error {
	patients, err := json.Marshal(c.Patients)
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	if c.Patients == nil {
		patients = []byte("[]")
	}

	var assigned sql.NullString
	if c.AssignedHospital != nil {
		assigned = sql.NullString{String: *c.AssignedHospital, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatch_cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			location = EXCLUDED.location,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			severity = EXCLUDED.severity,
			victims = EXCLUDED.victims,
			symptoms = EXCLUDED.symptoms,
			trauma_history = EXCLUDED.trauma_history,
			chronic_diseases = EXCLUDED.chronic_diseases,
			patients = EXCLUDED.patients,
			reported_at = EXCLUDED.reported_at,
			assigned_hospital = EXCLUDED.assigned_hospital`,
		c.ID, c.Location, c.Latitude, c.Longitude, string(c.Severity), c.Victims,
		pq.Array(nonNil(c.Symptoms)), c.TraumaHistory, pq.Array(nonNil(c.ChronicDiseases)),
		patients, c.ReportedAt, assigned,
	)
	if err != nil {
		return fmt.Errorf("save case %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCase removes a case
func (s *PostgresStore) DeleteCase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dispatch_cases WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete case %s: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("case %s", id))
}

// SetAssignments updates assigned_hospital in one transaction. Deleted cases match no row.
func (s *PostgresStore) SetAssignments(ctx context.Context, assignments map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set assignments: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE dispatch_cases SET assigned_hospital=$2 WHERE id=$1`)
	if err != nil {
		return fmt.Errorf("set assignments: %w", err)
	}
	defer stmt.Close()

	for id, hospital := range assignments {
		assigned := sql.NullString{String: hospital, Valid: hospital != ""}
		if _, err := stmt.ExecContext(ctx, id, assigned); err != nil {
			return fmt.Errorf("set assignment of case %s: %w", id, err)
		}
	}
	return tx.Commit()
}

const hospitalColumns = `name, id, latitude, longitude, resources, capabilities`

func scanHospital(row rowScanner) (models.Hospital, error) {
	var (
		h         models.Hospital
		resources []byte
		caps      []string
	)
	if err := row.Scan(&h.Name, &h.ID, &h.Latitude, &h.Longitude, &resources, pq.Array(&caps)); err != nil {
		return models.Hospital{}, err
	}
	if err := json.Unmarshal(resources, &h.Resources); err != nil {
		return models.Hospital{}, fmt.Errorf("decode resources of hospital %s: %w", h.Name, err)
	}
	h.Capabilities = models.NewCapabilitySet()
	for _, c := range caps {
		h.Capabilities.Add(models.Capability(c))
	}
	return h, nil
}

// ListHospitals returns the registry in insertion order
func (s *PostgresStore) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+hospitalColumns+` FROM dispatch_hospitals ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	hospitals := make([]models.Hospital, 0)
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, fmt.Errorf("list hospitals: %w", err)
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

// GetHospital returns the hospital with the given name
func (s *PostgresStore) GetHospital(ctx context.Context, name string) (models.Hospital, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hospitalColumns+` FROM dispatch_hospitals WHERE name=$1`, name)
	h, err := scanHospital(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Hospital{}, fmt.Errorf("hospital %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return models.Hospital{}, fmt.Errorf("get hospital %s: %w", name, err)
	}
	return h, nil
}

// SaveHospital inserts or replaces a hospital keyed by name
func (s *PostgresStore) SaveHospital(ctx context.Context, h models.Hospital) error {
	resources, err := json.Marshal(h.Resources)
	if err != nil {
		return fmt.Errorf("encode resources: %w", err)
	}

	caps := make([]string, 0, len(h.Capabilities))
	for _, c := range h.Capabilities.List() {
		caps = append(caps, string(c))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatch_hospitals (`+hospitalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			id = EXCLUDED.id,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			resources = EXCLUDED.resources,
			capabilities = EXCLUDED.capabilities`,
		h.Name, h.ID, h.Latitude, h.Longitude, resources, pq.Array(caps),
	)
	if err != nil {
		return fmt.Errorf("save hospital %s: %w", h.Name, err)
	}
	return nil
}

// DeleteHospital removes a hospital from the registry
func (s *PostgresStore) DeleteHospital(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dispatch_hospitals WHERE name=$1`, name)
	if err != nil {
		return fmt.Errorf("delete hospital %s: %w", name, err)
	}
	return expectAffected(res, fmt.Sprintf("hospital %s", name))
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
