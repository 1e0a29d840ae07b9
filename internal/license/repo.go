// Package license gates attendance features behind an institution's
// subscription: license rows in Postgres, an active-license cache in the
// key-value store, and the payment-gateway order flow.
package license

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// License types and statuses, as issued by the order flow.
const (
	TypeMonthly   = "monthly"
	TypeQuarterly = "quarterly"
	TypeAnnually  = "annually"

	StatusPending = "pending"
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// License is one subscription row for an institution.
type License struct {
	ID            string     `json:"id"`
	LicenseKey    string     `json:"licenseKey"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	InstitutionID string     `json:"institutionId"`
	IssuedAt      time.Time  `json:"issuedAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"` // nil means perpetual
}

// Repository persists licenses in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a license row.
func (r *Repository) Create(ctx context.Context, lic License) (License, error) {
	if lic.ID == "" {
		lic.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO licenses (id, license_key, type, status, institution_id, issued_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, lic.ID, lic.LicenseKey, lic.Type, lic.Status, lic.InstitutionID, lic.IssuedAt, lic.ExpiresAt)
	if err != nil {
		return License{}, err
	}
	return lic, nil
}

// ActiveByInstitution returns the latest unexpired active license, or nil.
func (r *Repository) ActiveByInstitution(ctx context.Context, institutionID string) (*License, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, license_key, type, status, institution_id, issued_at, expires_at
		FROM licenses
		WHERE institution_id = $1 AND status = $2 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY issued_at DESC
		LIMIT 1
	`, institutionID, StatusActive)
	return scanLicense(row)
}

// LatestByInstitution returns the newest license regardless of status.
func (r *Repository) LatestByInstitution(ctx context.Context, institutionID string) (*License, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, license_key, type, status, institution_id, issued_at, expires_at
		FROM licenses
		WHERE institution_id = $1
		ORDER BY issued_at DESC
		LIMIT 1
	`, institutionID)
	return scanLicense(row)
}

func scanLicense(row *sql.Row) (*License, error) {
	var lic License
	if err := row.Scan(&lic.ID, &lic.LicenseKey, &lic.Type, &lic.Status,
		&lic.InstitutionID, &lic.IssuedAt, &lic.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &lic, nil
}

// UpdateStatusByKey sets the status of the license with the given key.
func (r *Repository) UpdateStatusByKey(ctx context.Context, licenseKey, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE licenses SET status = $2, updated_at = NOW() WHERE license_key = $1
	`, licenseKey, status)
	return err
}

// MarkExpired flips an overdue active license to expired.
func (r *Repository) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE licenses SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, StatusExpired)
	return err
}
