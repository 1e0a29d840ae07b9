package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a registered account scoped to an institution.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	InstitutionID string    `json:"institutionId"`
	CollegeCode   string    `json:"collegeCode"`
	Phone         string    `json:"phone"`
	EmailVerified bool      `json:"emailVerified"`
	IsOnboarded   bool      `json:"isOnboarded"`
	FaceImageURL  *string   `json:"faceImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Institution is a registered tenant.
type Institution struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Code              string    `json:"code"`
	NumberOfCampus    int       `json:"numberOfCampus"`
	IsDetailsComplete bool      `json:"isDetailsComplete"`
	CreatedAt         time.Time `json:"createdAt"`
}

// PublicUser is the identity shape attached to feed events and snapshots.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Repository persists users and institutions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateInstitution inserts an institution row.
func (r *Repository) CreateInstitution(ctx context.Context, inst Institution) (Institution, error) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO institutions (id, name, email, phone, code)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, inst.ID, inst.Name, inst.Email, inst.Phone, inst.Code)
	if err := row.Scan(&inst.CreatedAt); err != nil {
		return Institution{}, err
	}
	return inst, nil
}

// LatestInstitutionCode returns the most recently issued college code, or
// empty when no institution exists yet.
func (r *Repository) LatestInstitutionCode(ctx context.Context) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code FROM institutions ORDER BY created_at DESC LIMIT 1
	`)
	var code string
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return code, nil
}

// InstitutionByCode looks up an institution by its college code.
func (r *Repository) InstitutionByCode(ctx context.Context, code string) (*Institution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, code, number_of_campus, is_details_complete, created_at
		FROM institutions WHERE code = $1
	`, code)
	return scanInstitution(row)
}

// InstitutionByID looks up an institution by id.
func (r *Repository) InstitutionByID(ctx context.Context, id string) (*Institution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, code, number_of_campus, is_details_complete, created_at
		FROM institutions WHERE id = $1
	`, id)
	return scanInstitution(row)
}

func scanInstitution(row *sql.Row) (*Institution, error) {
	var inst Institution
	if err := row.Scan(&inst.ID, &inst.Name, &inst.Email, &inst.Phone, &inst.Code,
		&inst.NumberOfCampus, &inst.IsDetailsComplete, &inst.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

// SetInstitutionCampusCount records how many campuses onboarding ingested.
func (r *Repository) SetInstitutionCampusCount(ctx context.Context, institutionID string, count int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE institutions SET number_of_campus = $2, updated_at = NOW() WHERE id = $1
	`, institutionID, count)
	return err
}

// SetInstitutionDetailsComplete flips the onboarding-complete flag.
func (r *Repository) SetInstitutionDetailsComplete(ctx context.Context, institutionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE institutions SET is_details_complete = TRUE, updated_at = NOW() WHERE id = $1
	`, institutionID)
	return err
}

// CreateUser inserts a user row.
func (r *Repository) CreateUser(ctx context.Context, usr User) (User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password, role, institution_id, college_code, phone, email_verified, is_onboarded)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, usr.ID, usr.Name, usr.Email, usr.PasswordHash, usr.Role, usr.InstitutionID,
		usr.CollegeCode, usr.Phone, usr.EmailVerified, usr.IsOnboarded)
	if err := row.Scan(&usr.CreatedAt); err != nil {
		return User{}, err
	}
	return usr, nil
}

// UserByEmail returns a user by email, or nil when absent.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*User, error) {
	return r.userBy(ctx, "email = $1", strings.ToLower(email))
}

// UserByID returns a user by id, or nil when absent.
func (r *Repository) UserByID(ctx context.Context, id string) (*User, error) {
	return r.userBy(ctx, "id = $1", id)
}

func (r *Repository) userBy(ctx context.Context, where string, arg any) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, role, institution_id, college_code, phone,
		       email_verified, is_onboarded, face_image_url, created_at
		FROM users WHERE `+where, arg)
	var usr User
	if err := row.Scan(&usr.ID, &usr.Name, &usr.Email, &usr.PasswordHash, &usr.Role,
		&usr.InstitutionID, &usr.CollegeCode, &usr.Phone, &usr.EmailVerified,
		&usr.IsOnboarded, &usr.FaceImageURL, &usr.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &usr, nil
}

// SetEmailVerified marks a user's email verified.
func (r *Repository) SetEmailVerified(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1
	`, userID)
	return err
}

// SetOnboarded marks a user's onboarding finished.
func (r *Repository) SetOnboarded(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_onboarded = TRUE, updated_at = NOW() WHERE id = $1
	`, userID)
	return err
}

// SetFaceImageURL stores the reference face image for verification.
func (r *Repository) SetFaceImageURL(ctx context.Context, userID, url string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET face_image_url = $2, updated_at = NOW() WHERE id = $1
	`, userID, url)
	return err
}

// PublicByID resolves a user's public identity.
func (r *Repository) PublicByID(ctx context.Context, id string) (PublicUser, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role FROM users WHERE id = $1
	`, id)
	var pub PublicUser
	if err := row.Scan(&pub.ID, &pub.Name, &pub.Email, &pub.Role); err != nil {
		return PublicUser{}, err
	}
	return pub, nil
}

// PublicByIDs batch-resolves public identities. Missing ids are simply
// absent from the result.
func (r *Repository) PublicByIDs(ctx context.Context, ids []string) (map[string]PublicUser, error) {
	out := make(map[string]PublicUser, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, role FROM users WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pub PublicUser
		if err := rows.Scan(&pub.ID, &pub.Name, &pub.Email, &pub.Role); err != nil {
			return nil, err
		}
		out[pub.ID] = pub
	}
	return out, rows.Err()
}
