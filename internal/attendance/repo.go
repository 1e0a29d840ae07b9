package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one durable attendance row. Rows are append-only: a user may
// accumulate several per session, and presence is derived at read time.
type Record struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"sessionId"`
	UserID        string            `json:"userId"`
	InstitutionID string            `json:"institutionId"`
	SubjectID     *string           `json:"subjectId,omitempty"`
	IP            string            `json:"ip"`
	Latitude      float64           `json:"latitude"`
	Longitude     float64           `json:"longitude"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new record. The database's atomic insert is the only
// ordering primitive across concurrent joins.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return Record{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, session_id, user_id, institution_id, subject_id, ip, latitude, longitude, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at
	`, rec.ID, rec.SessionID, rec.UserID, rec.InstitutionID, rec.SubjectID,
		rec.IP, rec.Latitude, rec.Longitude, meta)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListBySession returns records for a session, newest first. subjectID and
// since narrow the result when set.
func (r *Repository) ListBySession(ctx context.Context, sessionID, institutionID, subjectID string, since *time.Time) ([]Record, error) {
	query := `
		SELECT id, session_id, user_id, institution_id, subject_id, ip, latitude, longitude, metadata, created_at
		FROM attendance
		WHERE session_id = $1 AND institution_id = $2`
	args := []any{sessionID, institutionID}
	if subjectID != "" {
		args = append(args, subjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(" AND created_at > $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		var meta []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.InstitutionID,
			&rec.SubjectID, &rec.IP, &rec.Latitude, &rec.Longitude, &meta, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &rec.Metadata)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
