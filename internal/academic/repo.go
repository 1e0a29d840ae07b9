// Package academic persists the institution's structure: campuses and their
// boundary rings, the WiFi allow-list, departments, years and subjects.
package academic

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"attendly/internal/geo"
)

// Campus is a named boundary scoped to an institution. Coordinates are the
// raw [lng,lat,alt] ring as ingested from KML.
type Campus struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	InstitutionID string    `json:"institutionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Department belongs to an institution, optionally tied to a campus.
type Department struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DepartmentCode string    `json:"departmentCode"`
	CampusID       *string   `json:"campusId,omitempty"`
	InstitutionID  string    `json:"institutionId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Year is an academic year within a department.
type Year struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"departmentId"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Subject is taught in a department/year.
type Subject struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"departmentId"`
	YearID       string    `json:"yearId"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Repository persists academic structure in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateCampus stores a campus with its boundary ring.
func (r *Repository) CreateCampus(ctx context.Context, institutionID, name string, ring []geo.Point) (Campus, error) {
	coords := make([][]float64, len(ring))
	for i, p := range ring {
		coords[i] = []float64{p.Lng, p.Lat}
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return Campus{}, err
	}
	campus := Campus{ID: uuid.NewString(), Name: name, InstitutionID: institutionID}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO campuses (id, name, institution_id, coordinates)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, campus.ID, campus.Name, campus.InstitutionID, raw)
	if err := row.Scan(&campus.CreatedAt); err != nil {
		return Campus{}, err
	}
	return campus, nil
}

// ListCampuses returns an institution's campuses, coordinates excluded.
func (r *Repository) ListCampuses(ctx context.Context, institutionID string) ([]Campus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, institution_id, created_at
		FROM campuses WHERE institution_id = $1 ORDER BY created_at
	`, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var campuses []Campus
	for rows.Next() {
		var c Campus
		if err := rows.Scan(&c.ID, &c.Name, &c.InstitutionID, &c.CreatedAt); err != nil {
			return nil, err
		}
		campuses = append(campuses, c)
	}
	return campuses, rows.Err()
}

// CampusRings returns all boundary rings for an institution. Stored tuples
// may carry a trailing altitude; it is ignored.
func (r *Repository) CampusRings(ctx context.Context, institutionID string) ([][]geo.Point, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT coordinates FROM campuses WHERE institution_id = $1
	`, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rings [][]geo.Point
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var coords [][]float64
		if err := json.Unmarshal(raw, &coords); err != nil {
			continue // a bad ring must not block the rest
		}
		ring := make([]geo.Point, 0, len(coords))
		for _, tuple := range coords {
			if len(tuple) < 2 {
				continue
			}
			ring = append(ring, geo.Point{Lng: tuple[0], Lat: tuple[1]})
		}
		rings = append(rings, ring)
	}
	return rings, rows.Err()
}

// AllowedIPs returns the institution's WiFi allow-list, empty when unset.
func (r *Repository) AllowedIPs(ctx context.Context, institutionID string) ([]string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT ips FROM network_allowlists WHERE institution_id = $1
	`, institutionID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var ips []string
	if err := json.Unmarshal(raw, &ips); err != nil {
		return nil, err
	}
	return ips, nil
}

// MergeAllowedIPs unions new IPs into the institution's allow-list.
func (r *Repository) MergeAllowedIPs(ctx context.Context, institutionID string, ips []string) ([]string, error) {
	existing, err := r.AllowedIPs(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing)+len(ips))
	merged := make([]string, 0, len(existing)+len(ips))
	for _, ip := range append(existing, ips...) {
		if !seen[ip] {
			seen[ip] = true
			merged = append(merged, ip)
		}
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO network_allowlists (id, institution_id, ips)
		VALUES ($1, $2, $3)
		ON CONFLICT (institution_id) DO UPDATE SET ips = EXCLUDED.ips, updated_at = NOW()
	`, uuid.NewString(), institutionID, raw)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// CreateDepartment inserts a department.
func (r *Repository) CreateDepartment(ctx context.Context, dep Department) (Department, error) {
	if dep.ID == "" {
		dep.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO departments (id, name, department_code, campus_id, institution_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, dep.ID, dep.Name, dep.DepartmentCode, dep.CampusID, dep.InstitutionID)
	if err := row.Scan(&dep.CreatedAt); err != nil {
		return Department{}, err
	}
	return dep, nil
}

// ListDepartments returns an institution's departments.
func (r *Repository) ListDepartments(ctx context.Context, institutionID string) ([]Department, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, department_code, campus_id, institution_id, created_at
		FROM departments WHERE institution_id = $1 ORDER BY created_at
	`, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.DepartmentCode, &d.CampusID, &d.InstitutionID, &d.CreatedAt); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// CreateYear inserts an academic year.
func (r *Repository) CreateYear(ctx context.Context, year Year) (Year, error) {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO years (id, department_id, name)
		VALUES ($1,$2,$3)
		RETURNING created_at
	`, year.ID, year.DepartmentID, year.Name)
	if err := row.Scan(&year.CreatedAt); err != nil {
		return Year{}, err
	}
	return year, nil
}

// ListYears returns a department's years.
func (r *Repository) ListYears(ctx context.Context, departmentID string) ([]Year, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, department_id, name, created_at
		FROM years WHERE department_id = $1 ORDER BY created_at
	`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []Year
	for rows.Next() {
		var y Year
		if err := rows.Scan(&y.ID, &y.DepartmentID, &y.Name, &y.CreatedAt); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// CreateSubject inserts a subject.
func (r *Repository) CreateSubject(ctx context.Context, subj Subject) (Subject, error) {
	if subj.ID == "" {
		subj.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO subjects (id, department_id, year_id, name, code)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, subj.ID, subj.DepartmentID, subj.YearID, subj.Name, subj.Code)
	if err := row.Scan(&subj.CreatedAt); err != nil {
		return Subject{}, err
	}
	return subj, nil
}

// ListSubjects returns subjects filtered by department and/or year.
func (r *Repository) ListSubjects(ctx context.Context, departmentID, yearID string) ([]Subject, error) {
	query := `SELECT id, department_id, year_id, name, code, created_at FROM subjects`
	args := []any{}
	clauses := []string{}
	if departmentID != "" {
		args = append(args, departmentID)
		clauses = append(clauses, "department_id = $"+strconv.Itoa(len(args)))
	}
	if yearID != "" {
		args = append(args, yearID)
		clauses = append(clauses, "year_id = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.DepartmentID, &s.YearID, &s.Name, &s.Code, &s.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}
