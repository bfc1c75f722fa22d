package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hims-api/internal/models"
)

const clientColumns = `id, first_name, last_name, date_of_birth, gender, contact_number, email, address, enrolled_programs, created_at, updated_at`

// ClientRepository handles persistence of clients and their enrollment back-references.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository constructs the repository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// List returns clients ordered by last then first name.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	_, size, offset := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM clients ORDER BY last_name ASC, first_name ASC LIMIT %d OFFSET %d`, clientColumns, size, offset)

	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM clients`); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}
	return clients, total, nil
}

// Search matches term case-insensitively against names, email and contact number.
func (r *ClientRepository) Search(ctx context.Context, term string, limit int) ([]models.Client, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(term) + "%"
	query := fmt.Sprintf(`SELECT %s FROM clients
        WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1 OR contact_number ILIKE $1
        ORDER BY last_name ASC, first_name ASC LIMIT %d`, clientColumns, limit)

	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, pattern); err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	return clients, nil
}

// FindByID returns a client by its ID.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE id = $1`, clientColumns)
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// FindByIDs loads every existing client among ids. Missing ids are skipped.
func (r *ClientRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE id = ANY($1)`, clientColumns)
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find clients by ids: %w", err)
	}
	return clients, nil
}

// Create persists a new client with an empty back-reference list.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	if client.EnrolledPrograms == nil {
		client.EnrolledPrograms = pq.StringArray{}
	}
	const query = `INSERT INTO clients (id, first_name, last_name, date_of_birth, gender, contact_number, email, address, enrolled_programs, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :date_of_birth, :gender, :contact_number, :email, :address, :enrolled_programs, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return translateWriteErr("create client", err)
	}
	return nil
}

// Update overwrites the editable fields. The back-reference list is untouched.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clients SET first_name = :first_name, last_name = :last_name, date_of_birth = :date_of_birth,
        gender = :gender, contact_number = :contact_number, email = :email, address = :address, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, client)
	if err != nil {
		return translateWriteErr("update client", err)
	}
	return requireAffected(res)
}

// Delete removes a client row. It returns sql.ErrNoRows when nothing was deleted.
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return requireAffected(res)
}

// LinkEnrollment appends enrollmentID to the client's back-reference list. An
// already-linked id is left as is. It reports false when the client row no
// longer exists.
func (r *ClientRepository) LinkEnrollment(ctx context.Context, clientID, enrollmentID string) (bool, error) {
	const query = `UPDATE clients SET enrolled_programs = CASE
            WHEN $2 = ANY(enrolled_programs) THEN enrolled_programs
            ELSE array_append(enrolled_programs, $2) END,
        updated_at = NOW()
        WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, clientID, enrollmentID)
	if err != nil {
		return false, fmt.Errorf("link enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UnlinkEnrollment removes enrollmentID from the back-reference list. Idempotent.
func (r *ClientRepository) UnlinkEnrollment(ctx context.Context, clientID, enrollmentID string) error {
	const query = `UPDATE clients SET enrolled_programs = array_remove(enrolled_programs, $2), updated_at = NOW()
        WHERE id = $1 AND $2 = ANY(enrolled_programs)`
	if _, err := r.db.ExecContext(ctx, query, clientID, enrollmentID); err != nil {
		return fmt.Errorf("unlink enrollment: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
