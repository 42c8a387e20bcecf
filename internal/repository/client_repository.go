package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eleven-api/internal/models"
)

const clientColumns = `id, name, phone, email, address, tax_id, is_active, deleted_at, client_rank, monthly_revenue, created_at, updated_at`

// ClientRepository persists clients and their computed ranking.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository constructs the repository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create inserts a client.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	const query = `INSERT INTO clients (` + clientColumns + `)
	VALUES (:id, :name, :phone, :email, :address, :tax_id, :is_active, :deleted_at, :client_rank, :monthly_revenue, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// GetByID fetches a client by identifier.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.GetContext(ctx, &client, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// List returns clients ordered by rank, unranked last, then newest first.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, error) {
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	query := `SELECT ` + clientColumns + ` FROM clients`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY client_rank ASC NULLS LAST, created_at DESC"

	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, args...); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Update persists editable client columns.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clients SET name = :name, phone = :phone, email = :email, address = :address, tax_id = :tax_id,
	is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, client)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check client update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApplyDeactivation soft-deletes the client and deactivates the listed buildings in one transaction.
func (r *ClientRepository) ApplyDeactivation(ctx context.Context, clientID string, buildingIDs []string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivation tx: %w", err)
	}
	result, err := tx.ExecContext(ctx, `UPDATE clients SET is_active = FALSE, deleted_at = $2, updated_at = $2 WHERE id = $1`, clientID, at)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("deactivate client: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("check client deactivation rows: %w", err)
	}
	if rows == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}
	for _, id := range buildingIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE buildings SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, at); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("deactivate building %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deactivation tx: %w", err)
	}
	return nil
}

// ListBuildingPrices returns one row per active building of every client, and a null-price row
// for clients without active buildings.
func (r *ClientRepository) ListBuildingPrices(ctx context.Context) ([]models.ClientBuildingPrice, error) {
	const query = `SELECT c.id AS client_id, b.price
FROM clients c
LEFT JOIN buildings b ON b.client_id = c.id AND b.is_active = TRUE
ORDER BY c.id`
	var rows []models.ClientBuildingPrice
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list client building prices: %w", err)
	}
	return rows, nil
}

// BulkSetRanking writes rank and revenue for each client in one transaction.
func (r *ClientRepository) BulkSetRanking(ctx context.Context, rankings []models.ClientRanking) error {
	if len(rankings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ranking tx: %w", err)
	}
	const query = `UPDATE clients SET client_rank = :client_rank, monthly_revenue = :monthly_revenue WHERE id = :client_id`
	for i := range rankings {
		if _, err := tx.NamedExecContext(ctx, query, rankings[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set client ranking: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ranking tx: %w", err)
	}
	return nil
}
