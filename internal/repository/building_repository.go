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

const buildingSelect = `SELECT b.id, b.client_id, b.name, b.address, b.phone, b.email, b.price, b.floors_count, b.elevators_count,
       b.notes, b.is_active, b.maintenance_active, b.deleted_at, b.created_at, b.updated_at, c.name AS client_name
FROM buildings b
JOIN clients c ON c.id = b.client_id`

// BuildingRepository persists buildings and their price history.
type BuildingRepository struct {
	db *sqlx.DB
}

// NewBuildingRepository constructs the repository.
func NewBuildingRepository(db *sqlx.DB) *BuildingRepository {
	return &BuildingRepository{db: db}
}

// Create inserts the building and its opening price history row in one transaction.
func (r *BuildingRepository) Create(ctx context.Context, building *models.Building, reason *string) error {
	if building.ID == "" {
		building.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	building.CreatedAt = now
	building.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin building tx: %w", err)
	}
	const query = `INSERT INTO buildings
	(id, client_id, name, address, phone, email, price, floors_count, elevators_count, notes, is_active, maintenance_active, created_at, updated_at)
	VALUES (:id, :client_id, :name, :address, :phone, :email, :price, :floors_count, :elevators_count, :notes, :is_active, :maintenance_active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, building); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create building: %w", err)
	}
	entry := &models.BuildingPriceHistory{BuildingID: building.ID, NewPrice: building.Price, Reason: reason, ChangedAt: now}
	if err := insertPriceHistory(ctx, tx, entry); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit building tx: %w", err)
	}
	return nil
}

func insertPriceHistory(ctx context.Context, tx *sqlx.Tx, entry *models.BuildingPriceHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO building_price_history (id, building_id, old_price, new_price, reason, changed_at)
	VALUES (:id, :building_id, :old_price, :new_price, :reason, :changed_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

// GetByID fetches a building with its client name.
func (r *BuildingRepository) GetByID(ctx context.Context, id string) (*models.Building, error) {
	var building models.Building
	if err := r.db.GetContext(ctx, &building, buildingSelect+` WHERE b.id = $1`, id); err != nil {
		return nil, err
	}
	return &building, nil
}

// List returns buildings matching the filter ordered by address.
func (r *BuildingRepository) List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, error) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("b.client_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("b.is_active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(b.address ILIKE $%d OR b.name ILIKE $%d)", len(args), len(args)))
	}
	query := buildingSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY b.address"

	var buildings []models.Building
	if err := r.db.SelectContext(ctx, &buildings, query, args...); err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	return buildings, nil
}

// ListEligibleForMaintenance returns active buildings with maintenance enabled.
func (r *BuildingRepository) ListEligibleForMaintenance(ctx context.Context) ([]models.Building, error) {
	query := buildingSelect + ` WHERE b.is_active = TRUE AND b.maintenance_active = TRUE ORDER BY b.id`
	var buildings []models.Building
	if err := r.db.SelectContext(ctx, &buildings, query); err != nil {
		return nil, fmt.Errorf("list eligible buildings: %w", err)
	}
	return buildings, nil
}

// Update persists the building. A non-nil priceChange is appended to the price history in the same transaction.
func (r *BuildingRepository) Update(ctx context.Context, building *models.Building, priceChange *models.BuildingPriceHistory) error {
	building.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin building tx: %w", err)
	}
	const query = `UPDATE buildings SET
	client_id = :client_id, name = :name, address = :address, phone = :phone, email = :email, price = :price,
	floors_count = :floors_count, elevators_count = :elevators_count, notes = :notes, is_active = :is_active,
	maintenance_active = :maintenance_active, deleted_at = :deleted_at, updated_at = :updated_at
	WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, query, building)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update building: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("check building update rows: %w", err)
	}
	if rows == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}
	if priceChange != nil {
		priceChange.BuildingID = building.ID
		if priceChange.ChangedAt.IsZero() {
			priceChange.ChangedAt = building.UpdatedAt
		}
		if err := insertPriceHistory(ctx, tx, priceChange); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit building tx: %w", err)
	}
	return nil
}

// ListPriceHistory returns price changes of a building, newest first.
func (r *BuildingRepository) ListPriceHistory(ctx context.Context, buildingID string) ([]models.BuildingPriceHistory, error) {
	const query = `SELECT id, building_id, old_price, new_price, reason, changed_at
	FROM building_price_history WHERE building_id = $1 ORDER BY changed_at DESC, id`
	var rows []models.BuildingPriceHistory
	if err := r.db.SelectContext(ctx, &rows, query, buildingID); err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	return rows, nil
}
