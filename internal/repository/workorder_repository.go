package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/eleven-api/internal/models"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const workOrderColumns = `wo.id, wo.building_id, wo.month, wo.year, wo.type, wo.operational_status, wo.is_invoiced, wo.is_collected,
       wo.price_snapshot, wo.observations, wo.invoice_reference, wo.invoice_file_name, wo.invoice_uploaded_at,
       wo.started_at, wo.completed_at, wo.executed_at, wo.cancelled_at, wo.invoiced_at, wo.paid_at,
       wo.created_at, wo.updated_at`

const workOrderDetailSelect = `SELECT ` + workOrderColumns + `,
       b.name AS building_name, b.address AS building_address, c.id AS client_id, c.name AS client_name
FROM work_orders wo
JOIN buildings b ON b.id = wo.building_id
JOIN clients c ON c.id = b.client_id`

// WorkOrderRepository persists work orders and their status history.
type WorkOrderRepository struct {
	db *sqlx.DB
}

// NewWorkOrderRepository constructs the repository.
func NewWorkOrderRepository(db *sqlx.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func prepareWorkOrder(order *models.WorkOrder) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.WorkOrderStatusPending
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
}

const insertWorkOrder = `INSERT INTO work_orders
	(id, building_id, month, year, type, operational_status, is_invoiced, is_collected, price_snapshot, observations,
	 invoice_reference, invoice_file_name, invoice_uploaded_at, started_at, completed_at, executed_at, cancelled_at,
	 invoiced_at, paid_at, created_at, updated_at)
	VALUES (:id, :building_id, :month, :year, :type, :operational_status, :is_invoiced, :is_collected, :price_snapshot, :observations,
	 :invoice_reference, :invoice_file_name, :invoice_uploaded_at, :started_at, :completed_at, :executed_at, :cancelled_at,
	 :invoiced_at, :paid_at, :created_at, :updated_at)`

// Create inserts a work order. A clash on (building, month, year, type) returns ErrDuplicate.
func (r *WorkOrderRepository) Create(ctx context.Context, order *models.WorkOrder) error {
	prepareWorkOrder(order)
	if _, err := r.db.NamedExecContext(ctx, insertWorkOrder, order); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create work order: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts the order unless one already exists for its building, period and type.
// It reports whether a row was written.
func (r *WorkOrderRepository) CreateIfAbsent(ctx context.Context, order *models.WorkOrder) (bool, error) {
	prepareWorkOrder(order)
	query := insertWorkOrder + ` ON CONFLICT (building_id, month, year, type) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, order)
	if err != nil {
		return false, fmt.Errorf("create work order if absent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check work order insert rows: %w", err)
	}
	return rows > 0, nil
}

// ExistsForPeriod checks whether an order exists for the building, period and type.
func (r *WorkOrderRepository) ExistsForPeriod(ctx context.Context, buildingID string, month, year int, orderType models.WorkOrderType) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM work_orders WHERE building_id = $1 AND month = $2 AND year = $3 AND type = $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, buildingID, month, year, orderType); err != nil {
		return false, fmt.Errorf("check work order existence: %w", err)
	}
	return exists, nil
}

// GetByID fetches a work order by identifier.
func (r *WorkOrderRepository) GetByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders wo WHERE wo.id = $1`
	var order models.WorkOrder
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetDetail fetches a work order with building and client resolved.
func (r *WorkOrderRepository) GetDetail(ctx context.Context, id string) (*models.WorkOrderDetail, error) {
	query := workOrderDetailSelect + ` WHERE wo.id = $1`
	var detail models.WorkOrderDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

func buildWorkOrderConditions(filter models.WorkOrderFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 8)
	conditions := make([]string, 0, 6)
	if filter.Month > 0 {
		args = append(args, filter.Month)
		conditions = append(conditions, fmt.Sprintf("wo.month = $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("wo.year = $%d", len(args)))
	}
	if filter.BuildingID != "" {
		args = append(args, filter.BuildingID)
		conditions = append(conditions, fmt.Sprintf("wo.building_id = $%d", len(args)))
	}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("b.client_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("wo.operational_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("wo.type = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns work orders matching the filter, newest first. A zero Limit returns every match.
func (r *WorkOrderRepository) List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrderDetail, error) {
	where, args := buildWorkOrderConditions(filter)
	builder := strings.Builder{}
	builder.WriteString(workOrderDetailSelect)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY wo.created_at DESC, wo.id")
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset))
	}

	var orders []models.WorkOrderDetail
	if err := r.db.SelectContext(ctx, &orders, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	return orders, nil
}

// ListForPeriod returns every order of the period without joins.
func (r *WorkOrderRepository) ListForPeriod(ctx context.Context, month, year int) ([]models.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders wo WHERE wo.month = $1 AND wo.year = $2`
	var orders []models.WorkOrder
	if err := r.db.SelectContext(ctx, &orders, query, month, year); err != nil {
		return nil, fmt.Errorf("list period work orders: %w", err)
	}
	return orders, nil
}

// ListBuildingHistory pages through a building's orders, most recently executed first.
func (r *WorkOrderRepository) ListBuildingHistory(ctx context.Context, buildingID string, limit, offset int) ([]models.WorkOrder, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM work_orders WHERE building_id = $1`, buildingID); err != nil {
		return nil, 0, fmt.Errorf("count building work orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM work_orders wo WHERE wo.building_id = $1
ORDER BY wo.executed_at DESC NULLS LAST, wo.completed_at DESC NULLS LAST, wo.created_at DESC
LIMIT %d OFFSET %d`, workOrderColumns, limit, offset)
	var orders []models.WorkOrder
	if err := r.db.SelectContext(ctx, &orders, query, buildingID); err != nil {
		return nil, 0, fmt.Errorf("list building work orders: %w", err)
	}
	return orders, total, nil
}

// WorkOrderMutation edits a locked order in place and returns the transition row to
// append, or nil when the status did not change. An error aborts the update.
type WorkOrderMutation func(order *models.WorkOrder) (*models.WorkOrderStatusHistory, error)

// GetForUpdate loads an order inside tx and holds its row lock until tx ends.
func (r *WorkOrderRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders wo WHERE wo.id = $1 FOR UPDATE`
	var order models.WorkOrder
	if err := tx.GetContext(ctx, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateLocked locks the order, lets mutate edit it and persists every mutable column
// together with the returned history row in one transaction. Concurrent writers of the
// same order queue behind the lock, so mutate always sees the latest committed row.
// Errors returned by mutate come back unwrapped. A type change that clashes with
// another order of the period returns ErrDuplicate.
func (r *WorkOrderRepository) UpdateLocked(ctx context.Context, id string, mutate WorkOrderMutation) (*models.WorkOrder, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin work order tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := r.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock work order: %w", err)
	}
	history, err := mutate(order)
	if err != nil {
		return nil, err
	}
	order.UpdatedAt = time.Now().UTC()

	const query = `UPDATE work_orders SET
	type = :type, operational_status = :operational_status, is_invoiced = :is_invoiced, is_collected = :is_collected,
	price_snapshot = :price_snapshot, observations = :observations, invoice_reference = :invoice_reference,
	invoice_file_name = :invoice_file_name, invoice_uploaded_at = :invoice_uploaded_at, started_at = :started_at,
	completed_at = :completed_at, executed_at = :executed_at, cancelled_at = :cancelled_at,
	invoiced_at = :invoiced_at, paid_at = :paid_at, updated_at = :updated_at
	WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, order); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("update work order: %w", err)
	}

	if history != nil {
		if history.ID == "" {
			history.ID = uuid.NewString()
		}
		history.WorkOrderID = order.ID
		if history.CreatedAt.IsZero() {
			history.CreatedAt = order.UpdatedAt
		}
		const insertHistory = `INSERT INTO work_order_status_history (id, work_order_id, from_status, to_status, notes, changed_by, created_at)
	VALUES (:id, :work_order_id, :from_status, :to_status, :notes, :changed_by, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertHistory, history); err != nil {
			return nil, fmt.Errorf("append status history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit work order tx: %w", err)
	}
	return order, nil
}

// ListBillingCandidates returns orders of the client, type and period whose flags differ
// from at least one requested target.
func (r *WorkOrderRepository) ListBillingCandidates(ctx context.Context, selector models.BillingSelector, target models.BillingTarget) ([]models.WorkOrder, error) {
	args := []interface{}{selector.ClientID, selector.Type, selector.Month, selector.Year}
	differs := make([]string, 0, 2)
	if target.IsInvoiced != nil {
		args = append(args, *target.IsInvoiced)
		differs = append(differs, fmt.Sprintf("wo.is_invoiced <> $%d", len(args)))
	}
	if target.IsCollected != nil {
		args = append(args, *target.IsCollected)
		differs = append(differs, fmt.Sprintf("wo.is_collected <> $%d", len(args)))
	}
	if len(differs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM work_orders wo
JOIN buildings b ON b.id = wo.building_id
WHERE b.client_id = $1 AND wo.type = $2 AND wo.month = $3 AND wo.year = $4 AND (%s)
ORDER BY wo.created_at, wo.id`, workOrderColumns, strings.Join(differs, " OR "))

	var orders []models.WorkOrder
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("list billing candidates: %w", err)
	}
	return orders, nil
}

// ApplyBilling sets the requested flags on one order, stamping invoiced_at and paid_at
// only when they are still empty.
func (r *WorkOrderRepository) ApplyBilling(ctx context.Context, id string, target models.BillingTarget, at time.Time) error {
	const query = `UPDATE work_orders SET
	is_invoiced = COALESCE($2::boolean, is_invoiced),
	invoiced_at = CASE WHEN $2::boolean IS TRUE THEN COALESCE(invoiced_at, $4) ELSE invoiced_at END,
	is_collected = COALESCE($3::boolean, is_collected),
	paid_at = CASE WHEN $3::boolean IS TRUE THEN COALESCE(paid_at, $4) ELSE paid_at END,
	updated_at = $4
	WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, target.IsInvoiced, target.IsCollected, at)
	if err != nil {
		return fmt.Errorf("apply billing flags: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check billing update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a work order; its history cascades.
func (r *WorkOrderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM work_orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete work order: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check work order delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStatusHistory returns the transitions of an order in the order they happened.
func (r *WorkOrderRepository) ListStatusHistory(ctx context.Context, workOrderID string) ([]models.WorkOrderStatusHistory, error) {
	const query = `SELECT id, work_order_id, from_status, to_status, notes, changed_by, created_at
	FROM work_order_status_history WHERE work_order_id = $1 ORDER BY created_at ASC, id`
	var rows []models.WorkOrderStatusHistory
	if err := r.db.SelectContext(ctx, &rows, query, workOrderID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return rows, nil
}
