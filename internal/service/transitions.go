package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

var workOrderTransitions = map[models.WorkOrderStatus][]models.WorkOrderStatus{
	models.WorkOrderStatusPending:    {models.WorkOrderStatusInProgress, models.WorkOrderStatusCancelled},
	models.WorkOrderStatusInProgress: {models.WorkOrderStatusCompleted, models.WorkOrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.WorkOrderStatus) bool {
	for _, next := range workOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// applyTransition moves order to the target status and stamps the lifecycle timestamps
// that are still empty. It returns the history row to append, or nil when the order
// is already in the target status.
func applyTransition(order *models.WorkOrder, to models.WorkOrderStatus, at time.Time) (*models.WorkOrderStatusHistory, error) {
	if !to.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown operational status %q", to))
	}
	from := order.Status
	if from == to {
		return nil, nil
	}
	if !CanTransition(from, to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move work order from %s to %s", from, to))
	}

	switch to {
	case models.WorkOrderStatusInProgress:
		stampOnce(&order.StartedAt, at)
	case models.WorkOrderStatusCompleted:
		stampOnce(&order.CompletedAt, at)
		stampOnce(&order.ExecutedAt, at)
	case models.WorkOrderStatusCancelled:
		stampOnce(&order.CancelledAt, at)
	}
	order.Status = to

	return &models.WorkOrderStatusHistory{
		WorkOrderID: order.ID,
		FromStatus:  from,
		ToStatus:    to,
		CreatedAt:   at,
	}, nil
}

// applyBillingFlags sets the billing flags. invoicedAt and paidAt are stamped on the
// first true only; a later false keeps the original timestamp.
func applyBillingFlags(order *models.WorkOrder, invoiced, collected *bool, at time.Time) {
	if invoiced != nil {
		order.IsInvoiced = *invoiced
		if *invoiced {
			stampOnce(&order.InvoicedAt, at)
		}
	}
	if collected != nil {
		order.IsCollected = *collected
		if *collected {
			stampOnce(&order.PaidAt, at)
		}
	}
}

func stampOnce(field **time.Time, at time.Time) {
	if *field != nil {
		return
	}
	t := at
	*field = &t
}
