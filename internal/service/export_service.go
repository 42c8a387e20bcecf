package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/export"
)

type periodDetailLister interface {
	List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrderDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var exportHeaders = []string{"Building", "Client", "Type", "Status", "Invoiced", "Collected", "Price"}

// ExportService renders the orders of a period as CSV or PDF.
type ExportService struct {
	orders periodDetailLister
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the default exporters.
func NewExportService(orders periodDetailLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{orders: orders, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the period in the requested format.
func (s *ExportService) Export(ctx context.Context, month, year int, format dto.ExportFormat) (*dto.ExportFile, error) {
	if month < 1 || month > 12 || year < 2020 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid period")
	}
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	orders, err := s.orders.List(ctx, models.WorkOrderFilter{Month: month, Year: year})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work orders")
	}
	dataset := buildPeriodDataset(orders)
	filename := fmt.Sprintf("work-orders-%d-%02d.%s", year, month, format)

	var (
		body        []byte
		contentType string
	)
	switch format {
	case dto.ExportFormatPDF:
		body, err = s.pdf.Render(dataset, fmt.Sprintf("Work orders %02d/%d", month, year))
		contentType = "application/pdf"
	default:
		body, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("period exported", zap.String("file", filename), zap.Int("orders", len(orders)))
	return &dto.ExportFile{Filename: filename, ContentType: contentType, Body: body}, nil
}

func buildPeriodDataset(orders []models.WorkOrderDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(orders))
	total := decimal.Zero
	for _, o := range orders {
		building := o.BuildingAddress
		if o.BuildingName != nil && *o.BuildingName != "" {
			building = *o.BuildingName
		}
		rows = append(rows, map[string]string{
			"Building":  building,
			"Client":    o.ClientName,
			"Type":      string(o.Type),
			"Status":    strings.ReplaceAll(string(o.Status), "_", " "),
			"Invoiced":  yesNo(o.IsInvoiced),
			"Collected": yesNo(o.IsCollected),
			"Price":     o.PriceSnapshot.StringFixed(2),
		})
		total = total.Add(o.PriceSnapshot)
	}
	return export.Dataset{
		Headers: exportHeaders,
		Rows:    rows,
		Footer:  map[string]string{"Building": "TOTAL", "Price": total.StringFixed(2)},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
