package application

import (
	"context"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Interventions"

var interventionExportHeaders = []string{"ID", "UID produit", "Produit", "N° de série", "Statut", "Entrée", "Sortie", "Panne"}

var interventionExportWidths = []float64{8, 12, 30, 20, 18, 18, 18, 50}

type InterventionService struct {
	repo           domain.InterventionRepository
	exportPageSize int
}

func NewInterventionService(repo domain.InterventionRepository) *InterventionService {
	return &InterventionService{repo: repo}
}

func (s *InterventionService) Get(ctx context.Context, id uint) (domain.Intervention, error) {
	if id == 0 {
		return domain.Intervention{}, validationError("intervention id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *InterventionService) List(ctx context.Context, filter domain.InterventionFilter) ([]domain.Intervention, error) {
	filter.Limit = normalizeLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}

func (s *InterventionService) ListByProduct(ctx context.Context, productID uint) ([]domain.Intervention, error) {
	if productID == 0 {
		return nil, validationError("product id is required")
	}
	return s.repo.ListByProduct(ctx, productID)
}

// UpdateStatus moves a ticket along its workflow. Terminal statuses close it.
func (s *InterventionService) UpdateStatus(ctx context.Context, id uint, raw string) (domain.Intervention, error) {
	status, ok := domain.ParseInterventionStatus(raw)
	if !ok {
		return domain.Intervention{}, validationError("unknown intervention status %q", raw)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// ExportXLSX renders every matching intervention as a workbook, reading the
// repository page by page. The caller closes the returned file.
func (s *InterventionService) ExportXLSX(ctx context.Context, filter domain.InterventionFilter) (*excelize.File, string, error) {
	f := excelize.NewFile()
	if err := s.fillExport(ctx, f, filter); err != nil {
		_ = f.Close()
		return nil, "", err
	}
	filename := fmt.Sprintf("interventions_%s.xlsx", time.Now().Format("20060102_150405"))
	return f, filename, nil
}

func (s *InterventionService) fillExport(ctx context.Context, f *excelize.File, filter domain.InterventionFilter) error {
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	header := make([]any, len(interventionExportHeaders))
	for i, h := range interventionExportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(interventionExportHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	pageSize := s.exportPageSize
	if pageSize <= 0 {
		pageSize = maxListLimit
	}
	filter.Limit = pageSize
	filter.Offset = 0
	row := 2
	for {
		items, err := s.repo.List(ctx, filter)
		if err != nil {
			return err
		}
		for _, iv := range items {
			exited := ""
			if iv.ExitedAt != nil {
				exited = iv.ExitedAt.Local().Format("2006-01-02 15:04")
			}
			values := []any{
				iv.ID,
				iv.ProductUID,
				iv.ProductName,
				iv.SerialNumber,
				string(iv.Status),
				iv.EnteredAt.Local().Format("2006-01-02 15:04"),
				exited,
				iv.FaultDescription,
			}
			if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &values); err != nil {
				return err
			}
			row++
		}
		if len(items) < pageSize {
			break
		}
		filter.Offset += pageSize
	}

	for i, w := range interventionExportWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(exportSheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}
