package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/extract"
)

// SheetName is the worksheet holding one row per document.
const SheetName = "Captions"

const (
	documentColWidth = 36
	fieldColWidth    = 28
)

// Service renders extraction results as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultsXLSX returns a workbook (as bytes) with a header row of
// Document, the field names in fieldOrder, Polo Ativo, Polo Passivo, State
// and Diagnostics. Absent fields are left blank. When fieldOrder is empty the
// order of the first result is used.
func (s *Service) ResultsXLSX(results []*extract.Result, fieldOrder []string) ([]byte, error) {
	start := time.Now()
	if len(fieldOrder) == 0 && len(results) > 0 {
		fieldOrder = results[0].Order
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	headers := make([]any, 0, len(fieldOrder)+5)
	headers = append(headers, "Document")
	for _, n := range fieldOrder {
		headers = append(headers, n)
	}
	headers = append(headers, "Polo Ativo", "Polo Passivo", "State", "Diagnostics")
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}

	for i, r := range results {
		row := make([]any, 0, len(headers))
		row = append(row, r.Document)
		for _, n := range fieldOrder {
			v, _ := r.Get(n)
			row = append(row, v)
		}
		_, active, _ := r.Party(constants.RoleActive)
		_, passive, _ := r.Party(constants.RolePassive)
		row = append(row, active, passive, string(r.State), len(r.Diagnostics))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	if err := layout(f, len(headers)); err != nil {
		return nil, fmt.Errorf("xlsx layout: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"columns", len(headers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// layout sizes the columns and freezes the header row.
func layout(f *excelize.File, columns int) error {
	last, err := excelize.ColumnNumberToName(columns)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", "A", documentColWidth); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", last, fieldColWidth); err != nil {
		return err
	}
	return f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}
