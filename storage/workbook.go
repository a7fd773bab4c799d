package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"melhor-casa/models"
)

// ErrInvalidWorkbook is returned when a file cannot be read as a spreadsheet.
var ErrInvalidWorkbook = errors.New("invalid workbook")

const (
	ExportSheet = "Imóveis"
	ExportSite  = "QuintoAndar"
)

// ExportHeader is the canonical column order of exported workbooks.
var ExportHeader = []string{
	"Nome", "Imagem", "Imagem2", "Valor", "Condominio", "M²", "Rua", "Bairro",
	"Localização", "Link", "Quartos", "Garagem", "Vantagens", "PalavrasChaves", "Site",
}

// ExportFilename names an export made on the given day.
func ExportFilename(day time.Time) string {
	return "imoveis_quintoandar_" + day.Format("2006-01-02") + ".xlsx"
}

// ReadWorkbook reads the first sheet of a workbook into rows keyed by the
// header cells of its first row. Blank rows are skipped.
func ReadWorkbook(r io.Reader) ([]models.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("workbook: %w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook: no sheets: %w", ErrInvalidWorkbook)
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("workbook: read %q: %w: %v", sheets[0], ErrInvalidWorkbook, err)
	}
	return gridToRows(grid), nil
}

// ReadWorkbookFile is ReadWorkbook over a file on disk.
func ReadWorkbookFile(path string) ([]models.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workbook: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadWorkbook(f)
}

func gridToRows(grid [][]string) []models.Row {
	rows := []models.Row{}
	if len(grid) == 0 {
		return rows
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.TrimSpace(h)
	}

	for _, cells := range grid[1:] {
		row := make(models.Row, len(header))
		blank := true
		for i, column := range header {
			if column == "" {
				continue
			}
			var v string
			if i < len(cells) {
				v = cells[i]
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			row[column] = v
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}

// ExportRow lays p out in ExportHeader order.
func ExportRow(p models.Property) []string {
	site := p.Site
	if site == "" {
		site = ExportSite
	}
	return []string{
		p.Name, p.Image, p.Image2, p.Price, p.Condo, p.Area, p.Street, p.Neighborhood,
		p.Location, p.Link, p.Rooms, p.Parking, p.Advantages, p.Keywords, site,
	}
}

// WriteWorkbook writes props as a single-sheet workbook.
func WriteWorkbook(w io.Writer, props []models.Property) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return fmt.Errorf("workbook: rename sheet: %w", err)
	}

	if err := setRow(f, 1, ExportHeader); err != nil {
		return err
	}
	for i, p := range props {
		if err := setRow(f, i+2, ExportRow(p)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("workbook: write: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("workbook: row %d: %w", n, err)
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
		return fmt.Errorf("workbook: row %d: %w", n, err)
	}
	return nil
}

// WorkbookWriter exports to an .xlsx file on Close.
type WorkbookWriter struct {
	path  string
	props []models.Property
}

// NewWorkbookWriter prepares an export to path.
func NewWorkbookWriter(path string) *WorkbookWriter {
	return &WorkbookWriter{path: path}
}

// Write buffers props for the export.
func (ww *WorkbookWriter) Write(props []models.Property) error {
	ww.props = append(ww.props, props...)
	return nil
}

// Close writes the buffered records to disk.
func (ww *WorkbookWriter) Close() error {
	f, err := os.Create(ww.path)
	if err != nil {
		return fmt.Errorf("workbook: create %s: %w", ww.path, err)
	}
	if err := WriteWorkbook(f, ww.props); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
