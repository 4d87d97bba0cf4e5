package procurement

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportHeader is the column row shared by the CSV and XLSX exports.
var ExportHeader = []string{"Référence", "Date", "Fournisseur", "Montant Total", "Statut"}

const xlsxSheet = "Approvisionnements"

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

func exportRow(rec Record) []string {
	return []string{
		rec.Reference,
		rec.Date,
		rec.SupplierName,
		strconv.FormatFloat(rec.TotalAmount, 'f', -1, 64),
		string(rec.Status),
	}
}

// WriteCSV writes records in display order. Fields are joined with commas
// and never quoted, so a comma inside a supplier name shifts the columns.
func WriteCSV(w io.Writer, records []Record) error {
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(strings.Join(ExportHeader, ",") + "\n"); err != nil {
		return fmt.Errorf("procurement: write csv: %w", err)
	}
	for _, rec := range records {
		if _, err := buf.WriteString(strings.Join(exportRow(rec), ",") + "\n"); err != nil {
			return fmt.Errorf("procurement: write csv: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("procurement: write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the same table as WriteCSV into a single-sheet workbook,
// with the amount column stored as a number.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return fmt.Errorf("procurement: xlsx sheet: %w", err)
	}
	header := make([]interface{}, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("procurement: xlsx header: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("procurement: xlsx cell: %w", err)
		}
		row := []interface{}{rec.Reference, rec.Date, rec.SupplierName, rec.TotalAmount, string(rec.Status)}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("procurement: xlsx row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("procurement: write xlsx: %w", err)
	}
	return nil
}

// Export writes records in format, which is FormatCSV or FormatXLSX.
func Export(w io.Writer, format string, records []Record) error {
	switch format {
	case "", FormatCSV:
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return fmt.Errorf("procurement: export format %q: %w", format, ErrValidation)
	}
}

// ContentType returns the MIME type for an export format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Export writes the records matching f in format.
func (s *Service) Export(ctx context.Context, w io.Writer, format string, f Filters) (int, error) {
	recs, err := s.Matching(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := Export(w, format, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}
