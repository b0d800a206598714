package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"techsched/internal/model"
)

const (
	SheetName  = "Bookings"
	timeLayout = "2006-01-02 15:04"
)

var bookingColumns = []string{"ID", "Time", "Technician", "Type", "Status", "Description"}

// sheetWriter appends rows to a single-sheet workbook.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
}

func newSheetWriter(sheet string) *sheetWriter {
	f := excelize.NewFile()
	// Truncate sheet name to 31 chars (Excel limit)
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	f.SetSheetName("Sheet1", sheet)
	return &sheetWriter{file: f, sheet: sheet, row: 1}
}

func (w *sheetWriter) writeHeader(columns []string) error {
	if err := w.writeRow(toAny(columns)); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = w.file.SetCellStyle(w.sheet, startCell, endCell, style)
	}
	return w.file.SetPanes(w.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (w *sheetWriter) writeRow(row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// WriteBookings writes bookings as an .xlsx workbook to out. Times are
// rendered in loc.
func WriteBookings(out io.Writer, bookings []model.BookingWithTechnician, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	w := newSheetWriter(SheetName)
	defer w.file.Close()

	if err := w.writeHeader(bookingColumns); err != nil {
		return err
	}

	for _, b := range bookings {
		name, techType := "", ""
		if b.Technician != nil {
			name, techType = b.Technician.Name, b.Technician.Type
		}
		if err := w.writeRow([]any{
			b.ID,
			b.BookingTime.In(loc).Format(timeLayout),
			name,
			techType,
			string(b.Status),
			b.Description,
		}); err != nil {
			return err
		}
	}

	_ = w.file.SetColWidth(w.sheet, "B", "C", 20)
	_ = w.file.SetColWidth(w.sheet, "F", "F", 40)

	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
