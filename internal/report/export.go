package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the absences are written to.
const SheetName = "Absences"

// NoCheckIn fills the last check-in column for users never seen.
const NoCheckIn = "No record"

var columns = []struct {
	header string
	width  float64
}{
	{"Document", 15},
	{"Full name", 30},
	{"Role", 15},
	{"Email", 30},
	{"Days absent", 15},
	{"Last check-in", 20},
}

// Export writes rows as an xlsx workbook to w.
func Export(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return fmt.Errorf("set width of column %s: %w", name, err)
		}
		if err := f.SetCellValue(SheetName, name+"1", col.header); err != nil {
			return fmt.Errorf("write header %s: %w", col.header, err)
		}
	}

	for i, r := range rows {
		lastCheckIn := NoCheckIn
		if r.CheckIn != nil && !r.CheckIn.IsZero() {
			lastCheckIn = r.CheckIn.Format("02/01/2006")
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.DocumentNumber, r.FullName(), r.RoleName, r.Email, r.DaysAbsent, lastCheckIn}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
