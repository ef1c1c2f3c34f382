package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"attendance-kiosk/internal/model"
)

// DateLayout is the format of range bounds.
const DateLayout = "2006-01-02"

// UnknownRole labels absences filed under a role id the kiosk does not know.
const UnknownRole = "Unknown"

// Source fetches attendance for a date range.
type Source interface {
	Attendance(ctx context.Context, start, end string) (*model.AttendanceReport, error)
}

// Range is an inclusive date range in DateLayout.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Today is the default range: today to today.
func Today(now time.Time) Range {
	d := now.Format(DateLayout)
	return Range{Start: d, End: d}
}

// Validate checks both bounds parse and Start is not after End.
func (r Range) Validate() error {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return fmt.Errorf("invalid start date %q", r.Start)
	}
	end, err := time.Parse(DateLayout, r.End)
	if err != nil {
		return fmt.Errorf("invalid end date %q", r.End)
	}
	if start.After(end) {
		return fmt.Errorf("start date %s is after end date %s", r.Start, r.End)
	}
	return nil
}

// Row is one absence annotated with its role.
type Row struct {
	model.AbsenceRecord
	RoleID   string `json:"roleId"`
	RoleName string `json:"roleName"`
}

// FullName joins first and last name.
func (r Row) FullName() string {
	return r.FirstName + " " + r.LastName
}

// Dashboard is the admin view of one date range.
type Dashboard struct {
	Range Range                 `json:"range"`
	Stats model.AttendanceStats `json:"stats"`
	Rows  []Row                 `json:"absences"`
}

// Filename is the name the absences workbook is saved under.
func (d *Dashboard) Filename() string {
	return Filename(d.Range)
}

// Filename is the workbook name for r.
func Filename(r Range) string {
	return fmt.Sprintf("absences_%s_%s.xlsx", r.Start, r.End)
}

// Load fetches the report for r and flattens its absences.
func Load(ctx context.Context, src Source, r Range) (*Dashboard, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rep, err := src.Attendance(ctx, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("fetch attendance %s..%s: %w", r.Start, r.End, err)
	}
	return &Dashboard{
		Range: r,
		Stats: rep.Stats,
		Rows:  Flatten(rep.AttendanceByRole),
	}, nil
}

// Flatten turns per-role absence lists into rows sorted by days absent,
// most absent first. Ties keep role order, then API order.
func Flatten(byRole map[string][]model.AbsenceRecord) []Row {
	roleIDs := make([]string, 0, len(byRole))
	for id := range byRole {
		roleIDs = append(roleIDs, id)
	}
	sort.Slice(roleIDs, func(i, j int) bool {
		return roleLess(roleIDs[i], roleIDs[j])
	})

	rows := []Row{}
	for _, id := range roleIDs {
		name := roleName(id)
		for _, rec := range byRole[id] {
			rows = append(rows, Row{AbsenceRecord: rec, RoleID: id, RoleName: name})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DaysAbsent > rows[j].DaysAbsent
	})
	return rows
}

// roleLess orders numeric role ids by value, ahead of any non-numeric ids,
// which sort as strings.
func roleLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

func roleName(id string) string {
	if r, ok := model.ParseRole(id); ok {
		return r.Name()
	}
	return UnknownRole
}
