package holidays

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"attendance-kiosk/internal/apiclient"
	"attendance-kiosk/internal/model"
)

// DateLayout is the accepted format for a non-working day.
const DateLayout = "2006-01-02"

// Banner messages.
const (
	MsgLoadFailed   = "Error loading non-working days"
	MsgAddFailed    = "Error adding the non-working day"
	MsgDeleteFailed = "Error deleting the non-working day"
)

// ErrInvalidDay is returned for a day that fails local validation.
var ErrInvalidDay = errors.New("invalid non-working day")

// API is the subset of the attendance API the manager uses.
type API interface {
	NonWorkingDays(ctx context.Context) ([]model.NonWorkingDay, error)
	AddNonWorkingDay(ctx context.Context, day model.NonWorkingDay) error
	DeleteNonWorkingDay(ctx context.Context, id int) error
}

// Validate checks a day before it is sent.
func Validate(day model.NonWorkingDay) error {
	if _, err := time.Parse(DateLayout, day.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidDay, day.Date)
	}
	if strings.TrimSpace(day.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidDay)
	}
	if !day.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDay, day.Type)
	}
	return nil
}

// Group is the days of one type under its display title.
type Group struct {
	Type  model.DayType         `json:"type"`
	Title string                `json:"title"`
	Days  []model.NonWorkingDay `json:"days"`
}

// GroupByType buckets days in the order holiday, vacation, special. Types
// with no days are left out, as are days of an unknown type.
func GroupByType(days []model.NonWorkingDay) []Group {
	byType := make(map[model.DayType][]model.NonWorkingDay)
	for _, d := range days {
		byType[d.Type] = append(byType[d.Type], d)
	}
	groups := make([]Group, 0, len(model.DayTypes))
	for _, t := range model.DayTypes {
		if len(byType[t]) == 0 {
			continue
		}
		groups = append(groups, Group{Type: t, Title: t.Title(), Days: byType[t]})
	}
	return groups
}

// Banner is a dismissible error shown above the list.
type Banner struct {
	Message string `json:"message"`
}

// Visible reports whether there is anything to show.
func (b Banner) Visible() bool { return b.Message != "" }

// Manager keeps the last fetched list of non-working days and the error
// banner for the admin view.
type Manager struct {
	api API
	log *slog.Logger

	mu     sync.Mutex
	days   []model.NonWorkingDay
	banner Banner
}

// NewManager creates a manager with an empty list.
func NewManager(api API, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{api: api, log: log, days: []model.NonWorkingDay{}}
}

// Refresh reloads the list. On failure the list is emptied and the banner
// is raised.
func (m *Manager) Refresh(ctx context.Context) ([]model.NonWorkingDay, error) {
	days, err := m.api.NonWorkingDays(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.log.Error("load non-working days", "error", err)
		m.days = []model.NonWorkingDay{}
		m.banner = Banner{Message: MsgLoadFailed}
		return nil, fmt.Errorf("load non-working days: %w", err)
	}
	m.days = days
	return append([]model.NonWorkingDay(nil), days...), nil
}

// Add validates and creates a day, then refreshes the list.
func (m *Manager) Add(ctx context.Context, day model.NonWorkingDay) error {
	day.Description = strings.TrimSpace(day.Description)
	if err := Validate(day); err != nil {
		m.raise(err.Error())
		return err
	}
	if err := m.api.AddNonWorkingDay(ctx, day); err != nil {
		m.log.Error("add non-working day", "date", day.Date, "error", err)
		m.raise(failureMessage(err, MsgAddFailed))
		return fmt.Errorf("add non-working day: %w", err)
	}
	m.log.Info("non-working day added", "date", day.Date, "type", day.Type)
	_, err := m.Refresh(ctx)
	return err
}

// Delete removes a day by id, then refreshes the list.
func (m *Manager) Delete(ctx context.Context, id int) error {
	if err := m.api.DeleteNonWorkingDay(ctx, id); err != nil {
		m.log.Error("delete non-working day", "id", id, "error", err)
		m.raise(MsgDeleteFailed)
		return fmt.Errorf("delete non-working day %d: %w", id, err)
	}
	m.log.Info("non-working day deleted", "id", id)
	_, err := m.Refresh(ctx)
	return err
}

// Days returns the last fetched list.
func (m *Manager) Days() []model.NonWorkingDay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.NonWorkingDay(nil), m.days...)
}

// Groups returns the last fetched list grouped by type.
func (m *Manager) Groups() []Group {
	return GroupByType(m.Days())
}

// Banner returns the current error banner.
func (m *Manager) Banner() Banner {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banner
}

// Dismiss hides the banner.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	m.banner = Banner{}
	m.mu.Unlock()
}

func (m *Manager) raise(msg string) {
	m.mu.Lock()
	m.banner = Banner{Message: msg}
	m.mu.Unlock()
}

// failureMessage prefers the API's own error text.
func failureMessage(err error, fallback string) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Body != "" {
			return apiErr.Body
		}
	}
	return fallback
}
