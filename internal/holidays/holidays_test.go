package holidays

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"attendance-kiosk/internal/apiclient"
	"attendance-kiosk/internal/model"
)

type fakeAPI struct {
	days      []model.NonWorkingDay
	listErr   error
	addErr    error
	deleteErr error
	lists     int
	added     []model.NonWorkingDay
}

func (f *fakeAPI) NonWorkingDays(ctx context.Context) ([]model.NonWorkingDay, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.NonWorkingDay(nil), f.days...), nil
}

func (f *fakeAPI) AddNonWorkingDay(ctx context.Context, day model.NonWorkingDay) error {
	if f.addErr != nil {
		return f.addErr
	}
	day.ID = len(f.days) + 1
	f.days = append(f.days, day)
	f.added = append(f.added, day)
	return nil
}

func (f *fakeAPI) DeleteNonWorkingDay(ctx context.Context, id int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, d := range f.days {
		if d.ID == id {
			f.days = append(f.days[:i], f.days[i+1:]...)
			return nil
		}
	}
	return &apiclient.APIError{StatusCode: 404, Status: "404 Not Found"}
}

func newManager(api *fakeAPI) *Manager {
	return NewManager(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		day  model.NonWorkingDay
		ok   bool
	}{
		{"holiday", model.NonWorkingDay{Date: "2024-12-25", Description: "Christmas", Type: model.DayHoliday}, true},
		{"bad date", model.NonWorkingDay{Date: "25/12/2024", Description: "Christmas", Type: model.DayHoliday}, false},
		{"impossible date", model.NonWorkingDay{Date: "2024-02-30", Description: "x", Type: model.DayHoliday}, false},
		{"no description", model.NonWorkingDay{Date: "2024-12-25", Description: " ", Type: model.DayHoliday}, false},
		{"bad type", model.NonWorkingDay{Date: "2024-12-25", Description: "x", Type: "weekend"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.day)
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v", err)
			}
			if err != nil && !errors.Is(err, ErrInvalidDay) {
				t.Errorf("error %v does not wrap ErrInvalidDay", err)
			}
		})
	}
}

func TestGroupByType(t *testing.T) {
	days := []model.NonWorkingDay{
		{ID: 1, Date: "2024-06-01", Type: model.DaySpecial},
		{ID: 2, Date: "2024-01-01", Type: model.DayHoliday},
		{ID: 3, Date: "2024-12-25", Type: model.DayHoliday},
		{ID: 4, Date: "2024-07-01", Type: "weekend"},
	}
	groups := GroupByType(days)
	if len(groups) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].Type != model.DayHoliday || groups[0].Title != "Holidays" || len(groups[0].Days) != 2 {
		t.Errorf("first group = %+v", groups[0])
	}
	if groups[1].Type != model.DaySpecial || groups[1].Title != "Special days" {
		t.Errorf("second group = %+v", groups[1])
	}
	if groups[0].Days[0].ID != 2 {
		t.Errorf("order within group not kept: %+v", groups[0].Days)
	}
}

func TestAddRefreshesList(t *testing.T) {
	api := &fakeAPI{}
	m := newManager(api)

	err := m.Add(context.Background(), model.NonWorkingDay{Date: "2024-12-25", Description: " Christmas ", Type: model.DayHoliday})
	if err != nil {
		t.Fatal(err)
	}
	if api.lists != 1 {
		t.Errorf("list fetched %d times after add", api.lists)
	}
	if days := m.Days(); len(days) != 1 || days[0].Description != "Christmas" {
		t.Errorf("days = %+v", days)
	}
	if m.Banner().Visible() {
		t.Errorf("banner raised on success: %q", m.Banner().Message)
	}
}

func TestAddInvalidRaisesBannerWithoutCallingAPI(t *testing.T) {
	api := &fakeAPI{}
	m := newManager(api)

	err := m.Add(context.Background(), model.NonWorkingDay{Date: "tomorrow", Description: "x", Type: model.DayHoliday})
	if !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("Add = %v", err)
	}
	if len(api.added) != 0 || api.lists != 0 {
		t.Errorf("api reached for an invalid day")
	}
	if !m.Banner().Visible() {
		t.Fatal("banner not raised")
	}
	m.Dismiss()
	if m.Banner().Visible() {
		t.Errorf("banner still visible after Dismiss")
	}
}

func TestAddSurfacesServerText(t *testing.T) {
	api := &fakeAPI{addErr: &apiclient.APIError{StatusCode: 400, Body: "date already exists"}}
	m := newManager(api)

	err := m.Add(context.Background(), model.NonWorkingDay{Date: "2024-12-25", Description: "x", Type: model.DayVacation})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := m.Banner().Message; got != "date already exists" {
		t.Errorf("banner = %q", got)
	}
}

func TestDelete(t *testing.T) {
	api := &fakeAPI{days: []model.NonWorkingDay{
		{ID: 1, Date: "2024-01-01", Description: "New year", Type: model.DayHoliday},
		{ID: 2, Date: "2024-06-15", Description: "Break", Type: model.DayVacation},
	}}
	m := newManager(api)
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if days := m.Days(); len(days) != 1 || days[0].ID != 2 {
		t.Errorf("days = %+v", days)
	}

	if err := m.Delete(context.Background(), 42); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if got := m.Banner().Message; got != MsgDeleteFailed {
		t.Errorf("banner = %q", got)
	}
}

func TestRefreshFailureEmptiesList(t *testing.T) {
	api := &fakeAPI{days: []model.NonWorkingDay{{ID: 1, Date: "2024-01-01", Description: "x", Type: model.DayHoliday}}}
	m := newManager(api)
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	api.listErr = errors.New("connection refused")
	if _, err := m.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(m.Days()) != 0 {
		t.Errorf("stale list kept")
	}
	if got := m.Banner().Message; got != MsgLoadFailed {
		t.Errorf("banner = %q", got)
	}
}
