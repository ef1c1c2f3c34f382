package store

import (
	"context"
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations embedded")
	}
	body, err := fs.ReadFile(migrations, files[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "kiosk_events"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("%s missing %q", files[0], want)
		}
	}
}

func TestNilHandlesAreUnhealthy(t *testing.T) {
	var db *DB
	if db.Healthy(context.Background()) {
		t.Error("nil DB reported healthy")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close on nil DB: %v", err)
	}
	var r *Redis
	if r.Healthy(context.Background()) {
		t.Error("nil Redis reported healthy")
	}
}
