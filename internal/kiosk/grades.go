package kiosk

import (
	"context"
	"fmt"
	"sync"

	"attendance-kiosk/internal/model"
)

// GradeSource fetches the grade catalog.
type GradeSource interface {
	GradeLevels(ctx context.Context) (model.GradeCatalog, error)
}

// GradeLoader caches the grade catalog in memory. The cache survives role
// changes; a failed refresh keeps the previous catalog.
type GradeLoader struct {
	src GradeSource

	mu      sync.RWMutex
	catalog model.GradeCatalog
}

// NewGradeLoader creates an empty loader.
func NewGradeLoader(src GradeSource) *GradeLoader {
	return &GradeLoader{src: src, catalog: model.GradeCatalog{}}
}

// Load fetches the catalog and replaces the cached copy.
func (l *GradeLoader) Load(ctx context.Context) (model.GradeCatalog, error) {
	catalog, err := l.src.GradeLevels(ctx)
	if err != nil {
		return l.Catalog(), fmt.Errorf("fetch grade catalog: %w", err)
	}
	if catalog == nil {
		catalog = model.GradeCatalog{}
	}

	l.mu.Lock()
	l.catalog = catalog.Clone()
	l.mu.Unlock()
	return catalog, nil
}

// Catalog returns a copy of the cached catalog, empty before the first load.
func (l *GradeLoader) Catalog() model.GradeCatalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.catalog.Clone()
}

// GradeName resolves id against the cache.
func (l *GradeLoader) GradeName(id int) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.catalog.GradeName(id)
}
