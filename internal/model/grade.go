package model

import "sort"

// Grade is a single student grade.
type Grade struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GradeCatalog maps an education level to its ordered grades.
type GradeCatalog map[string][]Grade

// levelOrder is the order levels are searched and listed in.
var levelOrder = []string{"prescolar", "primaria", "secundaria", "media"}

// Levels returns the catalog's level names, known levels first.
func (c GradeCatalog) Levels() []string {
	out := make([]string, 0, len(c))
	seen := make(map[string]bool, len(c))
	for _, lvl := range levelOrder {
		if _, ok := c[lvl]; ok {
			out = append(out, lvl)
			seen[lvl] = true
		}
	}
	var rest []string
	for lvl := range c {
		if !seen[lvl] {
			rest = append(rest, lvl)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Lookup finds a grade by id across all levels.
func (c GradeCatalog) Lookup(id int) (Grade, bool) {
	for _, lvl := range c.Levels() {
		for _, g := range c[lvl] {
			if g.ID == id {
				return g, true
			}
		}
	}
	return Grade{}, false
}

// GradeName returns the display name for id, degrading to a placeholder
// when the catalog is empty or does not know the grade.
func (c GradeCatalog) GradeName(id int) string {
	if len(c) == 0 {
		return "Grade not available"
	}
	if g, ok := c.Lookup(id); ok {
		return g.Name
	}
	return "Grade not found"
}

// Clone returns a deep copy so callers can't mutate a cached catalog.
func (c GradeCatalog) Clone() GradeCatalog {
	if c == nil {
		return nil
	}
	out := make(GradeCatalog, len(c))
	for lvl, grades := range c {
		out[lvl] = append([]Grade(nil), grades...)
	}
	return out
}
