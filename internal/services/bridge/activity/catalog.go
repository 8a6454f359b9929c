package activity

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/voluntarios/learnbridge/internal/platform/errors"
)

type catalogFile struct {
	Activities []Activity `yaml:"activities"`
}

// Catalog is a read-only, id-indexed set of activities.
type Catalog struct {
	byID  map[string]Activity
	order []string
}

// NewCatalog indexes activities by id. Ids must be non-blank and unique.
func NewCatalog(activities []Activity) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Activity, len(activities))}
	for i, a := range activities {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("activity #%d: id is required", i+1)
		}
		if _, exists := c.byID[a.ID]; exists {
			return nil, fmt.Errorf("activity %q: duplicate id", a.ID)
		}
		c.byID[a.ID] = a
		c.order = append(c.order, a.ID)
	}
	sort.Strings(c.order)
	return c, nil
}

// ParseCatalog decodes a YAML document with a top-level activities list.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode activity catalog: %w", err)
	}
	return NewCatalog(file.Activities)
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open activity catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// Get returns the activity with the given id.
func (c *Catalog) Get(id string) (Activity, error) {
	id = strings.TrimSpace(id)
	if c != nil {
		if a, ok := c.byID[id]; ok {
			return a, nil
		}
	}
	return Activity{}, apperrors.WithMetadata(apperrors.CodeActivityNotFound, "activity not found", map[string]string{"ActivityID": id})
}

// List returns all activities ordered by id.
func (c *Catalog) List() []Activity {
	if c == nil {
		return nil
	}
	out := make([]Activity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
