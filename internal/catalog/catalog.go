// Package catalog provides the read-only list of providers and appointment slots.
//
// A Catalog is immutable after construction and safe for concurrent use.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

// ErrInvalidCatalog is returned when catalog data fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog holds providers and slots in their declared order.
type Catalog struct {
	providers []models.Provider
	slots     []models.Slot
}

// New validates and builds a Catalog. Slots must reference known providers and ids must be unique.
func New(providers []models.Provider, slots []models.Slot) (*Catalog, error) {
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("%w: provider with empty id", ErrInvalidCatalog)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate provider id %q", ErrInvalidCatalog, p.ID)
		}
		seen[p.ID] = true
	}
	slotIDs := make(map[string]bool, len(slots))
	for _, s := range slots {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("%w: slot with empty id", ErrInvalidCatalog)
		}
		key := strings.ToLower(s.ID)
		if slotIDs[key] {
			return nil, fmt.Errorf("%w: duplicate slot id %q", ErrInvalidCatalog, s.ID)
		}
		slotIDs[key] = true
		if !seen[s.ProviderID] {
			return nil, fmt.Errorf("%w: slot %q references unknown provider %q", ErrInvalidCatalog, s.ID, s.ProviderID)
		}
	}
	return &Catalog{
		providers: append([]models.Provider(nil), providers...),
		slots:     append([]models.Slot(nil), slots...),
	}, nil
}

// Default returns the built-in seed catalog: three providers and four slots.
func Default() *Catalog {
	at := func(s string) time.Time {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(fmt.Sprintf("catalog: bad seed time %q: %v", s, err))
		}
		return t
	}
	c, err := New(
		[]models.Provider{
			{ID: "p1", Name: "Dr. Smith", Specialty: "Cardiology"},
			{ID: "p2", Name: "Dr. Johnson", Specialty: "Dermatology"},
			{ID: "p3", Name: "Dr. Williams", Specialty: "Orthopedics"},
		},
		[]models.Slot{
			{ID: "s1", ProviderID: "p1", Start: at("2024-07-01T09:00:00Z")},
			{ID: "s2", ProviderID: "p1", Start: at("2024-07-01T10:00:00Z")},
			{ID: "s3", ProviderID: "p2", Start: at("2024-07-01T11:00:00Z")},
			{ID: "s4", ProviderID: "p3", Start: at("2024-07-01T12:00:00Z")},
		},
	)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid seed data: %v", err))
	}
	return c
}

type catalogFile struct {
	Providers []models.Provider `json:"providers"`
	Slots     []models.Slot     `json:"slots"`
}

// Load decodes a JSON catalog of the form {"providers": [...], "slots": [...]}.
// Slot start times are RFC 3339.
func Load(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	c, err := New(f.Providers, f.Slots)
	if err != nil {
		return nil, err
	}
	slog.Debug("Catalog.Load: loaded catalog", "providers", len(c.providers), "slots", len(c.slots))
	return c, nil
}

// Providers returns the providers in declared order.
func (c *Catalog) Providers() []models.Provider {
	return append([]models.Provider(nil), c.providers...)
}

// Slots returns all slots in declared order.
func (c *Catalog) Slots() []models.Slot {
	return append([]models.Slot(nil), c.slots...)
}

// Provider looks up a provider by exact id.
func (c *Catalog) Provider(id string) (models.Provider, bool) {
	for _, p := range c.providers {
		if p.ID == id {
			return p, true
		}
	}
	return models.Provider{}, false
}

// Slot looks up a slot by id, ignoring case.
func (c *Catalog) Slot(id string) (models.Slot, bool) {
	for _, s := range c.slots {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return models.Slot{}, false
}

// SlotsForProvider returns the provider's slots, preserving catalog order.
func (c *Catalog) SlotsForProvider(providerID string) []models.Slot {
	var out []models.Slot
	for _, s := range c.slots {
		if s.ProviderID == providerID {
			out = append(out, s)
		}
	}
	return out
}

// At resolves a 1-based provider index and a 1-based slot index within that provider.
func (c *Catalog) At(providerIndex, slotIndex int) (models.Provider, models.Slot, bool) {
	if providerIndex < 1 || providerIndex > len(c.providers) {
		return models.Provider{}, models.Slot{}, false
	}
	p := c.providers[providerIndex-1]
	slots := c.SlotsForProvider(p.ID)
	if slotIndex < 1 || slotIndex > len(slots) {
		return models.Provider{}, models.Slot{}, false
	}
	return p, slots[slotIndex-1], true
}
