package routes

import (
	"context"
	"fmt"
	"sync"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DefaultSlots is the catalog size used when none is configured
const DefaultSlots = 10

// TemplateRepository persists whole templates
type TemplateRepository interface {
	List(ctx context.Context) ([]models.TemplateRecord, error)
	// Upsert writes the full stop list of rec.Slot, updating by rec.ID when set,
	// and leaves the stored row in rec.
	Upsert(ctx context.Context, rec *models.TemplateRecord) error
}

// Catalog owns the fixed set of template slots, numbered 1..Size
type Catalog struct {
	repo TemplateRepository
	size int

	mu    sync.RWMutex
	slots []models.Template
}

// NewCatalog creates a catalog of size empty slots. Call Load to read the store.
func NewCatalog(repo TemplateRepository, size int) *Catalog {
	if size <= 0 {
		size = DefaultSlots
	}
	c := &Catalog{repo: repo, size: size, slots: make([]models.Template, size)}
	for i := range c.slots {
		c.slots[i] = emptyTemplate(i + 1)
	}
	return c
}

// SlotName is the fixed display name of a slot
func SlotName(slot int) string {
	return fmt.Sprintf("Template %d", slot)
}

func emptyTemplate(slot int) models.Template {
	return models.Template{Slot: slot, Name: SlotName(slot), Stops: []models.Stop{}}
}

func fromRecord(rec models.TemplateRecord) models.Template {
	id := rec.ID
	stops := models.CloneStops(rec.Stops)
	return models.Template{ID: &id, Slot: rec.Slot, Name: SlotName(rec.Slot), Stops: stops}
}

func cloneTemplate(t models.Template) models.Template {
	out := t
	if t.ID != nil {
		id := *t.ID
		out.ID = &id
	}
	out.Stops = models.CloneStops(t.Stops)
	return out
}

// Size returns the number of slots
func (c *Catalog) Size() int {
	return c.size
}

func (c *Catalog) checkSlot(slot int) error {
	if slot < 1 || slot > c.size {
		return models.Invalid(models.ErrSlotRange, "template slot %d out of range 1..%d", slot, c.size)
	}
	return nil
}

// Load reads every stored template and returns all slots. Slots without a
// stored row come back empty.
func (c *Catalog) Load(ctx context.Context) ([]models.Template, error) {
	records, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	slots := make([]models.Template, c.size)
	for i := range slots {
		slots[i] = emptyTemplate(i + 1)
	}
	for _, rec := range records {
		if rec.Slot < 1 || rec.Slot > c.size {
			continue
		}
		slots[rec.Slot-1] = fromRecord(rec)
	}

	c.mu.Lock()
	c.slots = slots
	c.mu.Unlock()

	return c.Slots(), nil
}

// Slots returns a copy of every slot
func (c *Catalog) Slots() []models.Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Template, len(c.slots))
	for i, t := range c.slots {
		out[i] = cloneTemplate(t)
	}
	return out
}

// Slot returns a copy of one slot
func (c *Catalog) Slot(slot int) (models.Template, error) {
	if err := c.checkSlot(slot); err != nil {
		return models.Template{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneTemplate(c.slots[slot-1]), nil
}

// replace swaps the in-memory slot without touching the store
func (c *Catalog) replace(t models.Template) {
	c.mu.Lock()
	c.slots[t.Slot-1] = cloneTemplate(t)
	c.mu.Unlock()
}

// Save writes the whole stop list of a slot. A slot that was never stored and
// is saved empty is reset in memory without a write. On failure the
// in-memory slot is left as it was.
func (c *Catalog) Save(ctx context.Context, slot int, stops []models.Stop, id *uuid.UUID) (models.Template, error) {
	if err := c.checkSlot(slot); err != nil {
		return models.Template{}, err
	}

	if id == nil && len(stops) == 0 {
		t := emptyTemplate(slot)
		c.replace(t)
		return t, nil
	}

	rec := &models.TemplateRecord{
		Slot:  slot,
		Name:  SlotName(slot),
		Stops: datatypes.JSONSlice[models.Stop](models.CloneStops(stops)),
	}
	if id != nil {
		rec.ID = *id
	}
	if err := c.repo.Upsert(ctx, rec); err != nil {
		return models.Template{}, fmt.Errorf("save %s: %w", SlotName(slot), err)
	}

	t := fromRecord(*rec)
	c.replace(t)
	return cloneTemplate(t), nil
}
