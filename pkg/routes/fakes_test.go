package routes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
)

var errStore = errors.New("store unavailable")

type memTemplates struct {
	mu       sync.Mutex
	rows     map[int]models.TemplateRecord
	writes   int
	failNext bool
}

func newMemTemplates() *memTemplates {
	return &memTemplates{rows: make(map[int]models.TemplateRecord)}
}

func (m *memTemplates) List(ctx context.Context) ([]models.TemplateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TemplateRecord, 0, len(m.rows))
	for _, r := range m.rows {
		r.Stops = models.CloneStops(r.Stops)
		out = append(out, r)
	}
	return out, nil
}

func (m *memTemplates) Upsert(ctx context.Context, rec *models.TemplateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errStore
	}
	m.writes++
	if existing, ok := m.rows[rec.Slot]; ok && rec.ID == uuid.Nil {
		rec.ID = existing.ID
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	stored := *rec
	stored.Stops = models.CloneStops(rec.Stops)
	m.rows[rec.Slot] = stored
	return nil
}

func (m *memTemplates) stored(slot int) (models.TemplateRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[slot]
	return r, ok
}

type memDirectory struct {
	employees map[uuid.UUID]models.Employee
	clients   map[uuid.UUID]models.Client
	branches  map[uuid.UUID]models.Branch
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		employees: make(map[uuid.UUID]models.Employee),
		clients:   make(map[uuid.UUID]models.Client),
		branches:  make(map[uuid.UUID]models.Branch),
	}
}

func (d *memDirectory) addEmployee(name string, active bool) models.Employee {
	e := models.Employee{ID: uuid.New(), Name: name, Active: active}
	d.employees[e.ID] = e
	return e
}

func (d *memDirectory) addClient(name string) models.Client {
	c := models.Client{ID: uuid.New(), Name: name}
	d.clients[c.ID] = c
	return c
}

func (d *memDirectory) addBranch(client models.Client, name string) models.Branch {
	b := models.Branch{ID: uuid.New(), ClientID: client.ID, Name: name, Address: name + " St"}
	d.branches[b.ID] = b
	return b
}

func (d *memDirectory) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	e, ok := d.employees[id]
	if !ok {
		return nil, fmt.Errorf("employee %s: %w", id, models.ErrNotFound)
	}
	return &e, nil
}

func (d *memDirectory) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, ok := d.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", id, models.ErrNotFound)
	}
	return &c, nil
}

func (d *memDirectory) GetBranches(ctx context.Context, ids []uuid.UUID) ([]models.Branch, error) {
	var out []models.Branch
	for _, id := range ids {
		if b, ok := d.branches[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}
