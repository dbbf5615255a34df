package routes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/google/uuid"
)

// TimeStep is how far the working time moves after each staged batch
const TimeStep = 5 * time.Minute

// Directory resolves the people and places a stop refers to
type Directory interface {
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetBranches(ctx context.Context, ids []uuid.UUID) ([]models.Branch, error)
}

// StageRequest adds one stop per branch for a single employee at one time.
// An empty Time uses the slot's working time.
type StageRequest struct {
	Slot       int
	EmployeeID uuid.UUID
	ClientID   uuid.UUID
	BranchIDs  []uuid.UUID
	Time       string
}

// StageResult reports what Stage added
type StageResult struct {
	Added    []models.Stop `json:"added"`
	Skipped  int           `json:"skipped"`
	Pending  []models.Stop `json:"pending"`
	NextTime string        `json:"next_time"`
}

// StopChange is the replacement for one stop. Zero fields keep the current value.
type StopChange struct {
	EmployeeID uuid.UUID
	ClientID   uuid.UUID
	BranchID   uuid.UUID
	Time       string
}

// MoveResult holds both slots after a move
type MoveResult struct {
	Source models.Template `json:"source"`
	Target models.Template `json:"target"`
}

// Editor applies stop edits to catalog slots. Every operation holds one lock,
// so in-memory slots and pending lists are never seen half updated.
type Editor struct {
	catalog *Catalog
	dir     Directory

	mu          sync.Mutex
	pending     map[int][]models.Stop
	workingTime map[int]string
}

// NewEditor creates an editor over catalog
func NewEditor(catalog *Catalog, dir Directory) *Editor {
	return &Editor{
		catalog:     catalog,
		dir:         dir,
		pending:     make(map[int][]models.Stop),
		workingTime: make(map[int]string),
	}
}

func (e *Editor) activeEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	if id == uuid.Nil {
		return nil, models.Invalid(models.ErrMissingEmployee, "employee is required")
	}
	emp, err := e.dir.GetEmployee(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Invalid(models.ErrNotFound, "employee %s not found", id)
		}
		return nil, err
	}
	if !emp.Active {
		return nil, models.Invalid(models.ErrInactive, "employee %s is inactive", emp.Name)
	}
	return emp, nil
}

func (e *Editor) client(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	if id == uuid.Nil {
		return nil, models.Invalid(models.ErrMissingBranch, "client is required")
	}
	c, err := e.dir.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Invalid(models.ErrNotFound, "client %s not found", id)
		}
		return nil, err
	}
	return c, nil
}

// branchesOf resolves ids in order and checks they all belong to client
func (e *Editor) branchesOf(ctx context.Context, client *models.Client, ids []uuid.UUID) ([]models.Branch, error) {
	found, err := e.dir.GetBranches(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Branch, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}
	out := make([]models.Branch, 0, len(ids))
	for _, id := range ids {
		b, ok := byID[id]
		if !ok {
			return nil, models.Invalid(models.ErrNotFound, "branch %s not found", id)
		}
		if b.ClientID != client.ID {
			return nil, models.Invalid(models.ErrMissingBranch, "branch %s does not belong to %s", b.Name, client.Name)
		}
		out = append(out, b)
	}
	return out, nil
}

func stopFor(emp *models.Employee, client *models.Client, b models.Branch, clock string) models.Stop {
	return models.Stop{
		BranchID:      b.ID,
		EmployeeID:    emp.ID,
		ClientID:      client.ID,
		Time:          clock,
		EmployeeName:  emp.Name,
		ClientName:    client.Name,
		BranchName:    b.Name,
		BranchAddress: b.Address,
	}
}

// Stage adds candidate stops to the slot's pending list. Candidates already in
// the template or pending are skipped; if all are skipped nothing changes.
func (e *Editor) Stage(ctx context.Context, req StageRequest) (StageResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tpl, err := e.catalog.Slot(req.Slot)
	if err != nil {
		return StageResult{}, err
	}
	raw := req.Time
	if raw == "" {
		raw = e.workingTime[req.Slot]
	}
	clock, err := models.NormalizeClock(raw)
	if err != nil {
		return StageResult{}, err
	}
	if len(req.BranchIDs) == 0 {
		return StageResult{}, models.Invalid(models.ErrMissingBranch, "at least one branch is required")
	}
	emp, err := e.activeEmployee(ctx, req.EmployeeID)
	if err != nil {
		return StageResult{}, err
	}
	client, err := e.client(ctx, req.ClientID)
	if err != nil {
		return StageResult{}, err
	}
	branches, err := e.branchesOf(ctx, client, req.BranchIDs)
	if err != nil {
		return StageResult{}, err
	}

	seen := models.KeySet(tpl.Stops)
	for k := range models.KeySet(e.pending[req.Slot]) {
		seen[k] = struct{}{}
	}
	var added []models.Stop
	for _, b := range branches {
		s := stopFor(emp, client, b, clock)
		if _, dup := seen[s.Key()]; dup {
			continue
		}
		seen[s.Key()] = struct{}{}
		added = append(added, s)
	}
	if len(added) == 0 {
		return StageResult{}, models.Invalid(models.ErrDuplicateStop, "all selected stops already exist at %s", clock)
	}

	next, err := models.AdvanceClock(clock, TimeStep)
	if err != nil {
		return StageResult{}, err
	}
	pending := models.SortStops(append(models.CloneStops(e.pending[req.Slot]), added...))
	e.pending[req.Slot] = pending
	e.workingTime[req.Slot] = next

	return StageResult{
		Added:    added,
		Skipped:  len(branches) - len(added),
		Pending:  models.CloneStops(pending),
		NextTime: next,
	}, nil
}

// Pending returns the staged stops of a slot
func (e *Editor) Pending(slot int) ([]models.Stop, error) {
	if err := e.catalog.checkSlot(slot); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.CloneStops(e.pending[slot]), nil
}

// WorkingTime returns the time the next Stage defaults to, or "" when unset
func (e *Editor) WorkingTime(slot int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workingTime[slot]
}

// ClearPending drops the staged stops of a slot
func (e *Editor) ClearPending(slot int) error {
	if err := e.catalog.checkSlot(slot); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, slot)
	return nil
}

// Commit merges the pending list into the slot and persists it. The pending
// list is kept when nothing is written.
func (e *Editor) Commit(ctx context.Context, slot int) (models.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tpl, err := e.catalog.Slot(slot)
	if err != nil {
		return models.Template{}, err
	}
	pending := e.pending[slot]
	if len(pending) == 0 {
		return models.Template{}, models.Invalid(models.ErrEmptyStops, "no pending stops for %s", tpl.Name)
	}

	existing := models.KeySet(tpl.Stops)
	var survivors []models.Stop
	for _, s := range pending {
		if _, dup := existing[s.Key()]; !dup {
			survivors = append(survivors, s)
		}
	}
	if len(survivors) == 0 {
		return models.Template{}, models.Invalid(models.ErrDuplicateStop, "all pending stops already exist in %s", tpl.Name)
	}

	merged := models.SortStops(append(models.CloneStops(tpl.Stops), survivors...))
	saved, err := e.catalog.Save(ctx, slot, merged, tpl.ID)
	if err != nil {
		return models.Template{}, err
	}
	delete(e.pending, slot)
	return saved, nil
}

func indexOf(stops []models.Stop, key models.StopKey) int {
	for i, s := range stops {
		if s.Key() == key {
			return i
		}
	}
	return -1
}

// Reload rereads every slot from the store. It waits for any edit in
// flight so a failed write cannot restore a slot older than the reload.
func (e *Editor) Reload(ctx context.Context) ([]models.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Load(ctx)
}

// Remove deletes one stop. The slot shows the removal before the write
// returns, and is put back if the write fails.
func (e *Editor) Remove(ctx context.Context, slot int, key models.StopKey) (models.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tpl, err := e.catalog.Slot(slot)
	if err != nil {
		return models.Template{}, err
	}
	i := indexOf(tpl.Stops, key)
	if i < 0 {
		return models.Template{}, models.Invalid(models.ErrNotFound, "stop %s not found in %s", key, tpl.Name)
	}

	next := append(models.CloneStops(tpl.Stops[:i]), tpl.Stops[i+1:]...)
	optimistic := tpl
	optimistic.Stops = next
	e.catalog.replace(optimistic)

	saved, err := e.catalog.Save(ctx, slot, next, tpl.ID)
	if err != nil {
		e.catalog.replace(tpl)
		return models.Template{}, err
	}
	return saved, nil
}

// Edit replaces one stop in place
func (e *Editor) Edit(ctx context.Context, slot int, key models.StopKey, change StopChange) (models.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tpl, err := e.catalog.Slot(slot)
	if err != nil {
		return models.Template{}, err
	}
	i := indexOf(tpl.Stops, key)
	if i < 0 {
		return models.Template{}, models.Invalid(models.ErrNotFound, "stop %s not found in %s", key, tpl.Name)
	}

	updated, err := e.apply(ctx, tpl.Stops[i], change)
	if err != nil {
		return models.Template{}, err
	}
	for j, s := range tpl.Stops {
		if j != i && s.Key() == updated.Key() {
			return models.Template{}, models.Invalid(models.ErrDuplicateStop,
				"%s already visits %s at %s", updated.EmployeeName, updated.BranchName, updated.Time)
		}
	}

	next := models.CloneStops(tpl.Stops)
	next[i] = updated
	return e.catalog.Save(ctx, slot, models.SortStops(next), tpl.ID)
}

// apply resolves a StopChange against the current stop. Names are only
// refreshed for the fields that change.
func (e *Editor) apply(ctx context.Context, cur models.Stop, change StopChange) (models.Stop, error) {
	out := cur

	if change.Time != "" {
		clock, err := models.NormalizeClock(change.Time)
		if err != nil {
			return models.Stop{}, err
		}
		out.Time = clock
	}

	if change.EmployeeID != uuid.Nil && change.EmployeeID != cur.EmployeeID {
		emp, err := e.activeEmployee(ctx, change.EmployeeID)
		if err != nil {
			return models.Stop{}, err
		}
		out.EmployeeID = emp.ID
		out.EmployeeName = emp.Name
	}

	clientID := change.ClientID
	if clientID == uuid.Nil {
		clientID = cur.ClientID
	}
	branchID := change.BranchID
	if branchID == uuid.Nil {
		branchID = cur.BranchID
	}
	if clientID == cur.ClientID && branchID == cur.BranchID {
		return out, nil
	}
	if branchID == cur.BranchID && change.BranchID == uuid.Nil {
		return models.Stop{}, models.Invalid(models.ErrMissingBranch, "a branch of the new client is required")
	}

	client, err := e.client(ctx, clientID)
	if err != nil {
		return models.Stop{}, err
	}
	branches, err := e.branchesOf(ctx, client, []uuid.UUID{branchID})
	if err != nil {
		return models.Stop{}, err
	}
	b := branches[0]
	out.ClientID = client.ID
	out.ClientName = client.Name
	out.BranchID = b.ID
	out.BranchName = b.Name
	out.BranchAddress = b.Address
	return out, nil
}

// BulkReassign gives the selected stops to another employee
func (e *Editor) BulkReassign(ctx context.Context, slot int, keys []models.StopKey, employeeID uuid.UUID) (models.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tpl, err := e.catalog.Slot(slot)
	if err != nil {
		return models.Template{}, err
	}
	if len(keys) == 0 {
		return models.Template{}, models.Invalid(models.ErrEmptyStops, "no stops selected")
	}
	emp, err := e.activeEmployee(ctx, employeeID)
	if err != nil {
		return models.Template{}, err
	}

	selected := make(map[models.StopKey]struct{}, len(keys))
	for _, k := range keys {
		selected[k] = struct{}{}
	}
	next := models.CloneStops(tpl.Stops)
	matched := 0
	for i := range next {
		if _, ok := selected[next[i].Key()]; !ok {
			continue
		}
		next[i].EmployeeID = emp.ID
		next[i].EmployeeName = emp.Name
		matched++
	}
	if matched == 0 {
		return models.Template{}, models.Invalid(models.ErrNotFound, "none of the selected stops are in %s", tpl.Name)
	}
	if k, dup := models.HasDuplicateKeys(next); dup {
		return models.Template{}, models.Invalid(models.ErrDuplicateStop, "reassigning would duplicate stop %s", k)
	}
	return e.catalog.Save(ctx, slot, next, tpl.ID)
}

// Move transfers the selected stops from source to target. The target is
// written first; if the source write then fails the stops exist in both.
func (e *Editor) Move(ctx context.Context, source, target int, keys []models.StopKey) (MoveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if source == target {
		return MoveResult{}, models.Invalid(models.ErrSameTemplate, "source and target template are the same")
	}
	src, err := e.catalog.Slot(source)
	if err != nil {
		return MoveResult{}, err
	}
	dst, err := e.catalog.Slot(target)
	if err != nil {
		return MoveResult{}, err
	}
	if len(keys) == 0 {
		return MoveResult{}, models.Invalid(models.ErrEmptyStops, "no stops selected")
	}

	selected := make(map[models.StopKey]struct{}, len(keys))
	for _, k := range keys {
		selected[k] = struct{}{}
	}
	var moved, remaining []models.Stop
	for _, s := range src.Stops {
		if _, ok := selected[s.Key()]; ok {
			moved = append(moved, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	if len(moved) == 0 {
		return MoveResult{}, models.Invalid(models.ErrNotFound, "none of the selected stops are in %s", src.Name)
	}
	inTarget := models.KeySet(dst.Stops)
	for _, s := range moved {
		if _, dup := inTarget[s.Key()]; dup {
			return MoveResult{}, models.Invalid(models.ErrDuplicateStop,
				"%s already has %s at %s for %s", dst.Name, s.BranchName, s.Time, s.EmployeeName)
		}
	}

	savedTarget, err := e.catalog.Save(ctx, target, models.SortStops(append(models.CloneStops(dst.Stops), moved...)), dst.ID)
	if err != nil {
		return MoveResult{}, err
	}
	savedSource, err := e.catalog.Save(ctx, source, remaining, src.ID)
	if err != nil {
		return MoveResult{}, fmt.Errorf("stops copied to %s but not removed from %s: %w", dst.Name, src.Name, err)
	}
	return MoveResult{Source: savedSource, Target: savedTarget}, nil
}
