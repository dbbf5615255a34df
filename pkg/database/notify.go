package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/arnavshah/route-planner-api/pkg/notify"
	"gorm.io/gorm"
)

var tableKinds = map[string]notify.Kind{
	"employees":   notify.Employees,
	"clients":     notify.Clients,
	"branches":    notify.Branches,
	"templates":   notify.Templates,
	"jobs":        notify.Jobs,
	"assignments": notify.Assignments,
}

type deferredKey struct{}

// deferred holds the signals raised inside a transaction until it commits
type deferred struct {
	mu      sync.Mutex
	signals []func()
}

func (d *deferred) add(fn func()) {
	d.mu.Lock()
	d.signals = append(d.signals, fn)
	d.mu.Unlock()
}

// afterCommit returns a context whose writes are announced only when commit
// is called. Callers skip commit when the transaction rolls back.
func afterCommit(ctx context.Context) (context.Context, func()) {
	d := &deferred{}
	return context.WithValue(ctx, deferredKey{}, d), func() {
		d.mu.Lock()
		signals := d.signals
		d.signals = nil
		d.mu.Unlock()
		for _, fn := range signals {
			fn()
		}
	}
}

// RegisterNotifications publishes to broker when a write to a watched table
// affects rows. Writes made under an afterCommit context publish once the
// caller commits; plain writes publish as soon as the statement succeeds.
func RegisterNotifications(db *gorm.DB, broker *notify.Broker) error {
	publish := func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Schema == nil || tx.RowsAffected == 0 {
			return
		}
		kind, ok := tableKinds[tx.Statement.Schema.Table]
		if !ok {
			return
		}
		if ctx := tx.Statement.Context; ctx != nil {
			if d, ok := ctx.Value(deferredKey{}).(*deferred); ok {
				d.add(func() { broker.Publish(kind) })
				return
			}
		}
		broker.Publish(kind)
	}

	cb := db.Callback()
	if err := cb.Create().After("gorm:create").Register("notify:create", publish); err != nil {
		return fmt.Errorf("register create callback: %w", err)
	}
	if err := cb.Update().After("gorm:update").Register("notify:update", publish); err != nil {
		return fmt.Errorf("register update callback: %w", err)
	}
	if err := cb.Delete().After("gorm:delete").Register("notify:delete", publish); err != nil {
		return fmt.Errorf("register delete callback: %w", err)
	}
	return nil
}
