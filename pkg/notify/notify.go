package notify

import "sync"

// Kind names a collection that can change
type Kind string

const (
	Employees   Kind = "employees"
	Clients     Kind = "clients"
	Branches    Kind = "branches"
	Templates   Kind = "templates"
	Jobs        Kind = "jobs"
	Assignments Kind = "assignments"
)

var kinds = map[Kind]struct{}{
	Employees: {}, Clients: {}, Branches: {}, Templates: {}, Jobs: {}, Assignments: {},
}

// ParseKind validates a kind name
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kinds[k]
	return k, ok
}

// Broker fans out "something changed" signals. Signals carry no payload and
// coalesce, so a slow subscriber sees at most one pending signal.
type Broker struct {
	mu   sync.Mutex
	next int
	subs map[Kind]map[int]chan struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[Kind]map[int]chan struct{})}
}

// Subscribe returns a channel signalled after each change to kind, and a
// function that unsubscribes and closes it.
func (b *Broker) Subscribe(kind Kind) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]chan struct{})
	}
	b.subs[kind][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[kind], id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish signals every subscriber of kind without blocking
func (b *Broker) Publish(kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[kind] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions to kind
func (b *Broker) Subscribers(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}
