package framework

import (
	"sort"
	"sync"

	"github.com/launchdarkly/test-report-aggregator/servicedef"
)

// DefaultPriority is the priority of subscribers that do not ask for a specific one.
const DefaultPriority = 0

// ReportPriority is the priority at which report builders subscribe. It is lower than
// DefaultPriority so that any other consumer of an event has finished with it first.
const ReportPriority = -50

// Handler receives one event.
type Handler func(servicedef.Event)

// Subscription binds an event kind to a handler. Handlers with a higher Priority are called
// first; handlers with equal priority are called in the order they were subscribed.
type Subscription struct {
	Kind     servicedef.EventKind
	Handler  Handler
	Priority int
}

// Subscriber declares a fixed table of subscriptions.
type Subscriber interface {
	SubscribedEvents() []Subscription
}

type registeredHandler struct {
	handler  Handler
	priority int
	order    int
}

// Dispatcher routes events to their subscribed handlers. Dispatch may be called from several
// goroutines; events are handled one at a time, each by all of its handlers before the next.
// A handler must not call Dispatch.
type Dispatcher struct {
	handlers map[servicedef.EventKind][]registeredHandler
	count    int
	lock     sync.Mutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[servicedef.EventKind][]registeredHandler)}
}

func (d *Dispatcher) Subscribe(kind servicedef.EventKind, priority int, handler Handler) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.count++
	list := append(d.handlers[kind], registeredHandler{handler: handler, priority: priority, order: d.count})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].order < list[j].order
	})
	d.handlers[kind] = list
}

func (d *Dispatcher) AddSubscriber(s Subscriber) {
	for _, sub := range s.SubscribedEvents() {
		d.Subscribe(sub.Kind, sub.Priority, sub.Handler)
	}
}

// Dispatch calls every handler subscribed to the event's kind and returns how many there were.
func (d *Dispatcher) Dispatch(event servicedef.Event) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	handlers := d.handlers[event.Kind]
	for _, h := range handlers {
		h.handler(event)
	}
	return len(handlers)
}
