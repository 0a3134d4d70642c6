package tree

import "fmt"

// EventKind is the closed set of tree events.
type EventKind int

const (
	// EventCreateRepresentation asks systems to decorate a Representation.
	EventCreateRepresentation EventKind = iota + 1

	// EventUse reports the item being used; Amount is the wear applied.
	EventUse

	// EventRepair reports the item being repaired; Amount is restored.
	EventRepair
)

func (k EventKind) String() string {
	switch k {
	case EventCreateRepresentation:
		return "create_representation"
	case EventUse:
		return "use"
	case EventRepair:
		return "repair"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// ParseEventKind maps a name from String back to its kind.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range []EventKind{EventCreateRepresentation, EventUse, EventRepair} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is dispatched to every listener registered for its Kind.
type Event struct {
	Kind   EventKind
	Actor  ActorContext
	Amount int

	// Representation is set for EventCreateRepresentation.
	Representation *Representation
}

// Listener handles an event. Returning an error stops the dispatch.
type Listener func(ev *Event) error

type registration struct {
	node *Node
	fn   Listener
}

// dispatcher is the per-tree ordered listener table. Listeners run in
// registration order, which is build order.
type dispatcher struct {
	listeners map[EventKind][]registration
	depth     int
}

func newDispatcher() *dispatcher {
	return &dispatcher{listeners: make(map[EventKind][]registration)}
}

func (d *dispatcher) reset() {
	clear(d.listeners)
}

func (d *dispatcher) on(kind EventKind, n *Node, fn Listener) {
	d.listeners[kind] = append(d.listeners[kind], registration{node: n, fn: fn})
}

func (d *dispatcher) count() int {
	total := 0
	for _, regs := range d.listeners {
		total += len(regs)
	}
	return total
}

// Dispatch delivers ev synchronously to the listeners for its kind.
// Listeners may dispatch further events up to the engine's depth limit;
// they must not rebuild the tree.
func (t *Tree) Dispatch(ev *Event) error {
	if !t.built {
		return &Error{Code: ErrCodeNotBuilt, Message: fmt.Sprintf("dispatch %s on a tree that needs Build", ev.Kind)}
	}
	d := t.events
	if d.depth >= t.engine.maxEventDepth {
		return &Error{
			Code:    ErrCodeDispatchDepth,
			Message: fmt.Sprintf("dispatch of %s exceeds depth %d", ev.Kind, t.engine.maxEventDepth),
		}
	}

	d.depth++
	defer func() { d.depth-- }()

	for _, reg := range d.listeners[ev.Kind] {
		if err := reg.fn(ev); err != nil {
			return fmt.Errorf("%s listener at %q: %w", ev.Kind, reg.node.Path(), err)
		}
	}
	return nil
}

// Use dispatches EventUse with the given wear.
func (t *Tree) Use(actor ActorContext, amount int) error {
	return t.Dispatch(&Event{Kind: EventUse, Actor: actor, Amount: amount})
}

// Repair dispatches EventRepair with the given amount.
func (t *Tree) Repair(actor ActorContext, amount int) error {
	return t.Dispatch(&Event{Kind: EventRepair, Actor: actor, Amount: amount})
}
