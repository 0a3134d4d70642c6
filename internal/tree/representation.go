package tree

import "golang.org/x/text/language"

// ActorContext identifies who triggered an operation. The engine passes it
// through to listeners untouched.
type ActorContext struct {
	Locale language.Tag
	UserID string
}

// DefaultActor is an anonymous English-locale actor.
func DefaultActor() ActorContext {
	return ActorContext{Locale: language.English}
}

// Representation is the host-facing description of a tree, assembled by
// listeners of EventCreateRepresentation.
type Representation struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines,omitempty"`
	Bar   *Bar     `json:"bar,omitempty"`
}

// Bar is a filled/total indicator such as durability.
type Bar struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

// CreateRepresentation builds an empty representation named after the root
// component and lets systems decorate it.
func (t *Tree) CreateRepresentation(actor ActorContext) (*Representation, error) {
	rep := &Representation{Name: t.root.component.ID}
	err := t.Dispatch(&Event{
		Kind:           EventCreateRepresentation,
		Actor:          actor,
		Representation: rep,
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}
