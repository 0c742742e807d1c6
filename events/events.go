package events

import (
	"encoding/json"
	"fmt"

	"github.com/romshark/todonotify/domain"
	"github.com/romshark/todonotify/pkg/broadcast"
)

type Kind string

const (
	KindAdded   Kind = "added"
	KindRemoved Kind = "removed"
)

// Event is a change of the todo store, either Added or Removed.
type Event interface {
	Kind() Kind
	Subject() domain.Todo
	isEvent()
}

type Added struct{ Todo domain.Todo }

func (Added) Kind() Kind             { return KindAdded }
func (e Added) Subject() domain.Todo { return e.Todo }
func (Added) isEvent()               {}

type Removed struct{ Todo domain.Todo }

func (Removed) Kind() Kind             { return KindRemoved }
func (e Removed) Subject() domain.Todo { return e.Todo }
func (Removed) isEvent()               {}

type message struct {
	Type Kind        `json:"type"`
	Todo domain.Todo `json:"todo"`
}

// Encode returns the JSON wire representation of e.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(message{Type: e.Kind(), Todo: e.Subject()})
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", e.Kind(), err)
	}
	return b, nil
}

type (
	Registry    = broadcast.Registry[Event]
	Broadcaster = broadcast.Broadcaster[Event]
	Subscriber  = broadcast.Subscriber[Event]
)

// NewBroadcaster creates a broadcaster with an empty subscriber registry.
func NewBroadcaster() *Broadcaster {
	return broadcast.NewBroadcaster(broadcast.NewRegistry[Event]())
}
