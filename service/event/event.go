package event

import "time"

// Event wraps a typed payload published on a Bus.
type Event[T any] struct {
	Topic     string                 `json:"topic"`
	Key       string                 `json:"key"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event for the supplied topic and key.
func NewEvent[T any](topic, key string, data T) *Event[T] {
	return &Event[T]{
		Topic:     topic,
		Key:       key,
		CreatedAt: time.Now(),
		Data:      data,
	}
}
