package domain

import "context"

// ObservationFunc receives one raw sensor observation. Returning false asks the
// stream to stop delivering.
type ObservationFunc func(value float64) bool

// Subscription is the handle returned by SensorStream.Start.
type Subscription interface {
	// Stop unregisters the observer and powers the sensor down.
	Stop() error
}

// SensorStream delivers raw observations asynchronously until stopped.
type SensorStream interface {
	Start(ctx context.Context, fn ObservationFunc) (Subscription, error)
}

// Priority ranks a user notification.
type Priority string

const (
	PriorityLow     Priority = "low"
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
)

// Notification is a fire-and-forget message to the user.
type Notification struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority Priority `json:"priority"`
}

// Notifier delivers user notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, id int) error
}

// AlertStateStore persists the storm-episode alert flag.
type AlertStateStore interface {
	AlertActive(ctx context.Context) (bool, error)
	SetAlertActive(ctx context.Context, active bool) error
}
