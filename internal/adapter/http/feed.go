package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
)

const (
	feedBuffer        = 16
	keepaliveInterval = 30 * time.Second
)

// Feed fans recorded readings out to connected Server-Sent Events clients.
// Slow clients miss readings rather than block the recorder.
type Feed struct {
	mu      sync.RWMutex
	clients map[string]chan domain.Reading
	logger  *slog.Logger
}

// NewFeed creates an empty Feed.
func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		clients: make(map[string]chan domain.Reading),
		logger:  logger,
	}
}

// AddClient registers a client and returns its reading channel.
func (f *Feed) AddClient(id string) <-chan domain.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.clients[id]; ok {
		close(existing)
	}
	ch := make(chan domain.Reading, feedBuffer)
	f.clients[id] = ch
	f.logger.Debug("sse client connected", "client_id", id, "clients", len(f.clients))
	return ch
}

// RemoveClient unregisters a client and closes its channel.
func (f *Feed) RemoveClient(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.clients[id]; ok {
		close(ch)
		delete(f.clients, id)
		f.logger.Debug("sse client disconnected", "client_id", id, "clients", len(f.clients))
	}
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Broadcast offers r to every client without blocking.
func (f *Feed) Broadcast(r domain.Reading) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for id, ch := range f.clients {
		select {
		case ch <- r:
		default:
			f.logger.Warn("sse client channel full, dropping reading", "client_id", id)
		}
	}
}

func handleStream(feed *Feed, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		// The stream outlives the server-wide write timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id := uuid.NewString()
		readings := feed.AddClient(id)
		defer feed.RemoveClient(id)

		if err := writeEvent(w, "connected", "", map[string]string{"client_id": id}); err != nil {
			return
		}
		flusher.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case reading, ok := <-readings:
				if !ok {
					return
				}
				eventID := fmt.Sprintf("%d", reading.Time.UnixMilli())
				if err := writeEvent(w, "reading", eventID, reading); err != nil {
					logger.Debug("sse write failed", "client_id", id, "error", err)
					return
				}
				flusher.Flush()
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// writeEvent writes one event in text/event-stream framing.
func writeEvent(w http.ResponseWriter, event, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal sse data: %w", err)
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
