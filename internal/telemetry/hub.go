package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/config"
)

// Event types published by the service.
const (
	EventReady     = "ready"
	EventHeartbeat = "heartbeat"
	EventArmed     = "armed"
	EventTriggered = "triggered"
	EventCaptured  = "captured"
	EventFault     = "fault"
	EventCommand   = "command"
)

// Event is one telemetry record.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Time time.Time              `json:"ts"`
	Data map[string]interface{} `json:"data"`
}

// Publisher accepts events. The capture loop and dispatcher depend on this, not on Hub.
type Publisher interface {
	Publish(event Event) error
}

// Sink receives every published event, e.g. a message bus bridge.
type Sink interface {
	PublishEvent(event Event) error
}

// SnapshotFunc supplies the state sent in the ready event.
type SnapshotFunc func() map[string]interface{}

// Client is one SSE connection.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Context context.Context
	Cancel  context.CancelFunc
	LastID  int64
	Events  chan Event
	once    sync.Once
	mu      sync.Mutex // guards Writer
}

// Hub distributes events to SSE clients and sinks.
//
// Lock ordering: h.mu before EventBuffer.mu. Client channels are closed once via Client.once.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	sinks    []Sink
	snapshot SnapshotFunc
	nextID   atomic.Int64
	buffer   *EventBuffer
	config   config.TelemetryConfig
	logger   zerolog.Logger

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// EventBuffer is a bounded ring of recent events.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewHub creates a hub.
func NewHub(cfg config.TelemetryConfig, logger zerolog.Logger) *Hub {
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = 50
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}

	return &Hub{
		clients: make(map[string]*Client),
		buffer:  NewEventBuffer(cfg.EventBufferSize),
		config:  cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// AddSink registers a sink that receives every later event.
func (h *Hub) AddSink(sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// SetSnapshot sets the provider for the ready event payload.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Subscribe serves one SSE client until its context ends. Blocks.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCtx, cancel := context.WithCancel(ctx)

	lastEventID := int64(0)
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastEventID = id
		}
	}

	client := &Client{
		ID:      uuid.NewString(),
		Writer:  w,
		Context: clientCtx,
		Cancel:  cancel,
		LastID:  lastEventID,
		Events:  make(chan Event, 100),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 {
		for _, event := range h.buffer.GetEventsAfter(lastEventID) {
			if err := h.sendEventToClient(client, event); err != nil {
				h.unregisterClient(client.ID)
				return fmt.Errorf("failed to replay events: %w", err)
			}
		}
	}

	h.mu.Lock()
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	h.logger.Debug().Str("client", client.ID).Int64("lastEventId", lastEventID).Msg("telemetry client subscribed")
	h.handleClient(client)
	return nil
}

// Publish stamps, buffers and fans out an event. Slow clients drop events.
func (h *Hub) Publish(event Event) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if event.ID == 0 {
		event.ID = h.nextID.Add(1)
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if event.Data == nil {
		event.Data = map[string]interface{}{}
	}

	if event.Type != EventHeartbeat {
		h.buffer.AddEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	sinks := append([]Sink(nil), h.sinks...)
	h.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.PublishEvent(event); err != nil {
			h.logger.Warn().Err(err).Str("type", event.Type).Msg("telemetry sink failed")
		}
	}

	for _, client := range clients {
		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return nil
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil
}

// Recent returns up to n buffered events, oldest first.
func (h *Hub) Recent(n int) []Event {
	return h.buffer.Last(n)
}

// ClientCount returns the number of connected SSE clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendReadyEvent(client *Client) error {
	h.mu.RLock()
	snapshot := h.snapshot
	h.mu.RUnlock()

	data := map[string]interface{}{}
	if snapshot != nil {
		data = snapshot()
	}

	return h.sendEventToClient(client, Event{
		ID:   h.nextID.Add(1),
		Type: EventReady,
		Time: time.Now().UTC(),
		Data: map[string]interface{}{"snapshot": data},
	})
}

// sendEventToClient writes one SSE frame and flushes it.
func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *Hub) handleClient(client *Client) {
	defer func() {
		client.once.Do(func() {
			close(client.Events)
		})
		h.unregisterClient(client.ID)
	}()

	for {
		select {
		case <-client.Context.Done():
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if err := h.sendEventToClient(client, event); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[clientID]
	if !exists {
		return
	}
	client.Cancel()
	delete(h.clients, clientID)

	if len(h.clients) == 0 && h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

// startHeartbeat starts the ticker. Caller holds h.mu and has checked heartbeatTicker is nil.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval
	if jitter := h.config.HeartbeatJitter; jitter > 0 {
		interval += time.Duration(rand.Int63n(int64(jitter)))
	}

	h.heartbeatTicker = time.NewTicker(interval)
	h.stopHeartbeat = make(chan struct{})
	ticker := h.heartbeatTicker
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.Publish(Event{Type: EventHeartbeat})
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// Stop disconnects every client and stops the heartbeat.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
	}
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.logger.Warn().Msg("telemetry heartbeat did not stop in time")
	}
}

// NewEventBuffer creates a ring with the given capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// AddEvent appends an event, evicting the oldest at capacity.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		b.events = b.events[1:]
	}
}

// GetEventsAfter returns events with an ID above lastID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// Last returns up to n of the newest events, oldest first.
func (b *EventBuffer) Last(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > len(b.events) {
		n = len(b.events)
	}
	return append([]Event(nil), b.events[len(b.events)-n:]...)
}

// GetCapacity returns the buffer capacity.
func (b *EventBuffer) GetCapacity() int {
	return b.capacity
}

// GetSize returns the number of buffered events.
func (b *EventBuffer) GetSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
