package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// Event is pushed to watchers after every successful edit of a table
type Event struct {
	Cell     CellView  `json:"cell"`
	Outcomes []Outcome `json:"outcomes"`
}

type subscriber struct {
	events chan Event
	// closed by the hub; the watcher ends its connection with reason
	done   chan struct{}
	reason string
}

// hub fans edit events out to the websocket watchers of each table. a
// watcher that cannot keep up is dropped rather than blocking the editor.
type hub struct {
	mu     sync.Mutex
	subs   map[gridcalc.Handle]map[*subscriber]struct{}
	logger *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		subs:   make(map[gridcalc.Handle]map[*subscriber]struct{}),
		logger: logger,
	}
}

func (h *hub) subscribe(handle gridcalc.Handle) *subscriber {
	sub := &subscriber{
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[handle] == nil {
		h.subs[handle] = make(map[*subscriber]struct{})
	}
	h.subs[handle][sub] = struct{}{}
	return sub
}

func (h *hub) unsubscribe(handle gridcalc.Handle, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(handle, sub, "")
}

// dropLocked removes sub and signals it once. mu must be held.
func (h *hub) dropLocked(handle gridcalc.Handle, sub *subscriber, reason string) {
	subs, ok := h.subs[handle]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, handle)
	}
	sub.reason = reason
	close(sub.done)
}

func (h *hub) publish(handle gridcalc.Handle, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[handle] {
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("dropping slow watcher", "handle", handle.String())
			h.dropLocked(handle, sub, "watcher too slow")
		}
	}
}

// closeTable disconnects every watcher of a destroyed table
func (h *hub) closeTable(handle gridcalc.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[handle] {
		h.dropLocked(handle, sub, "table destroyed")
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for handle, subs := range h.subs {
		for sub := range subs {
			h.dropLocked(handle, sub, "server shutting down")
		}
	}
}

// watchers returns the number of watchers of a table
func (h *hub) watchers(handle gridcalc.Handle) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[handle])
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	handle, err := gridcalc.ParseHandle(r.PathValue("handle"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// the table must exist before we upgrade
	if !s.registry.Has(handle) {
		s.writeError(w, r, gridcalc.NewApplicationError(gridcalc.NotFound, "table "+handle.String()+" not found"))
		return
	}

	// server timeouts must not cut long lived connections
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	sub := s.hub.subscribe(handle)
	defer s.hub.unsubscribe(handle, sub)
	s.logger.Debug("watcher connected", "handle", handle.String())

	// watchers only listen; reading in the background handles pings and
	// notices when the client goes away
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			drain(ctx, conn, sub)
			conn.Close(websocket.StatusNormalClosure, sub.reason)
			return
		case ev := <-sub.events:
			if err := writeEvent(ctx, conn, ev); err != nil {
				s.logger.Debug("watcher write failed", "handle", handle.String(), "error", err)
				return
			}
		}
	}
}

// drain delivers what was queued before the hub let go of sub
func drain(ctx context.Context, conn *websocket.Conn, sub *subscriber) {
	for {
		select {
		case ev := <-sub.events:
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
