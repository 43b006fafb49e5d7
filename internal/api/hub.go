package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	pongWait         = 2 * pingInterval
)

type subscriber struct {
	vault  string // empty receives every vault
	events chan *domain.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans committed events out to websocket subscribers. A subscriber
// that falls more than subscriberBuffer events behind is disconnected.
type Hub struct {
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	closed   bool
	upgrader websocket.Upgrader
	log      *logrus.Entry
	wg       sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Entry) *Hub {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger.WithField("component", "hub"),
	}
}

// Publish implements vault.Publisher.
func (h *Hub) Publish(e *domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.vault != "" && s.vault != e.Vault {
			continue
		}
		select {
		case s.events <- e:
		default:
			h.log.WithField("vault", s.vault).Warn("subscriber too slow, dropping")
			h.removeLocked(s)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for s := range h.subs {
		h.removeLocked(s)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// add registers a subscriber and reserves its read and write goroutines in
// the wait group while holding the lock, so Close cannot return before they
// are accounted for.
func (h *Hub) add(vault string) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{
		vault:  vault,
		events: make(chan *domain.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	h.subs[s] = struct{}{}
	h.wg.Add(2)
	observability.SetStreamSubscribers(len(h.subs))
	return s, true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	s.close()
	observability.SetStreamSubscribers(len(h.subs))
}

// Handler upgrades the request and streams events, optionally filtered by
// the vault query parameter.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.WithError(err).Debug("websocket upgrade failed")
			return
		}
		s, ok := h.add(c.Query("vault"))
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			conn.Close()
			return
		}
		go h.readLoop(conn, s)
		go h.writeLoop(conn, s)
	}
}

// readLoop discards client frames and notices disconnects.
func (h *Hub) readLoop(conn *websocket.Conn, s *subscriber) {
	defer h.wg.Done()
	defer h.remove(s)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, s *subscriber) {
	defer h.wg.Done()
	defer conn.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-s.events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				h.remove(s)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				h.remove(s)
				return
			}
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		}
	}
}
