package stream

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

const writeWait = 200 * time.Millisecond

type Topology struct {
	Rows int     `json:"rows"`
	Cols int     `json:"cols"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

type Message struct {
	T       int64     `json:"t"`
	FrameID uint64    `json:"frame_id"`
	Temps   []Reading `json:"temps"`
	Lo      Reading   `json:"lo"`
	Hi      Reading   `json:"hi"`
}

// Reading is a temperature encoded as null when not finite.
type Reading float64

func (r Reading) MarshalJSON() ([]byte, error) {
	v := float64(r)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

type Health struct {
	FrameID uint64  `json:"frame_id"`
	UptimeS float64 `json:"uptime_s"`
	Clients int     `json:"clients"`
}

// Hub fans frames out to websocket clients.
type Hub struct {
	mu        sync.RWMutex
	cal       model.Calibration
	log       zerolog.Logger
	frameID   uint64
	startTime time.Time
	clients   map[*websocket.Conn]bool
	up        websocket.Upgrader
}

func NewHub(cal model.Calibration, log zerolog.Logger) *Hub {
	return &Hub{
		cal:       cal,
		log:       log,
		startTime: time.Now(),
		clients:   map[*websocket.Conn]bool{},
		up:        websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handler routes /ws and /health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleFrames)
	mux.HandleFunc("/health", h.HandleHealth)
	return mux
}

func (h *Hub) HandleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade")
		return
	}
	// topology goes out before the client can see any frame
	h.mu.Lock()
	h.sendTopology(conn)
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := Health{
		FrameID: h.frameID,
		UptimeS: time.Since(h.startTime).Seconds(),
		Clients: len(h.clients),
	}
	h.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Publish broadcasts f to every connected client. Slow or gone clients are
// skipped; their reader goroutine drops them.
func (h *Hub) Publish(f *model.Frame) error {
	lo, hi := f.Bounds()
	temps := make([]Reading, len(f))
	for i, t := range f {
		temps[i] = Reading(t)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frameID++
	b, err := json.Marshal(Message{
		T:       time.Now().UnixNano(),
		FrameID: h.frameID,
		Temps:   temps,
		Lo:      Reading(lo),
		Hi:      Reading(hi),
	})
	if err != nil {
		return err
	}
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug().Err(err).Msg("write frame")
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
	}
	return nil
}

func (h *Hub) sendTopology(conn *websocket.Conn) {
	b, _ := json.Marshal(Topology{
		Rows: int(model.Rows),
		Cols: int(model.Columns),
		Min:  h.cal.Min,
		Max:  h.cal.Max,
	})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
