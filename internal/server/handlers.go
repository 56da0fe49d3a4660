package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeongseonghan/nr-sync/internal/acquisition"
	"github.com/jeongseonghan/nr-sync/internal/config"
	"github.com/jeongseonghan/nr-sync/internal/logging"
	"github.com/jeongseonghan/nr-sync/internal/modem"
)

// DefaultHistory is the number of detections kept for /api/detections.
const DefaultHistory = 256

// DetectionEvent is a decoded block as reported to clients.
type DetectionEvent struct {
	ID             string    `json:"id"`
	Time           time.Time `json:"time"`
	CellID         int       `json:"cellId"`
	NID1           int       `json:"nid1"`
	NID2           int       `json:"nid2"`
	ISSB           int       `json:"issb"`
	KSSB           int       `json:"kssb"`
	PSSCorrelation float64   `json:"pssCorrelation"`
	SSSCorrelation float64   `json:"sssCorrelation"`
	Payload        string    `json:"payload"` // hex of the packed PBCH bits
}

// MessageEvent is a message reassembled from a burst.
type MessageEvent struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Handlers holds the HTTP API handlers and the detection history.
type Handlers struct {
	cfg     *config.Config
	wsHub   *WSHub
	log     logging.Logger
	history int
	now     func() time.Time

	mu         sync.Mutex
	detections []DetectionEvent
	messages   []MessageEvent
	cells      map[int]int
}

// NewHandlers creates new API handlers. log may be nil.
func NewHandlers(cfg *config.Config, log logging.Logger) *Handlers {
	if log == nil {
		log = logging.Noop()
	}
	return &Handlers{
		cfg:     cfg,
		wsHub:   NewWSHub(log),
		log:     log,
		history: DefaultHistory,
		now:     time.Now,
		cells:   make(map[int]int),
	}
}

// Hub returns the websocket hub.
func (h *Handlers) Hub() *WSHub { return h.wsHub }

// RecordDetection stores a decoded block and broadcasts it.
func (h *Handlers) RecordDetection(res acquisition.CellSearchResult) DetectionEvent {
	packed := modem.BitsToBytes(res.Payload)
	ev := DetectionEvent{
		ID:             uuid.NewString(),
		Time:           h.now(),
		CellID:         res.Cell.CellID(),
		NID1:           res.Cell.NID1,
		NID2:           res.Cell.NID2,
		ISSB:           res.ISSB,
		KSSB:           res.KSSB,
		PSSCorrelation: res.PSSCorrelation,
		SSSCorrelation: res.SSSCorrelation,
		Payload:        hex.EncodeToString(packed),
	}

	h.mu.Lock()
	h.detections = appendBounded(h.detections, ev, h.history)
	h.cells[ev.CellID]++
	h.mu.Unlock()

	h.wsHub.BroadcastDetection(ev)
	return ev
}

// RecordMessage stores a reassembled message and broadcasts it.
func (h *Handlers) RecordMessage(msg []byte) MessageEvent {
	ev := MessageEvent{
		ID:      uuid.NewString(),
		Time:    h.now(),
		Message: string(msg),
	}

	h.mu.Lock()
	h.messages = appendBounded(h.messages, ev, h.history)
	h.mu.Unlock()

	h.log.Info("message reassembled", logging.String("id", ev.ID), logging.Int("bytes", len(msg)))
	h.wsHub.BroadcastMessage(ev)
	return ev
}

func appendBounded[T any](s []T, v T, n int) []T {
	s = append(s, v)
	if len(s) > n {
		s = append(s[:0:0], s[len(s)-n:]...)
	}
	return s
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	h.wsHub.Attach(conn)
}

type statusResponse struct {
	Status     string            `json:"status"`
	Grid       config.GridConfig `json:"grid"`
	LMax       int               `json:"lMax"`
	Threshold  float64           `json:"threshold"`
	Detections int               `json:"detections"`
	Messages   int               `json:"messages"`
	Cells      map[string]int    `json:"cells"`
	Clients    int               `json:"clients"`
}

// HandleStatus returns the configured grid and detection counters.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	resp := statusResponse{
		Status:     "ok",
		Grid:       h.cfg.Grid,
		LMax:       h.cfg.SSBGrid().LMax(),
		Threshold:  h.cfg.Detector.Threshold,
		Detections: len(h.detections),
		Messages:   len(h.messages),
		Cells:      make(map[string]int, len(h.cells)),
	}
	for id, n := range h.cells {
		resp.Cells[strconv.Itoa(id)] = n
	}
	h.mu.Unlock()
	resp.Clients = h.wsHub.Clients()

	writeJSON(w, resp)
}

// HandleDetections returns recent detections, newest last. The optional
// limit query parameter caps the count.
func (h *Handlers) HandleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := h.history
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	h.mu.Lock()
	events := h.detections[max(0, len(h.detections)-limit):]
	out := make([]DetectionEvent, len(events))
	copy(out, events)
	h.mu.Unlock()

	writeJSON(w, map[string]any{"detections": out})
}

// HandleMessages returns reassembled messages, newest last.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	out := make([]MessageEvent, len(h.messages))
	copy(out, h.messages)
	h.mu.Unlock()

	writeJSON(w, map[string]any{"messages": out})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
