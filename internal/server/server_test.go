package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeongseonghan/nr-sync/internal/acquisition"
	"github.com/jeongseonghan/nr-sync/internal/config"
	"github.com/jeongseonghan/nr-sync/internal/nr"
)

func testResult(nid1, nid2 int) acquisition.CellSearchResult {
	return acquisition.CellSearchResult{
		Cell:           nr.CellIdentity{NID1: nid1, NID2: nid2},
		ISSB:           2,
		KSSB:           30,
		PSSCorrelation: 127,
		SSSCorrelation: 127,
		Payload:        []byte{1, 0, 1, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1},
	}
}

func newTestServer(t *testing.T) (*Handlers, *httptest.Server) {
	t.Helper()
	metrics, err := acquisition.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	h := NewHandlers(config.Default(), nil)
	srv := NewServer(":0", h, metrics.Handler(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return h, ts
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestRecordDetection(t *testing.T) {
	h := NewHandlers(config.Default(), nil)
	ev := h.RecordDetection(testResult(3, 1))

	if ev.CellID != 10 {
		t.Errorf("expected cell ID 10, got %d", ev.CellID)
	}
	if ev.Payload != "a0ff" {
		t.Errorf("expected payload a0ff, got %s", ev.Payload)
	}
	if len(ev.ID) != 36 {
		t.Errorf("expected uuid, got %q", ev.ID)
	}
	if other := h.RecordDetection(testResult(3, 1)); other.ID == ev.ID {
		t.Error("event IDs should be unique")
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHandlers(config.Default(), nil)
	h.history = 4
	for i := range 10 {
		h.RecordDetection(testResult(i, 0))
	}
	if len(h.detections) != 4 {
		t.Fatalf("expected 4 detections, got %d", len(h.detections))
	}
	if h.detections[0].NID1 != 6 || h.detections[3].NID1 != 9 {
		t.Errorf("expected the newest detections, got NID1 %d..%d", h.detections[0].NID1, h.detections[3].NID1)
	}
	if len(h.cells) != 10 {
		t.Errorf("cell counters should cover every cell seen, got %d", len(h.cells))
	}
}

func TestHandleStatus(t *testing.T) {
	h, ts := newTestServer(t)
	h.RecordDetection(testResult(3, 1))
	h.RecordDetection(testResult(3, 1))
	h.RecordMessage([]byte("hello"))

	var status statusResponse
	getJSON(t, ts.URL+"/api/status", &status)

	if status.Status != "ok" {
		t.Errorf("expected ok, got %s", status.Status)
	}
	if status.Detections != 2 || status.Messages != 1 {
		t.Errorf("expected 2 detections and 1 message, got %d/%d", status.Detections, status.Messages)
	}
	if status.Cells["10"] != 2 {
		t.Errorf("expected 2 detections of cell 10, got %v", status.Cells)
	}
	if status.Grid.NRB != 20 || status.LMax != 8 {
		t.Errorf("unexpected grid in status: %+v lMax=%d", status.Grid, status.LMax)
	}
}

func TestHandleDetections(t *testing.T) {
	h, ts := newTestServer(t)
	for i := range 5 {
		h.RecordDetection(testResult(i, 2))
	}

	var all struct{ Detections []DetectionEvent }
	getJSON(t, ts.URL+"/api/detections", &all)
	if len(all.Detections) != 5 {
		t.Fatalf("expected 5 detections, got %d", len(all.Detections))
	}

	var some struct{ Detections []DetectionEvent }
	getJSON(t, ts.URL+"/api/detections?limit=2", &some)
	if len(some.Detections) != 2 || some.Detections[1].NID1 != 4 {
		t.Errorf("expected the 2 newest detections, got %+v", some.Detections)
	}

	resp, err := http.Get(ts.URL + "/api/detections?limit=x")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)
	for _, path := range []string{"/api/status", "/api/detections", "/api/messages"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: expected 405, got %d", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebSocketFeed(t *testing.T) {
	h, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Hub().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sent := h.RecordDetection(testResult(7, 2))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string
		Payload DetectionEvent
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Type != "detection" {
		t.Errorf("expected detection message, got %s", msg.Type)
	}
	if msg.Payload.ID != sent.ID || msg.Payload.CellID != 23 {
		t.Errorf("unexpected payload %+v", msg.Payload)
	}
}

func TestServeShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewHandlers(config.Default(), nil), nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestHubClose(t *testing.T) {
	h, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Hub().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Hub().Close()
	if n := h.Hub().Clients(); n != 0 {
		t.Errorf("expected no clients after Close, got %d", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected a normal close, got %v", err)
	}
}
