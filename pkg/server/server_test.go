package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/brook-video/brook/pkg/room"
	"github.com/brook-video/brook/pkg/roomcode"
	"github.com/brook-video/brook/pkg/signaling"
	"github.com/brook-video/brook/pkg/webrtc_ext"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	factory, err := webrtc_ext.NewPeerConnectionFactory(webrtc_ext.Config{})
	if err != nil {
		t.Fatalf("failed to create factory: %v", err)
	}

	server := New(":0", room.NewRegistry(), factory)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return server, ts
}

func dial(t *testing.T, ts *httptest.Server, code string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/signal?code=" + code
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}

	return string(data)
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(string) bool) string {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if match(frame) {
			return frame
		}
	}

	t.Fatal("expected frame did not arrive")
	return ""
}

// Closes with a proper close handshake, so the server sees a clean leave
// rather than a transport error.
func closeConn(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, message); err != nil {
		t.Fatalf("failed to send close message: %v", err)
	}
	conn.Close()
}

func send(t *testing.T, conn *websocket.Conn, message signaling.PeerMessage) {
	t.Helper()

	data, err := json.Marshal(message)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestCodeHandler(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/code")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, expected 200", resp.StatusCode)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !roomcode.IsValid(body.Code) {
		t.Errorf("got %q, expected a valid room code", body.Code)
	}
}

func TestSignalRejectsMissingCode(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/signal")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, expected 400", resp.StatusCode)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "missing query parameter 'code'" {
		t.Errorf("got %q, expected the missing-parameter message", body.Error)
	}
}

func TestSignalRejectsInvalidCode(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/signal?code=banana")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, expected 400", resp.StatusCode)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "invalid query parameter 'code'" {
		t.Errorf("got %q, expected the invalid-parameter message", body.Error)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, expected 200", resp.StatusCode)
	}

	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !body.OK {
		t.Error("expected ok to be true")
	}
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	for _, metric := range []string{"sfu_rooms_active", "sfu_peers_active", "sfu_rooms_created_total"} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("metrics output is missing %s", metric)
		}
	}
}

func TestSignalSessionLifecycle(t *testing.T) {
	server, ts := newTestServer(t)

	conn := dial(t, ts, "abc-def-ghi")
	if got := readFrame(t, conn); got != `{"id":1}` {
		t.Fatalf("got %s, expected the ID message first", got)
	}
	if got := server.rooms.Rooms(); got != 1 {
		t.Fatalf("got %d rooms, expected the room to exist", got)
	}

	name := "alice"
	send(t, conn, signaling.PeerMessage{Name: &name})

	closeConn(t, conn)

	waitFor(t, func() bool { return server.rooms.Rooms() == 0 })
}

func TestCandidatesBeforeOfferAreAccepted(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dial(t, ts, "xyz-abc-def")
	readFrame(t, conn)

	sdpMid := "0"
	for _, candidate := range []string{
		"candidate:1 1 udp 2130706431 127.0.0.1 41001 typ host",
		"candidate:2 1 udp 2130706430 127.0.0.1 41002 typ host",
		"candidate:3 1 udp 2130706429 127.0.0.1 41003 typ host",
	} {
		send(t, conn, signaling.PeerMessage{
			Candidate: &webrtc.ICECandidateInit{Candidate: candidate, SDPMid: &sdpMid},
		})
	}

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("failed to create client connection: %v", err)
	}
	defer client.Close()
	if _, err := client.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		t.Fatalf("failed to add transceiver: %v", err)
	}
	offer, err := client.CreateOffer(nil)
	if err != nil {
		t.Fatalf("failed to create offer: %v", err)
	}
	send(t, conn, signaling.PeerMessage{Offer: &offer.SDP})

	readUntil(t, conn, func(frame string) bool {
		return strings.HasPrefix(frame, `{"answer":`)
	})

	closeConn(t, conn)
}

func TestLeaveBroadcast(t *testing.T) {
	_, ts := newTestServer(t)

	connA := dial(t, ts, "abc-def-ghi")
	if got := readFrame(t, connA); got != `{"id":1}` {
		t.Fatalf("got %s, expected peer 1", got)
	}

	connB := dial(t, ts, "abc-def-ghi")
	if got := readFrame(t, connB); got != `{"id":2}` {
		t.Fatalf("got %s, expected peer 2", got)
	}

	closeConn(t, connB)

	readUntil(t, connA, func(frame string) bool { return frame == `{"peerLeft":2}` })
	readUntil(t, connA, func(frame string) bool {
		return strings.HasPrefix(frame, `{"offer":`)
	})

	closeConn(t, connA)
}
