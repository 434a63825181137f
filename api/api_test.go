package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tummler-rov/autopilot-manager/board"
	"github.com/tummler-rov/autopilot-manager/bus"
	"github.com/tummler-rov/autopilot-manager/detector"
	"github.com/tummler-rov/autopilot-manager/hostinfo"
	"github.com/tummler-rov/autopilot-manager/metrics"
)

func newTestServer(t *testing.T, present bool) (*Server, *detector.Service) {
	t.Helper()
	p := &bus.MockProber{}
	if present {
		p.SetPresent(1, 0x66, true)
	}
	svc := detector.New(detector.Options{
		Prober:           p,
		USBTargets:       []board.USBTarget{},
		ValidateEndpoint: func(string) error { return nil },
	})
	host := &hostinfo.Info{OS: "linux", Arch: "arm64", Model: "Raspberry Pi 4 Model B"}
	return NewServer("127.0.0.1:0", svc, host, metrics.New()), svc
}

func getJSON(t *testing.T, ts *httptest.Server, path string, status int, out interface{}) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestBoardEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var errBody struct {
		Error string `json:"error"`
	}
	getJSON(t, ts, "/v1/board", http.StatusNotFound, &errBody)
	assert.Contains(t, errBody.Error, "no detection pass")

	_, err := svc.DetectOnce(context.Background())
	require.NoError(t, err)

	var res detector.Result
	getJSON(t, ts, "/v1/board", http.StatusOK, &res)
	assert.Equal(t, detector.OutcomeDetected, res.Outcome)
	assert.Equal(t, board.PlatformTummler, res.Platform)
	require.Len(t, res.Serials, 2)
	assert.Equal(t, "/dev/ttyAMA0", res.Serials[0].Endpoint)
}

func TestBoardEndpointNamesTheOutcome(t *testing.T) {
	srv, svc := newTestServer(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, err := svc.DetectOnce(context.Background())
	require.NoError(t, err)

	var errBody struct {
		Error   string `json:"error"`
		Outcome string `json:"outcome"`
	}
	getJSON(t, ts, "/v1/board", http.StatusNotFound, &errBody)
	assert.Equal(t, "not_found", errBody.Outcome)
}

func TestBoardsCatalogue(t *testing.T) {
	srv, _ := newTestServer(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var cats []struct {
		Platform string `json:"platform"`
		Kind     string `json:"kind"`
	}
	getJSON(t, ts, "/v1/boards", http.StatusOK, &cats)

	platforms := map[string]string{}
	for _, c := range cats {
		platforms[c.Platform] = c.Kind
	}
	assert.Equal(t, "i2c", platforms["Tummler"])
	assert.Equal(t, "i2c", platforms["TummlerH7"])
}

func TestDetectEndpointSynchronous(t *testing.T) {
	srv, _ := newTestServer(t, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/detect?wait=true", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res detector.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, detector.OutcomeDetected, res.Outcome)
}

func TestDetectEndpointAsynchronous(t *testing.T) {
	srv, _ := newTestServer(t, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/detect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDetectEndpointRejectsGet(t *testing.T) {
	srv, _ := newTestServer(t, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/detect")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHostEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var host hostinfo.Info
	getJSON(t, ts, "/v1/host", http.StatusOK, &host)
	assert.Equal(t, "Raspberry Pi 4 Model B", host.Model)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, err := svc.DetectOnce(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "autopilot_manager_detection_passes_total")
	assert.Contains(t, string(body), `autopilot_manager_board_info{manufacturer="Tummler ROV",platform="Tummler"} 1`)
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebsocketSnapshotAndCommands(t *testing.T) {
	srv, _ := newTestServer(t, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, "status", ev.Type)

	require.NoError(t, conn.WriteJSON(Command{Command: "detect"}))
	ev = readEvent(t, conn)
	assert.Equal(t, "ack", ev.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	ev = readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
}

func TestWebsocketBroadcast(t *testing.T) {
	srv, svc := newTestServer(t, true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	svc.SetCallback(srv.Hub().Broadcast)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn) // snapshot

	require.Eventually(t, func() bool {
		return srv.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	_, err = svc.DetectOnce(context.Background())
	require.NoError(t, err)

	sawDetected := false
	for i := 0; i < 8 && !sawDetected; i++ {
		ev := readEvent(t, conn)
		require.Equal(t, "status", ev.Type)
		data, merr := json.Marshal(ev.Data)
		require.NoError(t, merr)
		var info detector.StatusInfo
		require.NoError(t, json.Unmarshal(data, &info))
		if info.State == "DETECTED" {
			sawDetected = true
			assert.Equal(t, "Tummler", info.Platform)
		}
	}
	assert.True(t, sawDetected, "broadcast must deliver the DETECTED transition")
}

func TestHubClose(t *testing.T) {
	srv, _ := newTestServer(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	require.Eventually(t, func() bool {
		return srv.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	srv.Hub().Close()
	assert.Zero(t, srv.Hub().ClientCount())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, rerr := conn.ReadMessage()
	assert.Error(t, rerr, "closed hub must drop the connection")
}
