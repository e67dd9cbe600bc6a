package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

func testCache() *telemetry.Cache {
	cache := new(telemetry.Cache)
	cache.SetInstant(telemetry.Instant{Voltage: 2376, Current: 123, Power: 456})
	cache.SetTariffs(telemetry.Tariffs{Day: 1000, Night: 2000})
	cache.SetLinkStatus(telemetry.LinkCRCError, time.Date(2024, 3, 21, 13, 4, 5, 0, time.UTC))
	return cache
}

func TestTelemetry(t *testing.T) {
	s := New(testCache(), func() float64 { return 0.75 })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/telemetry")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "CRC error", got["link"])
	assert.Equal(t, float64(2), got["linkCode"])
	assert.Equal(t, 0.75, got["linkQuality"])
	assert.Equal(t, map[string]any{"voltage": 2376.0, "current": 123.0, "power": 456.0}, got["instant"])
	assert.Equal(t, map[string]any{"tariffDay": 1000.0, "tariffNight": 2000.0}, got["tariffs"])
	assert.Equal(t, "2024-03-21T13:04:05Z", got["updatedAt"])

	resp2, err := http.Post(srv.URL+"/api/telemetry", "text/plain", strings.NewReader(""))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestTelemetry_NoQualityYet(t *testing.T) {
	s := New(testCache(), func() float64 { return math.NaN() })
	st := s.status(testCache().Snapshot())
	assert.Nil(t, st.LinkQuality)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"linkQuality":null`)
}

func TestMetrics(t *testing.T) {
	s := New(testCache(), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocket(t *testing.T) {
	cache := testCache()
	s := New(cache, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var st Status
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, uint32(2376), st.Instant.Voltage)
	assert.Equal(t, "CRC error", st.Link)

	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	cache.SetInstant(telemetry.Instant{Voltage: 2400})
	cache.SetLinkStatus(telemetry.LinkOK, time.Now())
	s.Broadcast(cache.Snapshot())

	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, uint32(2400), st.Instant.Voltage)
	assert.Equal(t, "Link OK", st.Link)

	conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 0 }, time.Second, time.Millisecond)
}
