package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopWhenDisabled(t *testing.T) {
	m := New(false)
	_, ok := m.(noopMetrics)
	assert.True(t, ok)
	assert.Nil(t, Handler(m))

	m.SetBotUp("Forwarder", true)
	m.IncBotStart("Forwarder", "ok")
	m.IncForward("@news")
	m.IncForwardFailure("flood_wait")
	m.SetMonitoredChannels(3)
	m.IncRequestsTotal("/api/bots", 200)
	m.ObserveRequestDuration("/api/bots", time.Millisecond)
}

func TestPrometheusProvider(t *testing.T) {
	m := NewPrometheus(prometheus.NewRegistry())

	m.SetBotUp("Forwarder", true)
	m.SetBotUp("Records", true)
	m.SetBotUp("Records", false)
	m.IncBotStart("Forwarder", "ok")
	m.IncBotStart("Forwarder", "ok")
	m.IncForward("@news")
	m.SetMonitoredChannels(4)
	m.IncRequestsTotal("/api/bots", 404)

	w := httptest.NewRecorder()
	Handler(m).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `groupbot_bot_up{bot="Forwarder"} 1`)
	assert.Contains(t, body, `groupbot_bot_up{bot="Records"} 0`)
	assert.Contains(t, body, `groupbot_bot_starts_total{bot="Forwarder",result="ok"} 2`)
	assert.Contains(t, body, `groupbot_forwards_total{channel="@news"} 1`)
	assert.Contains(t, body, `groupbot_monitored_channels 4`)
	assert.Contains(t, body, `groupbot_http_requests_total{endpoint="/api/bots",status="4xx"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestHTTPStatusBucket(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1xx", httpStatusBucket(101))
	assert.Equal(t, "2xx", httpStatusBucket(204))
	assert.Equal(t, "3xx", httpStatusBucket(302))
	assert.Equal(t, "4xx", httpStatusBucket(400))
	assert.Equal(t, "5xx", httpStatusBucket(503))
}
