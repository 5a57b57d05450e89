package adminhttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/girish946/psubd/internal/audit"
	"github.com/girish946/psubd/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeHub answers every ingress Msg's Channel with a fixed QUERY_RESP
// body, standing in for a running hub.
func fakeHub(ingress <-chan *wire.Msg, body string) {
	go func() {
		for m := range ingress {
			if m.Channel == nil {
				continue
			}
			resp, err := wire.ResponseTo(m, []byte(body))
			if err != nil {
				continue
			}
			m.Channel <- resp
		}
	}()
}

func TestHandleTopicsParsesHubResponse(t *testing.T) {
	ingress := make(chan *wire.Msg, 4)
	fakeHub(ingress, `{"*":["abc: 2","xyz: 1"]}`)

	s := New(":0", ingress, nil, testLogger(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	rec := httptest.NewRecorder()
	s.handleTopics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"topics":[{"topic":"abc","subscribers":2},{"topic":"xyz","subscribers":1}]}`, rec.Body.String())
}

func TestHandleTopicsTimesOutWhenHubIsSilent(t *testing.T) {
	ingress := make(chan *wire.Msg, 4)
	// no fakeHub consumer: the request will time out waiting for a response.

	s := New(":0", ingress, nil, testLogger(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	s.handleTopics(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleStatsReturnsCounters(t *testing.T) {
	dir := t.TempDir()
	store, err := audit.Open(dir + "/audit.db")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.InitSchema(context.Background()))
	require.NoError(t, store.Incr(context.Background(), audit.EventPublish))

	s := New(":0", make(chan *wire.Msg, 1), store, testLogger(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.handleStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"publish":1}`, rec.Body.String())
}

func TestHandleReadyzReportsStarting(t *testing.T) {
	s := New(":0", make(chan *wire.Msg, 1), nil, testLogger(), func() bool { return false })
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.handleReadyz(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
