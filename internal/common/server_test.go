package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"
)

func TestOpsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "devhub_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv := httptest.NewServer(NewOpsRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rec := httptest.NewRecorder()
	NewOpsRouter(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "devhub_test_total 1")

	rec = httptest.NewRecorder()
	NewOpsRouter(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")

	rec = httptest.NewRecorder()
	NewOpsRouter(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSetupServerRequiresProcessor(t *testing.T) {
	_, err := SetupServer(SetupServerOptions{AgentName: "devhub"})
	assert.Error(t, err)
}

func TestExtractDashboardRequest(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
		want string
		plug string
	}{
		{
			name: "data part",
			msg: protocol.Message{Parts: []protocol.Part{protocol.DataPart{
				Type: "data",
				Data: map[string]interface{}{"plugin": "pr-review", "url": " https://github.com/a/b/pull/1 "},
			}}},
			want: "https://github.com/a/b/pull/1",
			plug: "pr-review",
		},
		{
			name: "json text part",
			msg:  protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(`{"type":"error-log-search","errorLog":"panic: boom"}`)}},
			want: "panic: boom",
			plug: "error-log-search",
		},
		{
			name: "plain text part",
			msg:  protocol.Message{Parts: []protocol.Part{protocol.NewTextPart("  "), protocol.NewTextPart("how to deploy\n")}},
			want: "how to deploy",
		},
		{
			name: "json without query falls back to text",
			msg:  protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(`{"plugin":"pr-review"}`)}},
			want: `{"plugin":"pr-review"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ExtractDashboardRequest(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Query)
			assert.Equal(t, tt.plug, req.Plugin)
		})
	}

	_, err := ExtractDashboardRequest(protocol.Message{})
	assert.EqualError(t, err, "message has no parts")
	_, err = ExtractDashboardRequest(protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(" ")}})
	assert.Error(t, err)
}
