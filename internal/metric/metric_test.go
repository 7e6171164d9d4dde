package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveRequest("query", "ok", 10*time.Millisecond)
	ObserveRequest("count", "admission_denied", time.Millisecond)
	SetPoolInUse("sqlite", 2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `querygate_requests_total{kind="query",outcome="ok"}`)
	assert.Contains(t, body, `querygate_requests_total{kind="count",outcome="admission_denied"}`)
	assert.Contains(t, body, "querygate_request_duration_seconds")
	assert.Contains(t, body, `querygate_pool_connections_in_use{family="sqlite"} 2`)
}
