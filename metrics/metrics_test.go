package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveLookup(t *testing.T) {
	before := testutil.ToFloat64(cacheLookups.WithLabelValues("budgets", LookupHit))
	ObserveLookup("budgets", LookupHit)
	ObserveLookup("budgets", LookupHit)
	after := testutil.ToFloat64(cacheLookups.WithLabelValues("budgets", LookupHit))
	assert.Equal(t, before+2, after)
}

func TestObserveFetch_Outcome(t *testing.T) {
	okBefore := testutil.ToFloat64(fetches.WithLabelValues("jobs", "success"))
	errBefore := testutil.ToFloat64(fetches.WithLabelValues("jobs", "error"))

	ObserveFetch("jobs", nil)
	ObserveFetch("jobs", errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(fetches.WithLabelValues("jobs", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(fetches.WithLabelValues("jobs", "error")))
}

func TestSetEntries(t *testing.T) {
	SetEntries(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(cacheEntries))
}

func TestHandler_Exposes(t *testing.T) {
	ObserveRequest("GET", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "studysync_http_requests_total"))
}

func TestObserveTaskAndBroadcast(t *testing.T) {
	before := testutil.ToFloat64(tasks.WithLabelValues("maintenance:gc", "error"))
	ObserveTask("maintenance:gc", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(tasks.WithLabelValues("maintenance:gc", "error")))

	sent := testutil.ToFloat64(broadcasts.WithLabelValues("redis", BroadcastSent))
	ObserveBroadcast("redis", BroadcastSent)
	assert.Equal(t, sent+1, testutil.ToFloat64(broadcasts.WithLabelValues("redis", BroadcastSent)))
}
