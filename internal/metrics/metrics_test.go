package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	b, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(b)
}

func TestMetrics_Exposed(t *testing.T) {
	Init()
	Init()

	IncAppended(3)
	AddDropped(DropOverflow, 2)
	AddDropped("", 1)
	SetBufferLen(7)
	ObserveUpload("/gnssdata", ResultSuccess, 3, 1, 20*time.Millisecond)
	ObserveIngest("/gnssdata", http.StatusOK, 3, time.Millisecond)

	out := scrape(t)
	require.Contains(t, out, `gnss_agent_records_dropped_total{reason="overflow"} 2`)
	require.Contains(t, out, `gnss_agent_records_dropped_total{reason="unknown"} 1`)
	require.Contains(t, out, `gnss_agent_buffer_records 7`)
	require.Contains(t, out, `gnss_agent_upload_batches_total{path="/gnssdata",result="success"} 1`)
	require.Contains(t, out, `gnss_collector_ingest_requests_total{code="200",endpoint="/gnssdata"} 1`)
	require.Contains(t, out, `gnss_collector_ingest_records_total{endpoint="/gnssdata"} 3`)
}
