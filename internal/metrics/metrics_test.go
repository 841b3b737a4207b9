package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordersAreIdempotentlyRegistered(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(closes.WithLabelValues("1001"))
	RecordClose(1001)
	require.Equal(t, before+1, testutil.ToFloat64(closes.WithLabelValues("1001")))

	RecordConnectAttempt("mount", "opening")
	RecordOpen()
	RecordFrame("invoked")
	RecordClosureActions(2)
	RecordForegroundResume("deferred")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "wslink_session_closes_total"))
	require.True(t, strings.Contains(body, "wslink_dispatch_frames_total"))
}
