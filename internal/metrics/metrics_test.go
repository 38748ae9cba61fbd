package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBatchLifecycle(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	m := New(prometheus.NewRegistry())

	m.BatchStarted()
	m.BatchStarted()
	require.Equal(2.0, testutil.ToFloat64(m.ActiveBatches))

	m.BatchFinished("success", time.Second)
	m.BatchFinished("cancelled", time.Second)
	require.Equal(0.0, testutil.ToFloat64(m.ActiveBatches))
	require.Equal(1.0, testutil.ToFloat64(m.Batches.WithLabelValues("success")))
	require.Equal(1.0, testutil.ToFloat64(m.Batches.WithLabelValues("cancelled")))

	m.FileProcessed(1024)
	m.FileProcessed(1024)
	require.Equal(2.0, testutil.ToFloat64(m.FilesProcessed))
	require.Equal(2048.0, testutil.ToFloat64(m.BytesProcessed))

	m.RateLimited("upload")
	m.SessionsReaped(3)
	m.FileQueued()
	require.Equal(1.0, testutil.ToFloat64(m.RateLimits.WithLabelValues("upload")))
	require.Equal(3.0, testutil.ToFloat64(m.ReapedSessions))
	require.Equal(1.0, testutil.ToFloat64(m.FilesQueued))
}
