package metric

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(tasksFinalizedTotal.WithLabelValues("true"))
	RecordTaskFinalized(true, 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(tasksFinalizedTotal.WithLabelValues("true")))

	before = testutil.ToFloat64(tasksExpiredTotal)
	RecordTaskExpired()
	assert.Equal(t, before+1, testutil.ToFloat64(tasksExpiredTotal))

	before = testutil.ToFloat64(settlementsTotal.WithLabelValues("submitted"))
	RecordSettlement("submitted")
	assert.Equal(t, before+1, testutil.ToFloat64(settlementsTotal.WithLabelValues("submitted")))

	before = testutil.ToFloat64(deliveryAttemptsTotal.WithLabelValues("retry"))
	RecordDeliveryAttempt("retry")
	assert.Equal(t, before+1, testutil.ToFloat64(deliveryAttemptsTotal.WithLabelValues("retry")))
}

func TestServerServesMetrics(t *testing.T) {
	srv := New(&Config{Port: 0})
	srv.srv.Addr = "127.0.0.1:18414"

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	RecordAttestation("accepted")

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18414/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)
	assert.Contains(t, string(body), "weai_attestations_total")

	require.NoError(t, srv.Stop(context.Background()))
	require.NoError(t, <-errCh)
}
