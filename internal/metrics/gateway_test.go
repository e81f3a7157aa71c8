package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestUpstreamRequestsCounter(t *testing.T) {
	UpstreamRequests.Reset()
	UpstreamRequests.WithLabelValues("tenant.get", "404").Inc()
	UpstreamRequests.WithLabelValues("tenant.get", "404").Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(UpstreamRequests.WithLabelValues("tenant.get", "404")))
}
