package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	Polls.WithLabelValues("changed").Inc()
	Mutations.WithLabelValues("upsert", "applied").Inc()

	n, err := testutil.GatherAndCount(reg, "todomini_polls_total", "todomini_mutations_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Panics(t, func() { RegisterCollectors(reg) }, "double registration must panic")
}
