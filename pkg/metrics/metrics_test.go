package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	before := testutil.ToFloat64(PDFOperations.WithLabelValues("merge", Outcome(nil)))
	PDFOperations.WithLabelValues("merge", Outcome(nil)).Inc()
	require.Equal(t, before+1, testutil.ToFloat64(PDFOperations.WithLabelValues("merge", "ok")))

	require.Equal(t, "error", Outcome(errors.New("boom")))

	n, err := testutil.GatherAndCount(reg, "filconv_pdf_operations_total")
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
}
