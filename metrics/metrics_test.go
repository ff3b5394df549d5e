package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	r.RecordsUpserted(3, 2, 1)
	r.RecordsUpserted(1, 0, 0)
	r.Alert("missing_columns")
	r.Archived(4, 1)
	r.ReviewTransition("cancel_resolution", 3)
	r.Findings(7)

	assert.Equal(t, 4.0, testutil.ToFloat64(r.recordsUpserted.WithLabelValues("inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.recordsUpserted.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alerts.WithLabelValues("missing_columns")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.archiveEntries.WithLabelValues("duplicate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.reviewTransitions.WithLabelValues("cancel_resolution")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.findings))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordsUpserted(1, 1, 1)
	r.Alert("read_error")
	r.Findings(1)
	assert.Nil(t, r.Registry())
}

func TestNewRecorder_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	require.Error(t, err)
}
