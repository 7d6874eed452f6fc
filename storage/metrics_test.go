package storage

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	store := newTestStore(t, WithMetrics(metrics))
	mustSave(t, store, "A", "B", "ok", "")
	mustSave(t, store, "A", "B", "to corrupt", "")
	require.False(t, store.Save(t.Context(), "", "B", "bad", ""))

	_, err = store.db.Exec(`UPDATE messages SET message_received = 'AQ' WHERE id = 2`)
	require.NoError(t, err)
	_, err = store.db.Exec(`INSERT INTO messages (vessel_sender, vessel_recipient, timestamp) VALUES ('A', 'B', 'garbage')`)
	require.NoError(t, err)

	_ = mustQuery(t, store, QueryOptions{})

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.saves.WithLabelValues(saveResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.saves.WithLabelValues(saveResultInvalid)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.decryptFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.rowsSkipped))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.queryDuration))
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.observeSave(saveResultOK)
	m.observeDecryptFailure()
	m.observeSkippedRow()
	m.observeQuery(0)
}
