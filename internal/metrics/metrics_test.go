package metrics

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAcquire("main", time.Millisecond)
		m.PoolExhaustedInc("main")
		m.ObserveSearch("text", time.Millisecond, 3)
		m.Activity(ActivityWritten)
	})
	assert.NoError(t, m.RegisterDBStats("main", &sql.DB{}))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PoolExhaustedInc("main")
	m.PoolExhaustedInc("main")
	m.Activity(ActivityDropped)
	m.ObserveSearch("list", 20*time.Millisecond, 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PoolExhausted.WithLabelValues("main")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivityEvents.WithLabelValues(ActivityDropped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchResults))
}

func TestRegisterDBStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, m.RegisterDBStats("main", db))
	assert.Error(t, m.RegisterDBStats("main", db), "the same pool cannot be registered twice")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_sql_max_open_connections")
}
