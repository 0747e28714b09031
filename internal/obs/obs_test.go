package obs

import (
	"bytes"
	"log"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdLoggerMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := StdLogger{L: log.New(&buf, "", 0), Min: Info}
	l.Logf(Debug, "hidden %d", 1)
	l.Logf(Warn, "shown %d", 2)
	assert.Equal(t, "[WARN] shown 2\n", buf.String())
}

func TestTaggedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Tagged(StdLogger{L: log.New(&buf, "", 0), Pref: "proxy "}, "task=ab12")
	l.Logf(Info, "relayed %d bytes", 7)
	assert.Equal(t, "proxy [INFO] task=ab12 relayed 7 bytes\n", buf.String())

	_, ok := Tagged(nil, "x").(NopLogger)
	assert.True(t, ok)
}

func TestParseLevel(t *testing.T) {
	lv, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, Debug, lv)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestPromMeter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPromMeter(reg)
	m.Counter("proxy_test_total", 1, Label{Key: "status", Value: "200"})
	m.Counter("proxy_test_total", 2, Label{Key: "status", Value: "200"})
	m.Counter("proxy_test_total", 1, Label{Key: "other", Value: "x"}) // wrong keys, dropped
	m.Gauge("proxy_test_depth", 3)
	m.Histogram("proxy_test_ms", 12)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.counters["proxy_test_total"].WithLabelValues("200")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.gauges["proxy_test_depth"]))

	// A second meter on the same registry shares the collectors.
	m2 := NewPromMeter(reg)
	m2.Counter("proxy_test_total", 1, Label{Key: "status", Value: "200"})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.counters["proxy_test_total"].WithLabelValues("200")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPromMeterLiteral(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &PromMeter{Reg: reg}
	m.Counter("proxy_literal_total", 2)
	m.Gauge("proxy_literal_depth", 1)
	m.Histogram("proxy_literal_ms", 5)

	vec := m.CounterVec("proxy_literal_total")
	require.NotNil(t, vec)
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues()))
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// No registerer: collectors still work, just unexported.
	var zero PromMeter
	zero.Counter("proxy_unregistered_total", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(zero.CounterVec("proxy_unregistered_total").WithLabelValues()))
}
