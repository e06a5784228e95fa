package observers

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/logging"
	"github.com/anggasct/crossing/pkg/metrics"
)

func toggleDefinition(t *testing.T) *fsm.Definition {
	t.Helper()
	def, err := fsm.NewMachine("toggle").
		State("off").Initial().
		To("on").On("flip").
		State("on").
		To("off").On("flip").When(func(ctx fsm.Context) bool { return false }).Describe("never").
		Build()
	require.NoError(t, err)
	return def
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) write(prefix, args string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, args)
}

func (c *lineCollector) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}

func TestLoggingObserver(t *testing.T) {
	collector := &lineCollector{}
	logger := funcr.New(collector.write, funcr.Options{Verbosity: logging.TRACE})

	machine := toggleDefinition(t).CreateInstance()
	machine.AddObserver(NewLoggingObserver(logger))
	require.NoError(t, machine.Start())

	require.True(t, machine.HandleEvent("flip", nil).Success())
	require.False(t, machine.HandleEvent("flip", nil).Success())

	out := collector.joined()
	assert.Contains(t, out, `"msg"="Transition" "machine"="toggle" "from"="off" "to"="on" "event"="flip"`)
	assert.Contains(t, out, `"msg"="Guard evaluated"`)
	assert.Contains(t, out, `"msg"="Event rejected"`)
	assert.Contains(t, out, `"reason"="on -> off on \"flip\" refused by guard never"`)
}

func TestLoggingObserver_RespectsVerbosity(t *testing.T) {
	collector := &lineCollector{}
	logger := funcr.New(collector.write, funcr.Options{Verbosity: logging.DEFAULT})

	machine := toggleDefinition(t).CreateInstance()
	machine.AddObserver(NewLoggingObserver(logger))
	require.NoError(t, machine.Start())
	machine.HandleEvent("flip", nil)

	assert.Empty(t, collector.joined())
}

func TestLoggingObserver_Errors(t *testing.T) {
	collector := &lineCollector{}
	logger := funcr.New(collector.write, funcr.Options{})

	obs := NewLoggingObserver(logger)
	obs.OnError(errors.New("boom"), fsm.NewSimpleContext())

	assert.Contains(t, collector.joined(), `"error"="boom"`)
}

func TestMetricsObserver(t *testing.T) {
	m := metrics.New(false)
	machine := toggleDefinition(t).CreateInstance()
	machine.AddObserver(NewMetricsObserver(m))
	require.NoError(t, machine.Start())

	machine.HandleEvent("flip", nil)
	machine.HandleEvent("flip", nil)
	machine.HandleEvent("unknown", nil)

	want := `
# HELP crossing_fsm_event_rejections_total Events a state machine could not handle.
# TYPE crossing_fsm_event_rejections_total counter
crossing_fsm_event_rejections_total{event="flip",machine="toggle"} 1
crossing_fsm_event_rejections_total{event="unknown",machine="toggle"} 1
# HELP crossing_fsm_transitions_total State machine transitions, by machine, source and target state.
# TYPE crossing_fsm_transitions_total counter
crossing_fsm_transitions_total{from="off",machine="toggle",to="on"} 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(want),
		"crossing_fsm_event_rejections_total", "crossing_fsm_transitions_total")
	require.NoError(t, err)
}

func TestMetricsObserver_NilMetrics(t *testing.T) {
	machine := toggleDefinition(t).CreateInstance()
	machine.AddObserver(NewMetricsObserver(nil))
	require.NoError(t, machine.Start())
	assert.True(t, machine.HandleEvent("flip", nil).Success())
}
