package observers

import (
	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/metrics"
)

// MetricsObserver counts transitions, rejections and errors per machine
type MetricsObserver struct {
	fsm.BaseObserver
	metrics *metrics.Metrics
}

var _ fsm.ExtendedObserver = (*MetricsObserver)(nil)

// NewMetricsObserver creates a new metrics observer. A nil m yields an observer that records nothing.
func NewMetricsObserver(m *metrics.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) OnTransition(from string, to string, event fsm.Event, ctx fsm.Context) {
	o.metrics.RecordTransition(ctx.MachineName(), from, to)
}

func (o *MetricsObserver) OnEventRejected(event fsm.Event, reason string, ctx fsm.Context) {
	o.metrics.RecordRejection(ctx.MachineName(), eventName(event))
}

func (o *MetricsObserver) OnError(err error, ctx fsm.Context) {
	o.metrics.RecordError(ctx.MachineName())
}
