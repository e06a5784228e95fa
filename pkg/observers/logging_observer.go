// Package observers provides fsm observers for logging and metrics.
package observers

import (
	"github.com/go-logr/logr"

	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/logging"
)

// LoggingObserver writes state machine activity to a logr.Logger. Transitions are logged at DEBUG verbosity, guard
// evaluations at TRACE, rejections at VERBOSE and errors at error level.
type LoggingObserver struct {
	fsm.BaseObserver
	logger logr.Logger
}

var _ fsm.ExtendedObserver = (*LoggingObserver)(nil)

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger logr.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnTransition(from string, to string, event fsm.Event, ctx fsm.Context) {
	o.logger.V(logging.DEBUG).Info("Transition", "machine", ctx.MachineName(), "from", from, "to", to, "event", eventName(event))
}

func (o *LoggingObserver) OnStateEnter(state string, ctx fsm.Context) {
	o.logger.V(logging.TRACE).Info("Entering state", "machine", ctx.MachineName(), "state", state)
}

func (o *LoggingObserver) OnStateExit(state string, ctx fsm.Context) {
	o.logger.V(logging.TRACE).Info("Exiting state", "machine", ctx.MachineName(), "state", state)
}

func (o *LoggingObserver) OnGuardEvaluation(from string, to string, event fsm.Event, result bool, ctx fsm.Context) {
	o.logger.V(logging.TRACE).Info("Guard evaluated", "machine", ctx.MachineName(), "from", from, "to", to,
		"event", eventName(event), "result", result)
}

func (o *LoggingObserver) OnEventRejected(event fsm.Event, reason string, ctx fsm.Context) {
	o.logger.V(logging.VERBOSE).Info("Event rejected", "machine", ctx.MachineName(), "state", ctx.CurrentState(),
		"event", eventName(event), "reason", reason)
}

func (o *LoggingObserver) OnError(err error, ctx fsm.Context) {
	o.logger.Error(err, "State machine error", "machine", ctx.MachineName(), "state", ctx.CurrentState())
}

func eventName(event fsm.Event) string {
	if event == nil {
		return ""
	}
	return event.Name()
}
