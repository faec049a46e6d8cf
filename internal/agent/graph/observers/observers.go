package observers

import (
	"time"

	"github.com/pocketwise/server/internal/agent/model"
	logx "github.com/pocketwise/server/pkg/logger"
)

// Observer receives node lifecycle events from the graph executor.
type Observer interface {
	NodeStart(threadID, node string)
	NodeEnd(threadID, node string, elapsed time.Duration, update model.StateUpdate)
	NodeError(threadID, node string, elapsed time.Duration, err error)
}

// LogObserver writes node transitions to the structured log.
type LogObserver struct{}

func NewLogObserver() *LogObserver {
	return &LogObserver{}
}

func (*LogObserver) NodeStart(threadID, node string) {
	logx.Debug().
		Str("thread_id", threadID).
		Str("node", node).
		Msg("Node start")
}

func (*LogObserver) NodeEnd(threadID, node string, elapsed time.Duration, update model.StateUpdate) {
	logx.Debug().
		Str("thread_id", threadID).
		Str("node", node).
		Dur("elapsed", elapsed).
		Int("updated_fields", len(update)).
		Msg("Node end")
}

func (*LogObserver) NodeError(threadID, node string, elapsed time.Duration, err error) {
	logx.Error().Err(err).
		Str("thread_id", threadID).
		Str("node", node).
		Dur("elapsed", elapsed).
		Msg("Node error")
}

// Noop discards all events.
type Noop struct{}

func (Noop) NodeStart(string, string)                                 {}
func (Noop) NodeEnd(string, string, time.Duration, model.StateUpdate) {}
func (Noop) NodeError(string, string, time.Duration, error)           {}

var _ Observer = (*LogObserver)(nil)
var _ Observer = Noop{}
