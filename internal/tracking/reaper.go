package tracking

import (
	"time"

	"github.com/botforgehq/botforge/internal/domain"
)

// runReaper periodically scans the registry for sessions past the idle
// timeout and feeds timeout end events back through the channel. It never
// writes to the sink or the registry itself; finalization stays with the
// single-writer event processor, which also resolves the race where an entry
// vanished between scan and emit.
func (t *Tracker) runReaper() {
	t.logger.Debug().Msg("timeout reaper started")
	defer close(t.reaperDone)

	ticker := time.NewTicker(t.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			t.logger.Debug().Msg("timeout reaper stopped")
			return
		case <-ticker.C:
			t.reapOnce()
		}
	}
}

func (t *Tracker) reapOnce() {
	for _, ev := range t.registry.expired() {
		ev.reason = domain.EndReasonTimeout
		t.logger.Debug().Str("session_id", ev.sessionID.String()).Msg("timing out idle session")
		t.send(ev)
	}
}
