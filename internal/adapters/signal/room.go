package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleJoin drops a bad join like any other malformed frame; the sender gets no reply.
func (ctl *SignalWSController) handleJoin(sid core.SessionID, sig domain.Signal) {
	if err := ctl.Orch.Join(sid, sig.RoomID); err != nil {
		ctl.Orch.Metrics.Dropped("malformed")
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", sig.RoomID).Msg("join rejected")
	}
}
