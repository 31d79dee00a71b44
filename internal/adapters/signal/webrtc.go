package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleRelay passes offers, answers and candidates through; the server holds no peer connection.
func (ctl *SignalWSController) handleRelay(sid core.SessionID, sig domain.Signal) {
	res, err := ctl.Orch.Forward(sid, sig)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).
			Str("type", string(sig.Type)).Str("room", sig.RoomID).Msg("signal dropped")
		return
	}
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("type", string(sig.Type)).
		Int("delivered", res.Delivered).Int("dropped", len(res.Dropped)).Msg("signal relayed")
}
