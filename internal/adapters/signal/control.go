package signal

import "github.com/dkeye/Huddle/internal/domain"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, domain.Signal{Type: domain.KindPong})
}
