package server

import (
	"fileshare/protocol"
)

// HandleCommand routes one command line to its handler. It reports whether
// the session should end.
func (h *CommandHandler) HandleCommand(line string) bool {
	cmd := protocol.Parse(line)

	switch cmd.Kind {
	case protocol.List:
		h.HandleLIST()
	case protocol.Upload:
		h.HandleUPLOAD(cmd.Arg(0))
	case protocol.Download:
		h.HandleDOWNLOAD(cmd.Arg(0))
	case protocol.Delete:
		h.withAdmin(func() {
			h.HandleDELETE(cmd.Arg(0))
		})
	case protocol.Rename:
		h.withAdmin(func() {
			h.HandleRENAME(cmd.Args)
		})
	case protocol.Mode:
		h.HandleMODE(cmd.Arg(0))
	case protocol.Exit:
		h.session.LogPrintf("[INFO] Client requested exit")
		return true
	default:
		h.session.SendResponse(protocol.ErrInvalidCmd)
	}
	return false
}
