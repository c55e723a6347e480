package server

import (
	"fileshare/protocol"
	"fileshare/transfer"
)

// SessionInterface is what command handlers need from a session.
type SessionInterface interface {
	SendResponse(message string)
	LogPrintf(format string, args ...interface{})

	GetID() uint64
	GetName() string
	IsAdmin() bool

	GetConn() *protocol.Conn
	GetFraming() transfer.Framing
	SetFraming(framing transfer.Framing)

	GetServer() *Server
}

// CommandHandler executes the commands of one session.
type CommandHandler struct {
	session SessionInterface
}

func NewCommandHandler(session SessionInterface) *CommandHandler {
	return &CommandHandler{session: session}
}
