package server

import (
	"errors"
	"io/fs"
	"os"

	"fileshare/protocol"
	"fileshare/storage"
	"fileshare/transfer"
)

// withAdmin runs handler only for the current admin. Everyone else gets the
// same reply as for an unknown command.
func (h *CommandHandler) withAdmin(handler func()) {
	if !h.session.IsAdmin() {
		h.session.LogPrintf("[WARN] Privileged command refused for non-admin")
		h.session.SendResponse(protocol.ErrInvalidCmd)
		return
	}
	handler()
}

func (h *CommandHandler) withValidParam(param string, handler func()) {
	if param == "" {
		h.session.SendResponse(protocol.ErrMissingName)
		return
	}
	handler()
}

func (h *CommandHandler) withExistingFile(filename string, handler func(*os.File, fs.FileInfo)) {
	file, info, err := h.dir().Open(filename)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			h.session.SendResponse(protocol.ErrInvalidName)
		} else {
			h.session.SendResponse(protocol.ErrFileNotFound)
		}
		return
	}
	defer file.Close()

	handler(file, info)
}

func (h *CommandHandler) dir() *storage.Dir {
	return h.session.GetServer().dir
}

func (h *CommandHandler) chunkSize() int {
	return h.session.GetServer().config.ChunkSize
}

func (h *CommandHandler) receiver() transfer.Receiver {
	return transfer.Receiver{
		Framing:   h.session.GetFraming(),
		ChunkSize: h.chunkSize(),
		End:       protocol.EndOfUpload,
	}
}

func (h *CommandHandler) sender() transfer.Sender {
	return transfer.Sender{
		Framing:   h.session.GetFraming(),
		ChunkSize: h.chunkSize(),
		End:       protocol.EndOfFile + "\n",
		Marker:    protocol.EndOfFile,
	}
}
