package server

import (
	"errors"
	"io/fs"
	"os"

	"fileshare/protocol"
	"fileshare/storage"
	"fileshare/transfer"
)

// HandleUPLOAD receives a file into the shared directory.
func (h *CommandHandler) HandleUPLOAD(filename string) {
	h.withValidParam(filename, func() {
		file, lock, reason := h.openUploadTarget(filename)
		if file == nil {
			h.rejectUpload(filename, reason)
			return
		}
		defer file.Close()
		defer lock.Release()

		if err := file.Truncate(0); err != nil {
			h.session.LogPrintf("❌ [ERROR] Truncate %q failed: %v", filename, err)
			h.rejectUpload(filename, protocol.ErrCannotCreate)
			return
		}

		h.session.SendResponse(protocol.ReadyForUpload)
		h.session.LogPrintf("⬆️  [UPLOAD] Receiving %s (%s framing)", filename, h.session.GetFraming())

		conn := h.session.GetConn()
		timer := transfer.NewTimer(lock.WaitTime)
		n, err := h.receiver().Receive(file, conn)
		if h.session.GetFraming() == transfer.Legacy {
			// Bytes after a sentinel inside the payload belong to no command.
			if dropped := conn.DiscardBuffered(); dropped > 0 {
				h.session.LogPrintf("[WARN] Discarded %d bytes after end marker", dropped)
			}
		}
		report := timer.Report(n)

		switch {
		case err == nil:
			h.session.LogPrintf("✅ [UPLOAD] %s: %s", filename, report)
			h.session.SendResponse(protocol.UploadOK)
		case errors.Is(err, transfer.ErrIncomplete):
			h.session.LogPrintf("[WARN] Upload %s ended early, kept %d bytes", filename, n)
		case errors.Is(err, transfer.ErrFrameTooLarge):
			h.session.LogPrintf("❌ [ERROR] Upload %s: %v", filename, err)
			h.session.SendResponse(protocol.ErrInvalidFrame)
		case errors.Is(err, transfer.ErrWrite):
			// The stream was read through its end marker, so the session is
			// still in step with the client.
			h.session.LogPrintf("❌ [ERROR] Upload %s failed after %d bytes: %v", filename, n, err)
			h.session.SendResponse(protocol.ErrCannotWrite)
		default:
			h.session.LogPrintf("❌ [ERROR] Upload %s: receive failed: %v", filename, err)
		}
	})
}

// openUploadTarget opens and locks the target. On failure it returns a nil
// file and the error reply to send.
func (h *CommandHandler) openUploadTarget(filename string) (*os.File, *transfer.LockResult, string) {
	file, err := h.dir().Create(filename)
	if err != nil {
		h.session.LogPrintf("❌ [ERROR] Cannot create %q: %v", filename, err)
		if errors.Is(err, storage.ErrInvalidName) {
			return nil, nil, protocol.ErrInvalidName
		}
		return nil, nil, protocol.ErrCannotCreate
	}

	lock, err := transfer.LockExclusive(file)
	if err != nil {
		h.session.LogPrintf("🔒 [LOCK] %s: %v", filename, err)
		file.Close()
		return nil, nil, protocol.ErrCannotCreate
	}
	return file, lock, ""
}

// rejectUpload refuses an upload. The sender may already be streaming, so
// the stream is consumed up to its end marker before the final reply.
func (h *CommandHandler) rejectUpload(filename, reason string) {
	h.session.SendResponse(reason)

	n, err := h.receiver().Drain(h.session.GetConn())
	if err != nil {
		h.session.LogPrintf("❌ [ERROR] Draining refused upload %q: %v", filename, err)
		return
	}
	h.session.LogPrintf("[UPLOAD] Discarded %d bytes for %q", n, filename)
	h.session.SendResponse(protocol.ErrDiscarded)
}

// HandleDOWNLOAD streams a file from the shared directory.
func (h *CommandHandler) HandleDOWNLOAD(filename string) {
	h.withValidParam(filename, func() {
		h.withExistingFile(filename, func(file *os.File, info fs.FileInfo) {
			framing := h.session.GetFraming()
			if framing == transfer.Sized {
				h.session.SendResponse(protocol.ReadyForDownload)
			}
			h.session.LogPrintf("⬇️  [DOWNLOAD] Sending %s (%d bytes, %s framing)", filename, info.Size(), framing)

			conn := h.session.GetConn()
			sender := h.sender()
			timer := transfer.NewTimer(0)
			n, err := sender.Send(h.session.GetServer().ctx, conn, file)
			if err != nil {
				h.session.LogPrintf("❌ [ERROR] Download %s failed after %d bytes: %v", filename, n, err)
				// Terminate the stream so the peer is not left waiting.
				sender.Finish(conn)
				return
			}
			h.session.LogPrintf("✅ [DOWNLOAD] %s: %s", filename, timer.Report(n))
		})
	})
}
