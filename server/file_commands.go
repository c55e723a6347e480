package server

import (
	"errors"
	"strings"

	"fileshare/protocol"
	"fileshare/storage"
	"fileshare/transfer"
)

// HandleLIST sends the listing of the shared directory as one reply.
func (h *CommandHandler) HandleLIST() {
	entries, err := h.dir().List()
	if err != nil {
		h.session.LogPrintf("❌ [ERROR] List failed: %v", err)
		h.session.SendResponse(protocol.ErrCannotList)
		return
	}

	var reply strings.Builder
	reply.WriteString("\n" + protocol.ListTitle + "\n\n")
	reply.WriteString(protocol.ListSeparator + "\n")
	for _, entry := range entries {
		reply.WriteString(protocol.FormatListLine(protocol.FileEntry{Name: entry.Name, Size: entry.Size}))
		reply.WriteString("\n")
	}
	if len(entries) == 0 {
		reply.WriteString(protocol.NoFilesFound + "\n")
	}
	reply.WriteString(protocol.ListSeparator + "\n")
	reply.WriteString(protocol.EndOfList + "\n")

	if _, err := h.session.GetConn().Write([]byte(reply.String())); err != nil {
		h.session.LogPrintf("❌ [ERROR] Failed to send listing: %v", err)
		return
	}
	h.session.LogPrintf("[LIST] %d files", len(entries))
}

// HandleDELETE removes a file. Admin only.
func (h *CommandHandler) HandleDELETE(filename string) {
	h.withValidParam(filename, func() {
		if err := h.dir().Remove(filename); err != nil {
			h.session.LogPrintf("❌ [ERROR] Delete %q failed: %v", filename, err)
			if errors.Is(err, storage.ErrInvalidName) {
				h.session.SendResponse(protocol.ErrInvalidName)
				return
			}
			h.session.SendResponse(protocol.ErrCannotDelete)
			return
		}
		h.session.LogPrintf("🗑️  [DELETE] %s", filename)
		h.session.SendResponse(protocol.DeleteOK)
	})
}

// HandleRENAME renames a file. Admin only.
func (h *CommandHandler) HandleRENAME(args []string) {
	if len(args) < 2 {
		h.session.SendResponse(protocol.ErrRenameFormat)
		return
	}
	oldName, newName := args[0], args[1]

	if err := h.dir().Rename(oldName, newName); err != nil {
		h.session.LogPrintf("❌ [ERROR] Rename %q -> %q failed: %v", oldName, newName, err)
		if errors.Is(err, storage.ErrInvalidName) {
			h.session.SendResponse(protocol.ErrInvalidName)
			return
		}
		h.session.SendResponse(protocol.ErrCannotRename)
		return
	}
	h.session.LogPrintf("✏️  [RENAME] %s -> %s", oldName, newName)
	h.session.SendResponse(protocol.RenameOK)
}

// HandleMODE switches the framing used by later transfers of this session.
func (h *CommandHandler) HandleMODE(mode string) {
	framing, err := transfer.ParseFraming(mode)
	if err != nil {
		h.session.SendResponse(protocol.ErrInvalidMode)
		return
	}
	h.session.SetFraming(framing)
	h.session.LogPrintf("[MODE] Framing set to %s", framing)
	h.session.SendResponse(protocol.ModeOK(framing.String()))
}
