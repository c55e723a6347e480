package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire limits.
const (
	ChunkSize     = 1024
	MaxCommandLen = 100
	MaxNameLen    = 49
)

// Sentinels and fixed protocol lines.
const (
	HandshakePrefix  = "USERNAME "
	ReadyForUpload   = "READY_FOR_UPLOAD"
	ReadyForDownload = "READY_FOR_DOWNLOAD"
	EndOfUpload      = "END_OF_UPLOAD"
	EndOfFile        = "END_OF_FILE"
	EndOfList        = "END_OF_LIST"
	ErrorPrefix      = "ERROR:"
	AdminNotice      = "You are now the admin"
	ServerFull       = "Server is full"
	OKPrefix         = "OK:"
)

// Replies.
const (
	UploadOK         = "File uploaded successfully"
	DeleteOK         = "File deleted successfully"
	RenameOK         = "File renamed successfully"
	NoFilesFound     = "No files found"
	ListTitle        = "File Listing:"
	ErrInvalidCmd    = "ERROR: Invalid command"
	ErrRenameFormat  = "ERROR: Invalid rename format"
	ErrFileNotFound  = "ERROR: File not found"
	ErrCannotCreate  = "ERROR: Cannot create file"
	ErrCannotWrite   = "ERROR: Cannot write file"
	ErrDiscarded     = "ERROR: Upload discarded"
	ErrCannotDelete  = "ERROR: Cannot delete file"
	ErrCannotRename  = "ERROR: Cannot rename file"
	ErrCannotList    = "ERROR: Cannot list files"
	ErrInvalidName   = "ERROR: Invalid file name"
	ErrMissingName   = "ERROR: Missing file name"
	ErrInvalidMode   = "ERROR: Invalid mode"
	ErrInvalidFrame  = "ERROR: Invalid frame"
	listNameWidth    = 30
	listSizeSuffix   = " bytes"
	welcomeAdmin     = "You are the admin."
	welcomeRegular   = "You are a regular user."
	welcomePrefix    = "Welcome "
)

// ListSeparator frames the body of a LIST reply.
var ListSeparator = strings.Repeat("-", 40)

// FileEntry is one line of a LIST reply.
type FileEntry struct {
	Name string
	Size int64
}

// IsError reports whether a reply line is an error reply.
func IsError(line string) bool {
	return strings.HasPrefix(line, ErrorPrefix)
}

// Welcome renders the reply to the name announcement.
func Welcome(name string, admin bool) string {
	role := welcomeRegular
	if admin {
		role = welcomeAdmin
	}
	return fmt.Sprintf("%s%s! %s", welcomePrefix, name, role)
}

// ParseWelcome reports whether line is a welcome reply and which role it names.
func ParseWelcome(line string) (admin bool, ok bool) {
	if !strings.HasPrefix(line, welcomePrefix) {
		return false, false
	}
	switch {
	case strings.HasSuffix(line, welcomeAdmin):
		return true, true
	case strings.HasSuffix(line, welcomeRegular):
		return false, true
	}
	return false, false
}

// FormatListLine renders a LIST body line with the padded name field.
func FormatListLine(entry FileEntry) string {
	return fmt.Sprintf("%-*s %d%s", listNameWidth, entry.Name, entry.Size, listSizeSuffix)
}

// ParseListLine is the inverse of FormatListLine.
func ParseListLine(line string) (FileEntry, bool) {
	body, ok := strings.CutSuffix(line, listSizeSuffix)
	if !ok {
		return FileEntry{}, false
	}
	i := strings.LastIndexByte(body, ' ')
	if i <= 0 {
		return FileEntry{}, false
	}
	size, err := strconv.ParseInt(body[i+1:], 10, 64)
	if err != nil || size < 0 {
		return FileEntry{}, false
	}
	name := strings.TrimRight(body[:i], " ")
	if name == "" {
		return FileEntry{}, false
	}
	return FileEntry{Name: name, Size: size}, true
}

// ModeOK renders the reply to a successful MODE command.
func ModeOK(mode string) string {
	return fmt.Sprintf("%s framing set to %s", OKPrefix, strings.ToLower(mode))
}
