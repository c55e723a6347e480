package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a command of the session protocol
type Kind int

const (
	Invalid Kind = iota
	List
	Upload
	Download
	Delete
	Rename
	Exit
	Mode
)

var kindNames = map[Kind]string{
	List:     "LIST",
	Upload:   "UPLOAD",
	Download: "DOWNLOAD",
	Delete:   "DELETE",
	Rename:   "RENAME",
	Exit:     "EXIT",
	Mode:     "MODE",
}

var fileCommands = map[string]Kind{
	"UPLOAD":   Upload,
	"DOWNLOAD": Download,
	"DELETE":   Delete,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "INVALID"
}

// ErrMissingArgument is returned by Validate when a command lacks a required argument.
var ErrMissingArgument = errors.New("missing argument")

// Command is one parsed command line.
type Command struct {
	Kind Kind
	Verb string
	Args []string
	Raw  string
}

// Arg returns the i-th argument or the empty string.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Parse interprets one received command line. It never fails: anything it
// does not recognize comes back with Kind Invalid.
func Parse(line string) Command {
	line = strings.TrimRight(line, "\r\n\x00")
	trimmed := strings.TrimLeft(line, " ")

	verb, rest, _ := strings.Cut(trimmed, " ")
	cmd := Command{
		Verb: strings.ToUpper(verb),
		Raw:  line,
	}
	rest = strings.TrimSpace(rest)

	switch cmd.Verb {
	case "LIST":
		cmd.Kind = List
	case "UPLOAD", "DOWNLOAD", "DELETE":
		cmd.Kind = fileCommands[cmd.Verb]
		// The file name is everything after the keyword.
		if rest != "" {
			cmd.Args = []string{rest}
		}
	case "RENAME":
		cmd.Kind = Rename
		fields := strings.Fields(rest)
		if len(fields) > 2 {
			fields = fields[:2]
		}
		cmd.Args = fields
	case "EXIT":
		if rest == "" {
			cmd.Kind = Exit
		}
	case "MODE":
		cmd.Kind = Mode
		if rest != "" {
			cmd.Args = []string{strings.ToUpper(rest)}
		}
	}
	return cmd
}

// Validate performs the client-side argument checks done before a command
// is ever sent.
func Validate(cmd Command) error {
	switch cmd.Kind {
	case Upload, Download, Delete:
		if cmd.Arg(0) == "" {
			return fmt.Errorf("%s: %w: file name", cmd.Kind, ErrMissingArgument)
		}
	case Rename:
		if len(cmd.Args) < 2 {
			return fmt.Errorf("%s: %w: old and new file names", cmd.Kind, ErrMissingArgument)
		}
	case Mode:
		if cmd.Arg(0) == "" {
			return fmt.Errorf("%s: %w: framing", cmd.Kind, ErrMissingArgument)
		}
	case Invalid:
		return fmt.Errorf("invalid command %q", cmd.Raw)
	}
	return nil
}

// Format renders a command line, without the trailing newline.
func Format(kind Kind, args ...string) string {
	if len(args) == 0 {
		return kind.String()
	}
	return kind.String() + " " + strings.Join(args, " ")
}

// ParseHandshake extracts the display name from a name-announcement message.
func ParseHandshake(msg string) (string, bool) {
	name, ok := strings.CutPrefix(msg, HandshakePrefix)
	if !ok {
		return "", false
	}
	return TruncateName(strings.TrimRight(name, "\r\n\x00")), true
}

// TruncateName limits a display name to MaxNameLen bytes.
func TruncateName(name string) string {
	if len(name) > MaxNameLen {
		return name[:MaxNameLen]
	}
	return name
}
