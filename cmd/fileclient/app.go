package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"fileshare/client"
	"fileshare/protocol"
	"fileshare/terminal"
	"fileshare/transfer"
)

// app runs user commands against one client session.
type app struct {
	ctx         context.Context
	client      *client.Client
	theme       *terminal.ThemeManager
	table       *terminal.TableFormatter
	completer   *terminal.CommandCompleter
	out         io.Writer
	downloadDir string
	done        bool
}

func newApp(ctx context.Context, c *client.Client, theme *terminal.ThemeManager, out io.Writer) *app {
	a := &app{
		ctx:         ctx,
		client:      c,
		theme:       theme,
		table:       terminal.NewTableFormatter(out),
		completer:   terminal.NewCommandCompleter(),
		out:         out,
		downloadDir: ".",
	}
	a.completer.SetLister(c)
	c.OnPromote(func() {
		a.theme.GetSuccessColor().Fprintln(a.out, "\n👑 "+protocol.AdminNotice)
	})
	return a
}

// runScript executes commands read line by line until EXIT or end of input.
func (a *app) runScript(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for !a.done && scanner.Scan() {
		a.execute(scanner.Text())
	}
	if !a.done {
		a.client.Exit()
		a.done = true
	}
}

func (a *app) livePrefix() (string, bool) {
	a.client.PollNotices()
	if a.client.IsAdmin() {
		return "[admin] " + a.client.Name() + "> ", true
	}
	return a.client.Name() + "> ", true
}

// execute runs one input line.
func (a *app) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" || a.done {
		return
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "help":
		a.showHelp()
		return
	case "theme":
		a.setTheme(fields[1:])
		return
	}

	cmd := protocol.Parse(line)
	if err := protocol.Validate(cmd); err != nil {
		if errors.Is(err, protocol.ErrMissingArgument) {
			a.fail(err)
		} else {
			a.theme.GetErrorColor().Fprintln(a.out, "Invalid command. Type 'HELP' for available commands.")
		}
		return
	}

	switch cmd.Kind {
	case protocol.List:
		a.list()
	case protocol.Upload:
		a.upload(cmd.Arg(0))
	case protocol.Download:
		a.download(cmd.Arg(0))
	case protocol.Delete:
		if err := a.client.Delete(cmd.Arg(0)); err != nil {
			a.fail(err)
			return
		}
		a.theme.GetSuccessColor().Fprintln(a.out, protocol.DeleteOK)
	case protocol.Rename:
		if err := a.client.Rename(cmd.Arg(0), cmd.Arg(1)); err != nil {
			a.fail(err)
			return
		}
		a.theme.GetSuccessColor().Fprintln(a.out, protocol.RenameOK)
	case protocol.Mode:
		a.setMode(cmd.Arg(0))
	case protocol.Exit:
		a.client.Exit()
		a.done = true
		a.theme.GetTextColor().Fprintln(a.out, "Goodbye.")
	}
}

func (a *app) list() {
	listing, err := a.client.List()
	if err != nil {
		a.fail(err)
		return
	}
	a.completer.UpdateRemoteFiles(listing.Entries)
	if err := a.table.Render(listing.Entries); err != nil {
		a.fail(err)
	}
}

// upload stores the local file under its base name.
func (a *app) upload(localPath string) {
	remote := filepath.Base(localPath)
	report, err := a.client.Upload(a.ctx, localPath, remote)
	if err != nil {
		a.fail(err)
		return
	}
	a.theme.GetSuccessColor().Fprintf(a.out, "⬆️  %s uploaded: %s\n", remote, report)
}

func (a *app) download(remote string) {
	local := filepath.Join(a.downloadDir, filepath.Base(remote))
	report, err := a.client.Download(a.ctx, remote, local)
	if err != nil {
		a.fail(err)
		if report.Bytes > 0 {
			a.theme.GetInfoColor().Fprintf(a.out, "Warning: %s is incomplete, kept %d bytes\n", local, report.Bytes)
		}
		return
	}
	if report.Bytes == 0 {
		a.theme.GetInfoColor().Fprintf(a.out, "Warning: %s is empty\n", remote)
	}
	a.theme.GetSuccessColor().Fprintf(a.out, "⬇️  %s saved to %s: %s\n", remote, local, report)
}

func (a *app) setMode(name string) {
	framing, err := transfer.ParseFraming(name)
	if err != nil {
		a.fail(err)
		return
	}
	if err := a.client.SetFraming(framing); err != nil {
		a.fail(err)
		return
	}
	a.theme.GetSuccessColor().Fprintln(a.out, protocol.ModeOK(framing.String()))
}

func (a *app) setTheme(args []string) {
	if len(args) == 0 {
		a.theme.GetTextColor().Fprintf(a.out, "Current theme: %s (available: %s)\n",
			a.theme.GetThemeName(), strings.Join(terminal.ThemeNames(), ", "))
		return
	}
	if err := a.theme.SetTheme(args[0]); err != nil {
		a.fail(err)
		return
	}
	a.theme.GetSuccessColor().Fprintf(a.out, "Theme set to %s\n", args[0])
}

// fail prints err; server replies are shown as sent.
func (a *app) fail(err error) {
	var serverErr *client.ServerError
	if errors.As(err, &serverErr) {
		a.theme.GetErrorColor().Fprintln(a.out, serverErr.Reply)
		return
	}
	a.theme.GetErrorColor().Fprintf(a.out, "Error: %v\n", err)
}

func (a *app) showHelp() {
	text := a.theme.GetTextColor()
	text.Fprintln(a.out, "\nCommands:")
	text.Fprintln(a.out, "LIST                      - List files on the server")
	text.Fprintln(a.out, "UPLOAD <localFile>        - Upload a file under its base name")
	text.Fprintln(a.out, "DOWNLOAD <remoteFile>     - Download a file into the current directory")
	text.Fprintln(a.out, "DELETE <remoteFile>       - Delete a file (admin only)")
	text.Fprintln(a.out, "RENAME <old> <new>        - Rename a file (admin only)")
	text.Fprintln(a.out, "MODE <SIZED|LEGACY>       - Choose transfer framing")
	text.Fprintln(a.out, "EXIT                      - Disconnect and quit")
	text.Fprintln(a.out, "\nAdditional Commands:")
	text.Fprintln(a.out, "theme [dark|light]        - Show or change the terminal theme")
	text.Fprintln(a.out, "HELP                      - Show this help")
}
