package client

import (
	"context"
	"errors"
	"fmt"
	"os"

	"fileshare/protocol"
	"fileshare/transfer"
)

// Listing is the reply to LIST.
type Listing struct {
	Lines   []string
	Entries []protocol.FileEntry
}

// List fetches the listing of the shared directory.
func (c *Client) List() (*Listing, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.conn.WriteLine(protocol.List.String()); err != nil {
		return nil, err
	}

	listing := &Listing{}
	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			return nil, err
		}
		switch {
		case line == protocol.AdminNotice:
			c.promote()
			continue
		case line == protocol.EndOfList:
			return listing, nil
		case len(listing.Lines) == 0 && protocol.IsError(line):
			return nil, &ServerError{Reply: line}
		}
		listing.Lines = append(listing.Lines, line)
		if entry, ok := protocol.ParseListLine(line); ok {
			listing.Entries = append(listing.Entries, entry)
		}
	}
}

// ListFiles returns only the parsed entries of a listing.
func (c *Client) ListFiles() ([]protocol.FileEntry, error) {
	listing, err := c.List()
	if err != nil {
		return nil, err
	}
	return listing.Entries, nil
}

// Upload sends the local file at localPath and stores it as remoteName.
func (c *Client) Upload(ctx context.Context, localPath, remoteName string) (transfer.Report, error) {
	if remoteName == "" {
		return transfer.Report{}, fmt.Errorf("upload: %w: file name", protocol.ErrMissingArgument)
	}
	file, err := os.Open(localPath)
	if err != nil {
		return transfer.Report{}, err
	}
	defer file.Close()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.conn.WriteLine(protocol.Format(protocol.Upload, remoteName)); err != nil {
		return transfer.Report{}, err
	}
	reply, err := c.readReply()
	if err != nil {
		return transfer.Report{}, err
	}

	sender := transfer.Sender{
		Framing:   c.framing,
		ChunkSize: c.config.ChunkSize,
		Pace:      c.config.Pace,
		End:       protocol.EndOfUpload,
	}

	if protocol.IsError(reply) {
		// The server drains until an end marker, then confirms the discard.
		if err := sender.Finish(c.conn); err != nil {
			return transfer.Report{}, err
		}
		if _, err := c.readReply(); err != nil {
			return transfer.Report{}, err
		}
		return transfer.Report{}, &ServerError{Reply: reply}
	}
	if reply != protocol.ReadyForUpload {
		return transfer.Report{}, fmt.Errorf("upload: %w: %q", ErrUnexpectedReply, reply)
	}

	timer := transfer.NewTimer(0)
	n, err := sender.Send(ctx, c.conn, file)
	if err != nil {
		// Release the server whatever stopped the send; it keeps what arrived.
		if sender.Finish(c.conn) == nil {
			c.readReply()
		}
		return timer.Report(n), err
	}
	report := timer.Report(n)

	if err := c.expectReply(protocol.UploadOK); err != nil {
		return report, err
	}
	c.recordTransfer("upload", remoteName, report)
	return report, nil
}

// Download fetches remoteName into localPath. On an error reply no local
// file is left behind.
func (c *Client) Download(ctx context.Context, remoteName, localPath string) (transfer.Report, error) {
	if remoteName == "" {
		return transfer.Report{}, fmt.Errorf("download: %w: file name", protocol.ErrMissingArgument)
	}
	if err := ctx.Err(); err != nil {
		return transfer.Report{}, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.conn.WriteLine(protocol.Format(protocol.Download, remoteName)); err != nil {
		return transfer.Report{}, err
	}

	receiver := transfer.Receiver{
		Framing:   c.framing,
		ChunkSize: c.config.ChunkSize,
		End:       protocol.EndOfFile,
	}

	if c.framing == transfer.Sized {
		reply, err := c.readReply()
		if err != nil {
			return transfer.Report{}, err
		}
		if protocol.IsError(reply) {
			return transfer.Report{}, &ServerError{Reply: reply}
		}
		if reply != protocol.ReadyForDownload {
			return transfer.Report{}, fmt.Errorf("download: %w: %q", ErrUnexpectedReply, reply)
		}
	} else {
		if err := c.skipNotices(); err != nil {
			return transfer.Report{}, err
		}
		isError, err := c.conn.HasPrefix(protocol.ErrorPrefix)
		if err != nil {
			return transfer.Report{}, err
		}
		if isError {
			reply, err := c.conn.ReadLine()
			if err != nil {
				return transfer.Report{}, err
			}
			return transfer.Report{}, &ServerError{Reply: reply}
		}
	}

	file, err := os.Create(localPath)
	if err != nil {
		// The stream is already on its way and must be consumed.
		if _, derr := receiver.Drain(c.conn); derr != nil {
			return transfer.Report{}, errors.Join(err, derr)
		}
		c.conn.SkipBufferedNewline()
		return transfer.Report{}, err
	}

	timer := transfer.NewTimer(0)
	n, err := receiver.Receive(file, c.conn)
	if c.framing == transfer.Legacy {
		c.conn.SkipBufferedNewline()
	}
	report := timer.Report(n)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return report, err
	}

	c.recordTransfer("download", remoteName, report)
	return report, nil
}

func (c *Client) expectReply(want string) error {
	reply, err := c.readReply()
	if err != nil {
		return err
	}
	if protocol.IsError(reply) {
		return &ServerError{Reply: reply}
	}
	if reply != want {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, reply)
	}
	return nil
}

// skipNotices consumes role notices queued ahead of a legacy download stream.
func (c *Client) skipNotices() error {
	for {
		ok, err := c.conn.SkipLine(protocol.AdminNotice)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		c.promote()
	}
}
