package client

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fileshare/config"
	"fileshare/protocol"
	"fileshare/server"
	"fileshare/transfer"
)

const testTimeout = 5 * time.Second

func startServer(t *testing.T, maxClients int) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.RootDir = t.TempDir()
	cfg.MaxClients = maxClients
	srv, err := server.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), listener) }()
	t.Cleanup(func() {
		srv.Stop()
		<-done
	})
	for srv.Addr() == nil {
		time.Sleep(time.Millisecond)
	}
	return srv
}

func connect(t *testing.T, srv *server.Server, name string, framing transfer.Framing) *Client {
	t.Helper()
	cfg := config.DefaultClientConfig()
	cfg.Address = srv.Addr().String()
	cfg.Username = name
	cfg.Framing = framing
	cfg.Pace = 0
	c, err := Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func localFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func content(size int) []byte {
	return bytes.Repeat([]byte("0123456789abcdefghij"), size/20+1)[:size]
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for _, framing := range []transfer.Framing{transfer.Legacy, transfer.Sized} {
		framing := framing
		t.Run(framing.String(), func(t *testing.T) {
			t.Parallel()
			srv := startServer(t, 10)
			c := connect(t, srv, "alice", framing)
			if got := c.Framing(); got != framing {
				t.Fatalf("framing not negotiated\n\tgot: %s\n\twant: %s", got, framing)
			}

			for _, size := range []int{1, 100, transfer.DefaultChunkSize, 5*transfer.DefaultChunkSize + 3} {
				data := content(size)
				src := localFile(t, "src.bin", data)
				report, err := c.Upload(context.Background(), src, "file.bin")
				if err != nil {
					t.Fatalf("upload of %d bytes failed: %v", size, err)
				}
				if report.Bytes != int64(size) {
					t.Errorf("upload byte count\n\tgot: %d\n\twant: %d", report.Bytes, size)
				}

				dst := filepath.Join(t.TempDir(), "dst.bin")
				report, err = c.Download(context.Background(), "file.bin", dst)
				if err != nil {
					t.Fatalf("download of %d bytes failed: %v", size, err)
				}
				got, _ := os.ReadFile(dst)
				if !bytes.Equal(got, data) || report.Bytes != int64(size) {
					t.Errorf("round trip of %d bytes\n\tgot: %d bytes (report %d)\n\twant: %d bytes", size, len(got), report.Bytes, size)
				}
			}
		})
	}
}

func TestSizedCarriesSentinels(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 10)
	c := connect(t, srv, "alice", transfer.Sized)

	data := []byte("a" + protocol.EndOfUpload + "b" + protocol.EndOfFile + "\nERROR: c")
	if _, err := c.Upload(context.Background(), localFile(t, "s.txt", data), "s.txt"); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "s.txt")
	if _, err := c.Download(context.Background(), "s.txt", dst); err != nil {
		t.Fatal(err)
	}
	if got, _ := os.ReadFile(dst); !bytes.Equal(got, data) {
		t.Errorf("sized transfer altered payload\n\tgot: %q\n\twant: %q", got, data)
	}
}

func TestLegacyCollisionStaysInStep(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 10)
	c := connect(t, srv, "alice", transfer.Legacy)
	c.config.Pace = time.Millisecond
	c.config.ChunkSize = 1024

	data := []byte("head" + protocol.EndOfUpload + strings.Repeat("y", 5000))
	if _, err := c.Upload(context.Background(), localFile(t, "clash.txt", data), "clash.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.List(); err != nil {
		t.Fatalf("session out of step after upload: %v", err)
	}
	if got, _ := os.ReadFile(filepath.Join(srv.Dir().Root(), "clash.txt")); string(got) != "head" {
		t.Errorf("stored content\n\tgot: %q\n\twant: %q", got, "head")
	}

	shared := "abc" + protocol.EndOfFile + "\n" + strings.Repeat("z", 5000)
	if err := os.WriteFile(filepath.Join(srv.Dir().Root(), "eof.txt"), []byte(shared), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "eof.txt")
	if _, err := c.Download(context.Background(), "eof.txt", dst); err != nil {
		t.Fatal(err)
	}
	if got, _ := os.ReadFile(dst); string(got) != "abc" {
		t.Errorf("downloaded content\n\tgot: %q\n\twant: %q", got, "abc")
	}
	if _, err := c.List(); err != nil {
		t.Errorf("session out of step after download: %v", err)
	}
}

func TestUploadReadFailure(t *testing.T) {
	t.Parallel()
	for _, framing := range []transfer.Framing{transfer.Legacy, transfer.Sized} {
		srv := startServer(t, 10)
		c := connect(t, srv, "alice", framing)

		// Opening a directory succeeds but reading it fails.
		if _, err := c.Upload(context.Background(), t.TempDir(), "dir.bin"); err == nil {
			t.Errorf("%s: expected read error", framing)
		}
		if _, err := c.List(); err != nil {
			t.Errorf("%s: session out of step after read failure: %v", framing, err)
		}
	}
}

func TestDownloadErrorLeavesNoFile(t *testing.T) {
	t.Parallel()
	for _, framing := range []transfer.Framing{transfer.Legacy, transfer.Sized} {
		srv := startServer(t, 10)
		c := connect(t, srv, "alice", framing)

		dst := filepath.Join(t.TempDir(), "missing.txt")
		_, err := c.Download(context.Background(), "missing.txt", dst)
		var serverErr *ServerError
		if !errors.As(err, &serverErr) || serverErr.Reply != protocol.ErrFileNotFound {
			t.Errorf("%s: expected file-not-found reply, got: %v", framing, err)
		}
		if _, err := os.Stat(dst); !os.IsNotExist(err) {
			t.Errorf("%s: local file left behind: %v", framing, err)
		}

		if _, err := c.List(); err != nil {
			t.Errorf("%s: session out of step after error: %v", framing, err)
		}
	}
}

func TestUploadRefused(t *testing.T) {
	t.Parallel()
	for _, framing := range []transfer.Framing{transfer.Legacy, transfer.Sized} {
		srv := startServer(t, 10)
		c := connect(t, srv, "alice", framing)

		_, err := c.Upload(context.Background(), localFile(t, "x", []byte("data")), "..")
		var serverErr *ServerError
		if !errors.As(err, &serverErr) || serverErr.Reply != protocol.ErrInvalidName {
			t.Errorf("%s: expected invalid-name reply, got: %v", framing, err)
		}
		if _, err := c.List(); err != nil {
			t.Errorf("%s: session out of step after refusal: %v", framing, err)
		}
	}
}

func TestClientSideValidation(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 10)
	c := connect(t, srv, "alice", transfer.Sized)

	if _, err := c.Upload(context.Background(), "whatever", ""); !errors.Is(err, protocol.ErrMissingArgument) {
		t.Errorf("empty upload name: %v", err)
	}
	if _, err := c.Download(context.Background(), "", "x"); !errors.Is(err, protocol.ErrMissingArgument) {
		t.Errorf("empty download name: %v", err)
	}
	if err := c.Rename("a", ""); !errors.Is(err, protocol.ErrMissingArgument) {
		t.Errorf("missing rename target: %v", err)
	}
	if _, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "absent"), "absent"); !os.IsNotExist(err) {
		t.Errorf("missing local file: %v", err)
	}
	if _, err := c.List(); err != nil {
		t.Errorf("session disturbed by local failures: %v", err)
	}
}

func TestListEntries(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 10)
	c := connect(t, srv, "alice", transfer.Sized)

	listing, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(listing.Entries) != 0 || !strings.Contains(strings.Join(listing.Lines, "\n"), protocol.NoFilesFound) {
		t.Errorf("unexpected empty listing: %+v", listing)
	}

	c.Upload(context.Background(), localFile(t, "a", content(3)), "a.txt")
	c.Upload(context.Background(), localFile(t, "b", content(10)), "b.bin")
	listing, err = c.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []protocol.FileEntry{{Name: "a.txt", Size: 3}, {Name: "b.bin", Size: 10}}
	if len(listing.Entries) != 2 || listing.Entries[0] != want[0] || listing.Entries[1] != want[1] {
		t.Errorf("listing entries\n\tgot: %+v\n\twant: %+v", listing.Entries, want)
	}
}

func TestAdminHandover(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 10)
	first := connect(t, srv, "alice", transfer.Sized)
	second := connect(t, srv, "bob", transfer.Legacy)

	if !first.IsAdmin() || second.IsAdmin() {
		t.Fatalf("initial roles: first %t, second %t", first.IsAdmin(), second.IsAdmin())
	}
	first.Upload(context.Background(), localFile(t, "a", content(5)), "a.txt")

	var serverErr *ServerError
	if err := second.Delete("a.txt"); !errors.As(err, &serverErr) || serverErr.Reply != protocol.ErrInvalidCmd {
		t.Fatalf("non-admin delete: %v", err)
	}

	promoted := make(chan struct{}, 1)
	second.OnPromote(func() { promoted <- struct{}{} })
	if err := first.Exit(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(testTimeout)
	for !second.PollNotices() {
		if time.Now().After(deadline) {
			t.Fatal("promotion notice never arrived")
		}
	}
	<-promoted
	if !second.IsAdmin() {
		t.Fatal("client role not updated")
	}
	if err := second.Rename("a.txt", "b.txt"); err != nil {
		t.Fatalf("rename after promotion: %v", err)
	}
	if err := second.Delete("b.txt"); err != nil {
		t.Fatalf("delete after promotion: %v", err)
	}
}

func TestNoticeBeforeReply(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 10)
	first := connect(t, srv, "alice", transfer.Sized)
	second := connect(t, srv, "bob", transfer.Sized)

	first.Close()
	deadline := time.Now().Add(testTimeout)
	for !srv.Registry().IsAdmin(1) {
		if time.Now().After(deadline) {
			t.Fatal("server never promoted the second session")
		}
		time.Sleep(5 * time.Millisecond)
	}

	listing, err := second.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range listing.Lines {
		if line == protocol.AdminNotice {
			t.Fatal("notice leaked into the listing")
		}
	}
	for !second.IsAdmin() && !second.PollNotices() {
		if time.Now().After(deadline) {
			t.Fatal("promotion notice never arrived")
		}
	}
}

func TestServerFull(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 1)
	connect(t, srv, "alice", transfer.Sized)

	cfg := config.DefaultClientConfig()
	cfg.Address = srv.Addr().String()
	cfg.Username = "bob"
	if _, err := Dial(context.Background(), cfg); !errors.Is(err, ErrServerFull) {
		t.Errorf("expected ErrServerFull, got: %v", err)
	}
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()
	srv := startServer(t, 10)
	cfg := config.DefaultClientConfig()
	cfg.Address = srv.Addr().String()
	cfg.Username = "alice"
	cfg.MetricsDir = t.TempDir()
	c, err := Dial(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Upload(context.Background(), localFile(t, "m", content(50)), "m.txt"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.MetricsDir, "transfers.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), ",alice,upload,m.txt,50,sized,") {
		t.Errorf("transfer not recorded:\n%s", data)
	}
}
