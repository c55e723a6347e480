package transfer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
)

const (
	uploadEnd   = "END_OF_UPLOAD"
	downloadEnd = "END_OF_FILE\n"
)

func payload(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	// Keep random payloads free of the sentinel's first byte so only the
	// collision tests exercise truncation.
	return bytes.ReplaceAll(data, []byte("E"), []byte("e"))
}

func roundTrip(t *testing.T, framing Framing, data []byte, split bool) ([]byte, int64, error) {
	t.Helper()
	var wire bytes.Buffer
	sender := Sender{Framing: framing, End: uploadEnd}
	sent, err := sender.Send(context.Background(), &wire, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sent != int64(len(data)) {
		t.Fatalf("sent byte count mismatch\n\tgot: %d\n\twant: %d", sent, len(data))
	}

	var reader io.Reader = &wire
	if split {
		reader = iotest.HalfReader(reader)
	}
	var out bytes.Buffer
	receiver := Receiver{Framing: framing, End: uploadEnd}
	n, err := receiver.Receive(&out, bufio.NewReaderSize(reader, 16))
	return out.Bytes(), n, err
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for _, framing := range []Framing{Legacy, Sized} {
		for _, size := range []int{0, 100, DefaultChunkSize, 5*DefaultChunkSize + 17} {
			for _, split := range []bool{false, true} {
				framing, size, split := framing, size, split
				name := fmt.Sprintf("%s/%d/split=%t", framing, size, split)
				t.Run(name, func(t *testing.T) {
					t.Parallel()
					data := payload(size)
					got, n, err := roundTrip(t, framing, data, split)
					if err != nil {
						t.Fatalf("receive failed (size %d, split %t): %v", size, split, err)
					}
					if n != int64(size) || !bytes.Equal(got, data) {
						t.Errorf("payload mismatch (size %d, split %t)\n\tgot: %d bytes\n\twant: %d bytes", size, split, n, size)
					}
				})
			}
		}
	}
}

func TestLegacySentinelCollisionTruncates(t *testing.T) {
	t.Parallel()
	for _, split := range []bool{false, true} {
		var reader io.Reader = strings.NewReader("hello" + uploadEnd + "world" + uploadEnd)
		if split {
			reader = iotest.HalfReader(reader)
		}
		var out bytes.Buffer
		receiver := Receiver{Framing: Legacy, End: uploadEnd}
		if _, err := receiver.Receive(&out, bufio.NewReaderSize(reader, 16)); err != nil {
			t.Fatal(err)
		}
		if out.String() != "hello" {
			t.Errorf("collision not truncated at first sentinel\n\tgot: %q\n\twant: %q", out.String(), "hello")
		}
	}

	// Sized framing carries the same bytes intact.
	data := []byte("hello" + uploadEnd + "world")
	got, _, err := roundTrip(t, Sized, data, true)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("sized framing altered payload\n\tgot: %q (%v)\n\twant: %q", got, err, data)
	}
}

func TestLegacySendCutsAtMarker(t *testing.T) {
	t.Parallel()
	tail := strings.Repeat("y", 5000)
	tests := []struct {
		sender Sender
		data   string
		wire   string
	}{
		{Sender{Framing: Legacy, End: uploadEnd}, "head" + uploadEnd + tail, "head" + uploadEnd},
		{Sender{Framing: Legacy, End: uploadEnd}, uploadEnd + tail, uploadEnd},
		{Sender{Framing: Legacy, End: uploadEnd}, "dataEND_OF", "dataEND_OF" + uploadEnd},
		{Sender{Framing: Legacy, End: downloadEnd, Marker: "END_OF_FILE"}, "abcEND_OF_FILEzzz", "abc" + downloadEnd},
	}
	for _, test := range tests {
		for _, slow := range []bool{false, true} {
			var src io.Reader = strings.NewReader(test.data)
			if slow {
				src = iotest.OneByteReader(src)
			}
			var wire bytes.Buffer
			sender := test.sender
			sender.ChunkSize = 7
			n, err := sender.Send(context.Background(), &wire, src)
			if err != nil {
				t.Fatalf("%q: send failed: %v", test.data, err)
			}
			if wire.String() != test.wire {
				t.Errorf("%q (slow %t): wire mismatch\n\tgot: %q\n\twant: %q", test.data, slow, wire.String(), test.wire)
			}
			if want := int64(len(test.wire) - len(sender.End)); n != want {
				t.Errorf("%q: sent count\n\tgot: %d\n\twant: %d", test.data, n, want)
			}
		}
	}

	// Sized framing sends everything.
	var wire bytes.Buffer
	data := "head" + uploadEnd + tail
	n, err := Sender{Framing: Sized, End: uploadEnd}.Send(context.Background(), &wire, strings.NewReader(data))
	if err != nil || n != int64(len(data)) {
		t.Errorf("sized send\n\tgot: %d, %v\n\twant: %d, <nil>", n, err, len(data))
	}
}

// brokenWriter accepts limit bytes and then fails.
type brokenWriter struct {
	limit int
	out   bytes.Buffer
}

var errDiskFull = errors.New("disk full")

func (w *brokenWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.out.Len(); len(p) > room {
		w.out.Write(p[:room])
		return room, errDiskFull
	}
	return w.out.Write(p)
}

func TestWriteFailureConsumesStream(t *testing.T) {
	t.Parallel()
	const next = "LIST\n"
	for _, framing := range []Framing{Legacy, Sized} {
		var wire bytes.Buffer
		data := payload(3*DefaultChunkSize + 5)
		if _, err := (Sender{Framing: framing, End: uploadEnd}).Send(context.Background(), &wire, bytes.NewReader(data)); err != nil {
			t.Fatal(err)
		}
		wire.WriteString(next)

		src := bufio.NewReader(&wire)
		dst := &brokenWriter{limit: 100}
		_, err := Receiver{Framing: framing, End: uploadEnd}.Receive(dst, src)
		if !errors.Is(err, ErrWrite) {
			t.Errorf("%s: expected ErrWrite, got: %v", framing, err)
		}
		if !bytes.Equal(dst.out.Bytes(), data[:100]) {
			t.Errorf("%s: written prefix mismatch\n\tgot: %d bytes", framing, dst.out.Len())
		}
		rest, _ := io.ReadAll(src)
		if string(rest) != next {
			t.Errorf("%s: stream not consumed through end marker\n\tgot: %q\n\twant: %q", framing, rest, next)
		}
	}

	// The marker and the failing chunk arrive in the same read.
	src := bufio.NewReader(strings.NewReader(strings.Repeat("x", 300) + uploadEnd))
	_, err := Receiver{Framing: Legacy, End: uploadEnd}.Receive(&brokenWriter{limit: 100}, src)
	if !errors.Is(err, ErrWrite) {
		t.Errorf("expected ErrWrite, got: %v", err)
	}
	if src.Buffered() != 0 {
		t.Errorf("bytes left after end marker: %d", src.Buffered())
	}
}

func TestLegacyLeavesTrailingBytes(t *testing.T) {
	t.Parallel()
	src := bufio.NewReader(strings.NewReader("abc" + downloadEnd + "You are now the admin\n"))
	var out bytes.Buffer
	receiver := Receiver{Framing: Legacy, End: "END_OF_FILE"}
	if _, err := receiver.Receive(&out, src); err != nil {
		t.Fatal(err)
	}
	if out.String() != "abc" {
		t.Errorf("payload mismatch\n\tgot: %q\n\twant: %q", out.String(), "abc")
	}
	rest, _ := io.ReadAll(src)
	if want := "\nYou are now the admin\n"; string(rest) != want {
		t.Errorf("bytes after sentinel were consumed\n\tgot: %q\n\twant: %q", rest, want)
	}
}

func TestIncompleteStream(t *testing.T) {
	t.Parallel()
	for _, test := range []struct {
		framing Framing
		wire    []byte
		want    string
	}{
		{Legacy, []byte("partialEND_OF"), "partialEND_OF"},
		{Sized, []byte{0, 0, 0, 5, 'a', 'b'}, "ab"},
		{Sized, []byte{0, 0}, ""},
	} {
		var out bytes.Buffer
		receiver := Receiver{Framing: test.framing, End: uploadEnd}
		_, err := receiver.Receive(&out, bufio.NewReader(bytes.NewReader(test.wire)))
		if !errors.Is(err, ErrIncomplete) {
			t.Errorf("%s: expected ErrIncomplete, got: %v", test.framing, err)
		}
		if out.String() != test.want {
			t.Errorf("%s: partial payload mismatch\n\tgot: %q\n\twant: %q", test.framing, out.String(), test.want)
		}
	}
}

func TestFrameTooLarge(t *testing.T) {
	t.Parallel()
	wire := []byte{0x00, 0x20, 0x00, 0x00}
	receiver := Receiver{Framing: Sized}
	_, err := receiver.Drain(bufio.NewReader(bytes.NewReader(wire)))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got: %v", err)
	}
}

func TestFinishReleasesDrain(t *testing.T) {
	t.Parallel()
	for _, framing := range []Framing{Legacy, Sized} {
		var wire bytes.Buffer
		if err := (Sender{Framing: framing, End: uploadEnd}).Finish(&wire); err != nil {
			t.Fatal(err)
		}
		n, err := Receiver{Framing: framing, End: uploadEnd}.Drain(bufio.NewReader(&wire))
		if err != nil || n != 0 {
			t.Errorf("%s: drain of bare end marker\n\tgot: %d, %v\n\twant: 0, <nil>", framing, n, err)
		}
	}
}

func TestSendHonorsContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sender{Framing: Legacy, End: uploadEnd}.Send(ctx, io.Discard, bytes.NewReader(payload(10)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestParseFraming(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Framing{"legacy": Legacy, "SIZED": Sized, " Sized ": Sized} {
		got, err := ParseFraming(in)
		if err != nil || got != want {
			t.Errorf("%q\n\tgot: %s (%v)\n\twant: %s", in, got, err, want)
		}
	}
	if _, err := ParseFraming("chunked"); err == nil {
		t.Error("expected unknown framing to fail")
	}
}

func TestLockExclusive(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "target.bin")
	first, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	lock, err := LockExclusive(first)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LockExclusive(second); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy on second lock, got: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
	relock, err := LockExclusive(second)
	if err != nil {
		t.Fatalf("lock not available after release: %v", err)
	}
	relock.Release()
}

func TestTimerReport(t *testing.T) {
	t.Parallel()
	report := NewTimer(0).Report(2048)
	if report.Bytes != 2048 || report.TransferTime < 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if !strings.Contains(report.String(), "2048 bytes") {
		t.Errorf("report string missing byte count: %q", report.String())
	}
}
