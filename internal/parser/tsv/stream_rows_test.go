package tsv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"sunshine/internal/records"
)

// fakeRC is a small helper implementing io.ReadCloser over a byte slice.
// It lets tests verify that Close() is forwarded.
type fakeRC struct {
	*bytes.Reader
	closed bool
}

func newFakeRC(b []byte) *fakeRC { return &fakeRC{Reader: bytes.NewReader(b)} }
func (f *fakeRC) Close() error   { f.closed = true; return nil }

// makeTSV builds a tab-delimited document with a header line.
func makeTSV(header []string, rows [][]string) []byte {
	var b bytes.Buffer
	if header != nil {
		b.WriteString(strings.Join(header, "\t"))
		b.WriteByte('\n')
	}
	for _, r := range rows {
		b.WriteString(strings.Join(r, "\t"))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func quietLogs(t *testing.T) {
	t.Helper()
	prev := log.Default().Writer()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(prev) })
}

// TestStreamRows_TrimAndNull verifies cells are trimmed, blanks become nil,
// the header is skipped, and the source is closed.
func TestStreamRows_TrimAndNull(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	src := newFakeRC(makeTSV(
		[]string{"ID", "Name", "City"},
		[][]string{{" 7 ", "  Acme PAC", "   "}},
	))
	columns := []string{"id", "name", "city"}
	out := make(chan *records.Row, 1)

	if err := StreamRows(context.Background(), src, columns, nil, Options{}, out, nil); err != nil {
		t.Fatalf("StreamRows error: %v", err)
	}
	if !src.closed {
		t.Fatalf("expected source to be closed")
	}

	row := <-out
	t.Cleanup(row.Free)

	if got, want := row.V[0], "7"; got != want {
		t.Fatalf("id got=%v want=%v", got, want)
	}
	if got, want := row.V[1], "Acme PAC"; got != want {
		t.Fatalf("name got=%v want=%v", got, want)
	}
	if row.V[2] != nil {
		t.Fatalf("city got=%v want=nil", row.V[2])
	}
}

// TestStreamRows_Latin1 verifies legacy high bytes decode permissively rather
// than aborting the stream: 0xE9 is é in Latin-1.
func TestStreamRows_Latin1(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	payload := []byte("name\nRen\xe9e\n")
	out := make(chan *records.Row, 1)

	if err := StreamRows(context.Background(), newFakeRC(payload), []string{"name"}, nil, Options{}, out, nil); err != nil {
		t.Fatalf("StreamRows error: %v", err)
	}
	row := <-out
	t.Cleanup(row.Free)

	if got, want := row.V[0], "Renée"; got != want {
		t.Fatalf("name got=%q want=%q", got, want)
	}
}

// TestStreamRows_Recode verifies the recode hook runs after null conversion
// and its output width is what gets checked against the column list.
func TestStreamRows_Recode(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	src := newFakeRC(makeTSV(
		[]string{"LinkID", "CommitteeID", "CandidateID"},
		[][]string{{"999", "12", "34"}},
	))
	columns := []string{"committee_id", "candidate_id"}
	recode := func(cells []any) []any { return cells[1:] }
	out := make(chan *records.Row, 1)

	if err := StreamRows(context.Background(), src, columns, recode, Options{}, out, nil); err != nil {
		t.Fatalf("StreamRows error: %v", err)
	}
	row := <-out
	t.Cleanup(row.Free)

	if row.V[0] != "12" || row.V[1] != "34" {
		t.Fatalf("recoded row = %v, want [12 34]", row.V)
	}
}

// TestStreamRows_WidthMismatchSkipped verifies a short row is reported
// through onErr with its line number and never emitted, while subsequent
// valid rows still flow.
func TestStreamRows_WidthMismatchSkipped(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	src := newFakeRC(makeTSV(
		[]string{"a", "b", "c"},
		[][]string{
			{"1", "2"}, // too narrow
			{"3", "4", "5"},
		},
	))
	columns := []string{"a", "b", "c"}

	var badLines []int
	onErr := func(line int, err error) { badLines = append(badLines, line) }

	out := make(chan *records.Row, 2)
	if err := StreamRows(context.Background(), src, columns, nil, Options{}, out, onErr); err != nil {
		t.Fatalf("StreamRows error: %v", err)
	}

	if len(badLines) != 1 || badLines[0] != 2 {
		t.Fatalf("bad lines = %v, want [2]", badLines)
	}
	if len(out) != 1 {
		t.Fatalf("emitted %d rows, want 1", len(out))
	}
	row := <-out
	t.Cleanup(row.Free)
	if row.V[0] != "3" {
		t.Fatalf("surviving row = %v", row.V)
	}
	if row.Line != 3 {
		t.Fatalf("surviving row line = %d, want 3", row.Line)
	}
}

// TestStreamRows_BlankLineSkipped verifies a bare blank line is dropped
// silently without an onErr callback.
func TestStreamRows_BlankLineSkipped(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	payload := []byte("a\n1\n\n2\n")
	var errCount int
	out := make(chan *records.Row, 4)

	if err := StreamRows(context.Background(), newFakeRC(payload), []string{"a"}, nil, Options{},
		out, func(int, error) { errCount++ }); err != nil {
		t.Fatalf("StreamRows error: %v", err)
	}
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	if len(out) != 2 {
		t.Fatalf("emitted %d rows, want 2", len(out))
	}
	for len(out) > 0 {
		(<-out).Free()
	}
}

// TestStreamRows_NoHeader verifies the first line is data when NoHeader is
// set.
func TestStreamRows_NoHeader(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	src := newFakeRC([]byte("1\tx\n"))
	out := make(chan *records.Row, 1)

	if err := StreamRows(context.Background(), src, []string{"id", "v"}, nil, Options{NoHeader: true}, out, nil); err != nil {
		t.Fatalf("StreamRows error: %v", err)
	}
	row := <-out
	t.Cleanup(row.Free)
	if row.V[0] != "1" || row.V[1] != "x" {
		t.Fatalf("row = %v", row.V)
	}
}

// TestStreamRows_EmptyStream verifies a header-only (or fully empty) file
// streams zero rows without error.
func TestStreamRows_EmptyStream(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	out := make(chan *records.Row, 1)
	if err := StreamRows(context.Background(), newFakeRC(nil), []string{"a"}, nil, Options{}, out, nil); err != nil {
		t.Fatalf("empty stream: %v", err)
	}
	if err := StreamRows(context.Background(), newFakeRC([]byte("a\n")), []string{"a"}, nil, Options{}, out, nil); err != nil {
		t.Fatalf("header only: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("emitted %d rows, want 0", len(out))
	}
}

// TestStreamRows_ContextCancel verifies cancellation is honored mid-stream.
func TestStreamRows_ContextCancel(t *testing.T) {
	t.Parallel()
	quietLogs(t)

	pr, pw := io.Pipe()
	go func() {
		fmt.Fprintln(pw, "a")
		for i := 0; i < 1_000_000; i++ {
			fmt.Fprintln(pw, "x")
			time.Sleep(time.Millisecond)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	out := make(chan *records.Row, 10)
	err := StreamRows(ctx, pr, []string{"a"}, nil, Options{}, out, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for len(out) > 0 {
		(<-out).Free()
	}
}
