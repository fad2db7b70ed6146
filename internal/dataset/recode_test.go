package dataset

import (
	"reflect"
	"testing"
)

func TestRecodeActive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "active_marker", in: "A", want: true},
		{name: "inactive_marker", in: "I", want: false},
		{name: "blank", in: nil, want: false},
		{name: "lowercase_not_marker", in: "a", want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cells := []any{tc.in}
			recodeActive(cells, 0)
			if cells[0] != tc.want {
				t.Fatalf("recodeActive(%v) = %v, want %v", tc.in, cells[0], tc.want)
			}
		})
	}

	// Out-of-range positions are a no-op, not a panic.
	recodeActive([]any{"A"}, 5)
}

func TestRecodePosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "support", in: "S", want: "support"},
		{name: "oppose", in: "O", want: "oppose"},
		{name: "blank", in: nil, want: nil},
		{name: "unknown_code", in: "X", want: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cells := []any{tc.in}
			recodePosition(cells, 0)
			if cells[0] != tc.want {
				t.Fatalf("recodePosition(%v) = %v, want %v", tc.in, cells[0], tc.want)
			}
		})
	}
}

func TestRecodeLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table map[string]string
		in    any
		want  any
	}{
		{name: "general_primary", table: electionTypes, in: "GP", want: "General Primary"},
		{name: "special_election", table: electionTypes, in: "SE", want: "Special Election"},
		{name: "nonexistent_code_unmapped", table: electionTypes, in: "NE", want: nil},
		{name: "blank", table: electionTypes, in: nil, want: nil},
		{name: "incumbent", table: raceTypes, in: "Inc", want: "incumbent"},
		{name: "open_seat", table: raceTypes, in: "Open", want: "open seat"},
		{name: "unknown_race", table: raceTypes, in: "???", want: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cells := []any{tc.in}
			recodeLookup(cells, 0, tc.table)
			if cells[0] != tc.want {
				t.Fatalf("recodeLookup(%v) = %v, want %v", tc.in, cells[0], tc.want)
			}
		})
	}
}

func TestRecodeOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "won", in: "Won", want: "won"},
		{name: "lost", in: "Lost", want: "lost"},
		{name: "blank", in: nil, want: nil},
		{name: "already_lowercase_unmapped", in: "won", want: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cells := []any{tc.in}
			recodeOutcome(cells, 0)
			if cells[0] != tc.want {
				t.Fatalf("recodeOutcome(%v) = %v, want %v", tc.in, cells[0], tc.want)
			}
		})
	}
}

func TestInsertAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []any
		pos  int
		v    any
		want []any
	}{
		{name: "front", in: []any{"a", "b"}, pos: 0, v: "x", want: []any{"x", "a", "b"}},
		{name: "middle", in: []any{"a", "b"}, pos: 1, v: nil, want: []any{"a", nil, "b"}},
		{name: "end", in: []any{"a", "b"}, pos: 2, v: "x", want: []any{"a", "b", "x"}},
		{name: "past_end_appends", in: []any{"a"}, pos: 9, v: "x", want: []any{"a", "x"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := insertAt(append([]any(nil), tc.in...), tc.pos, tc.v)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("insertAt(%v, %d, %v) = %v, want %v", tc.in, tc.pos, tc.v, got, tc.want)
			}
		})
	}
}

func TestDropFirst(t *testing.T) {
	t.Parallel()

	if got := dropFirst([]any{"link_id", "a", "b"}); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Fatalf("dropFirst = %v, want [a b]", got)
	}
	if got := dropFirst(nil); len(got) != 0 {
		t.Fatalf("dropFirst(nil) = %v, want empty", got)
	}
}
