package records

import "testing"

func TestGetZeroesReusedRows(t *testing.T) {
	t.Parallel()

	r := Get(3)
	r.V[0], r.V[1], r.V[2] = "a", "b", "c"
	r.Line = 42
	r.Free()

	// Pool reuse is not guaranteed, but any row handed out must be clean.
	r2 := Get(3)
	if r2.Line != 0 {
		t.Fatalf("Line = %d, want 0", r2.Line)
	}
	for i, v := range r2.V {
		if v != nil {
			t.Fatalf("V[%d] = %v, want nil", i, v)
		}
	}
	r2.Free()
}

func TestGetResizesAcrossWidths(t *testing.T) {
	t.Parallel()

	Get(2).Free()
	r := Get(5)
	if len(r.V) != 5 {
		t.Fatalf("len(V) = %d, want 5", len(r.V))
	}
	r.Free()
	r = Get(1)
	if len(r.V) != 1 {
		t.Fatalf("len(V) = %d, want 1", len(r.V))
	}
	r.Free()
}
