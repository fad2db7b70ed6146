package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sunshine/internal/dataset"
)

type execSpy struct {
	stmts  []string
	failOn string
}

func (s *execSpy) Exec(ctx context.Context, sql string, args ...any) error {
	s.stmts = append(s.stmts, sql)
	if s.failOn != "" && strings.Contains(sql, s.failOn) {
		return errors.New("forced error")
	}
	return nil
}

// TestEnsureStatementShape verifies the enum guard runs first and every table
// statement is idempotent.
func TestEnsureStatementShape(t *testing.T) {
	t.Parallel()

	spy := &execSpy{}
	if err := Ensure(context.Background(), spy); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if len(spy.stmts) != len(tables)+1 {
		t.Fatalf("executed %d statements, want %d", len(spy.stmts), len(tables)+1)
	}
	if !strings.Contains(spy.stmts[0], "CREATE TYPE committee_position") {
		t.Fatalf("first statement is not the enum guard: %s", spy.stmts[0])
	}
	if !strings.Contains(spy.stmts[0], "duplicate_object") {
		t.Fatalf("enum guard not re-runnable: %s", spy.stmts[0])
	}
	for _, s := range spy.stmts[1:] {
		if !strings.Contains(s, "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("table statement not idempotent: %s", s)
		}
	}
}

// TestEnsureCoversDriverColumns cross-checks the DDL against the dataset
// drivers: every merged column of every dataset must exist in the DDL of its
// target relation.
func TestEnsureCoversDriverColumns(t *testing.T) {
	t.Parallel()

	ddlByTable := map[string]string{}
	for _, ddl := range tables {
		rest := strings.TrimPrefix(strings.TrimSpace(ddl), "CREATE TABLE IF NOT EXISTS ")
		name := rest[:strings.IndexAny(rest, " (")]
		ddlByTable[name] = ddl
	}

	for _, d := range dataset.All() {
		ddl, ok := ddlByTable[d.Table]
		if !ok {
			t.Fatalf("dataset %s targets %s which has no DDL", d.Name, d.Table)
		}
		if d.UpdateOnly {
			// Update-only link files only touch existing columns.
			for _, c := range d.UpdateColumns {
				if !strings.Contains(ddl, c) {
					t.Fatalf("table %s missing update column %s", d.Table, c)
				}
			}
			continue
		}
		for _, c := range d.Columns {
			if !strings.Contains(ddl, "\n  "+c+" ") {
				t.Fatalf("table %s missing column %s for dataset %s", d.Table, c, d.Name)
			}
		}
	}

	// Timestamped datasets additionally need the managed stamp columns.
	for _, col := range []string{"date_added", "last_update"} {
		if !strings.Contains(ddlByTable["candidates"], col) {
			t.Fatalf("candidates missing %s", col)
		}
	}
}

func TestEnsurePropagatesErrors(t *testing.T) {
	t.Parallel()

	spy := &execSpy{failOn: "receipts"}
	err := Ensure(context.Background(), spy)
	if err == nil || !strings.Contains(fmt.Sprint(err), "create table") {
		t.Fatalf("expected wrapped create error, got %v", err)
	}
}
