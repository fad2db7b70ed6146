package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"sunshine/internal/dataset"
)

// MergeSpec parameterizes one staging→target reconciliation. It is derived
// from a dataset driver and carries everything the SQL builders need.
type MergeSpec struct {
	Table      string   // target relation
	Staging    string   // staging relation, owned by this run
	Columns    []string // staged column order
	KeyColumns []string // identity columns for the merge

	// Timestamps adds last_update = NOW() on update, and both last_update and
	// date_added on insert.
	Timestamps bool

	// UpdateOnly suppresses the insert phase; UpdateColumns restricts its SET
	// list.
	UpdateOnly    bool
	UpdateColumns []string

	// Predicate overrides the key-equality match over aliases t/s.
	Predicate string

	// StagingDDL overrides the clone-the-target staging definition.
	StagingDDL string
}

// MergeStats reports affected-row counts from one merge.
type MergeStats struct {
	Updated  int64
	Inserted int64
}

// SpecFor builds the MergeSpec for a dataset driver.
func SpecFor(d dataset.Driver) MergeSpec {
	return MergeSpec{
		Table:         d.Table,
		Staging:       StagingName(d.Table),
		Columns:       d.Columns,
		KeyColumns:    d.Keys(),
		Timestamps:    d.Timestamps,
		UpdateOnly:    d.UpdateOnly,
		UpdateColumns: d.UpdateColumns,
		Predicate:     d.MergePredicate,
		StagingDDL:    d.StagingDDL,
	}
}

// StagingName derives the per-target staging relation name. One staging
// relation per target means concurrent loads against the same target are not
// supported within a run.
func StagingName(table string) string {
	return "staging_" + strings.ReplaceAll(table, ".", "_")
}

// execer is the slice of pgx.Tx the merge needs; tests substitute a fake.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// mergeInTx runs the update, insert, and drop phases on an open transaction.
// Re-running the same staged data is a no-op on the second pass: updates set
// identical values and the anti-join finds no new keys.
func mergeInTx(ctx context.Context, x execer, spec MergeSpec) (MergeStats, error) {
	var stats MergeStats

	tag, err := x.Exec(ctx, buildUpdateSQL(spec))
	if err != nil {
		return stats, fmt.Errorf("merge %s: update: %w", spec.Table, err)
	}
	stats.Updated = tag.RowsAffected()

	if !spec.UpdateOnly {
		tag, err = x.Exec(ctx, buildInsertSQL(spec))
		if err != nil {
			return stats, fmt.Errorf("merge %s: insert: %w", spec.Table, err)
		}
		stats.Inserted = tag.RowsAffected()
	}

	if _, err := x.Exec(ctx, "DROP TABLE "+pgIdent(spec.Staging)); err != nil {
		return stats, fmt.Errorf("merge %s: drop staging: %w", spec.Table, err)
	}
	return stats, nil
}

// predicate returns the match condition over aliases t (target) and s
// (staging): the driver override when present, otherwise equality on the key
// columns.
func predicate(spec MergeSpec) string {
	if spec.Predicate != "" {
		return spec.Predicate
	}
	conds := make([]string, len(spec.KeyColumns))
	for i, k := range spec.KeyColumns {
		conds[i] = fmt.Sprintf("t.%s = s.%s", pgIdent(k), pgIdent(k))
	}
	return strings.Join(conds, " AND ")
}

// buildUpdateSQL sets every non-key staged field from the matching staging
// row. When the key spans the whole row (pure association tables) the key
// columns themselves are set, so a matched row still counts as updated.
func buildUpdateSQL(spec MergeSpec) string {
	setCols := spec.UpdateColumns
	if len(setCols) == 0 {
		setCols = nonKeyColumns(spec)
		if len(setCols) == 0 {
			setCols = spec.Columns
		}
	}

	assigns := make([]string, 0, len(setCols)+1)
	for _, c := range setCols {
		assigns = append(assigns, fmt.Sprintf("%s = s.%s", pgIdent(c), pgIdent(c)))
	}
	if spec.Timestamps {
		assigns = append(assigns, "last_update = NOW()")
	}

	return fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM %s AS s WHERE %s",
		pgFQN(spec.Table),
		strings.Join(assigns, ", "),
		pgIdent(spec.Staging),
		predicate(spec),
	)
}

// buildInsertSQL copies every staged row whose key is absent from the target
// (anti-join on the key columns). Timestamped drivers stamp both date_added
// and last_update at insert time.
func buildInsertSQL(spec MergeSpec) string {
	insertCols := make([]string, 0, len(spec.Columns)+2)
	selectCols := make([]string, 0, len(spec.Columns)+2)
	for _, c := range spec.Columns {
		insertCols = append(insertCols, pgIdent(c))
		selectCols = append(selectCols, "s."+pgIdent(c))
	}
	if spec.Timestamps {
		insertCols = append(insertCols, pgIdent("last_update"), pgIdent("date_added"))
		selectCols = append(selectCols, "NOW()", "NOW()")
	}

	absent := make([]string, len(spec.KeyColumns))
	for i, k := range spec.KeyColumns {
		absent[i] = fmt.Sprintf("t.%s IS NULL", pgIdent(k))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s AS s LEFT JOIN %s AS t ON %s WHERE %s",
		pgFQN(spec.Table),
		strings.Join(insertCols, ", "),
		strings.Join(selectCols, ", "),
		pgIdent(spec.Staging),
		pgFQN(spec.Table),
		predicate(spec),
		strings.Join(absent, " AND "),
	)
}

// nonKeyColumns returns spec.Columns minus the key columns, preserving order.
func nonKeyColumns(spec MergeSpec) []string {
	keys := make(map[string]struct{}, len(spec.KeyColumns))
	for _, k := range spec.KeyColumns {
		keys[k] = struct{}{}
	}
	var out []string
	for _, c := range spec.Columns {
		if _, isKey := keys[c]; !isKey {
			out = append(out, c)
		}
	}
	return out
}
