// Package dataset declares one static Driver per disclosure file published by
// the state elections board. A Driver is the sole unit of per-dataset
// variability: it names the target relation, the ordered field list the
// normalizer aligns rows to, the merge key, and the positional recodings that
// bridge the legacy file layout to the warehouse schema. All load/merge
// behavior outside these descriptors is shared.
package dataset

// Driver describes how one source file is normalized and merged.
type Driver struct {
	// Name identifies the dataset in logs, metrics, and the run ledger.
	Name string

	// Table is the target relation the dataset merges into. Several datasets
	// may share a table (the officer current/historical pair).
	Table string

	// SourceFile is the file name under the data directory, e.g. "Committees.txt".
	SourceFile string

	// Columns is the ordered field list. Every normalized row has exactly
	// these fields in this order.
	Columns []string

	// KeyColumns identify a row for the update/insert merge. Defaults to
	// {"id"} when empty and the driver is not UpdateOnly.
	KeyColumns []string

	// Recode runs on the positional cells of each row before they are aligned
	// with Columns. Cells arrive trimmed, with blanks already nil. May insert,
	// drop, or rewrite cells; the result must have len(Columns) cells or the
	// row is rejected.
	Recode func(cells []any) []any

	// Timestamps enables server-assigned stamps: date_added and last_update
	// on insert, last_update alone on update. The stamped columns are not
	// part of Columns.
	Timestamps bool

	// UpdateOnly drivers reconcile by updating existing target rows and never
	// insert. Used for link files that annotate an already-merged relation.
	UpdateOnly bool

	// UpdateColumns restricts the SET list for UpdateOnly drivers.
	UpdateColumns []string

	// MergePredicate overrides the key-equality predicate with a SQL fragment
	// over aliases t (target) and s (staging). Empty means equality on
	// KeyColumns.
	MergePredicate string

	// StagingDDL overrides the staging relation definition for drivers whose
	// staged shape differs from the target relation. The fragment is the
	// parenthesized column list of a CREATE TABLE.
	StagingDDL string
}

// Keys returns the effective merge key columns.
func (d Driver) Keys() []string {
	if len(d.KeyColumns) == 0 {
		return []string{"id"}
	}
	return d.KeyColumns
}

// Committees is the committee registry. Position 14 carries the 'A' active
// marker; positions 23 and 24 carry support/oppose codes.
var Committees = Driver{
	Name:       "committees",
	Table:      "committees",
	SourceFile: "Committees.txt",
	Columns: []string{
		"id", "type", "state_committee", "state_id", "local_committee",
		"local_id", "refer_name", "name", "address1", "address2", "address3",
		"city", "state", "zipcode", "active", "status_date", "creation_date",
		"creation_amount", "disp_funds_return", "disp_funds_political_committee",
		"disp_funds_charity", "disp_funds_95", "disp_funds_description",
		"candidate_position", "policy_position", "party",
	},
	Recode: func(cells []any) []any {
		recodeActive(cells, 14)
		recodePosition(cells, 23)
		recodePosition(cells, 24)
		return cells
	},
}

// Candidates carries managed timestamps: date_added is set once on insert,
// last_update on every merge.
var Candidates = Driver{
	Name:       "candidates",
	Table:      "candidates",
	SourceFile: "Candidates.txt",
	Columns: []string{
		"id", "last_name", "first_name", "address_1", "address_2", "city",
		"state", "zipcode", "office", "district_type", "district",
		"residence_county", "party", "redaction_requested",
	},
	Timestamps: true,
}

// officerColumns is shared by the current and historical officer datasets,
// which merge into one relation partitioned by the trailing current flag.
var officerColumns = []string{
	"id", "committee_id", "last_name", "first_name", "title", "address_1",
	"address_2", "city", "state", "zipcode", "phone", "resign_date", "current",
}

// Officers holds currently seated officers. The legacy file carries neither a
// committee reference nor a resignation date, so placeholders are inserted to
// align with the richer warehouse layout, and the current flag is appended.
var Officers = Driver{
	Name:       "officers",
	Table:      "officers",
	SourceFile: "Officers.txt",
	Columns:    officerColumns,
	KeyColumns: []string{"id", "current"},
	Recode: func(cells []any) []any {
		cells = insertAt(cells, 1, nil)  // committee_id
		cells = insertAt(cells, 11, nil) // resign_date
		return append(cells, true)       // current
	},
}

// PrevOfficers holds superseded officers. Its legacy layout lacks only the
// phone column; rows land in the same relation as Officers with current=false,
// so a historical record never collides with a current one sharing its id.
var PrevOfficers = Driver{
	Name:       "prev_officers",
	Table:      "officers",
	SourceFile: "PrevOfficers.txt",
	Columns:    officerColumns,
	KeyColumns: []string{"id", "current"},
	Recode: func(cells []any) []any {
		cells = insertAt(cells, 10, nil) // phone
		return append(cells, false)      // current
	},
}

// Candidacies records per-election candidate runs, recoding the board's
// election, race, and outcome codes through fixed lookup tables.
var Candidacies = Driver{
	Name:       "candidacies",
	Table:      "candidacies",
	SourceFile: "CanElections.txt",
	Columns: []string{
		"id", "candidate_id", "election_type", "election_year", "race_type",
		"outcome", "fair_campaign", "limits_off", "limits_off_reason",
	},
	Recode: func(cells []any) []any {
		recodeLookup(cells, 2, electionTypes)
		recodeLookup(cells, 4, raceTypes)
		recodeOutcome(cells, 5)
		return cells
	},
}

// CandidateCommittees is a pure association table: composite key over the
// whole row, no timestamps, legacy link id dropped from the front.
var CandidateCommittees = Driver{
	Name:       "candidate_committees",
	Table:      "candidate_committees",
	SourceFile: "CmteCandidateLinks.txt",
	Columns:    []string{"committee_id", "candidate_id"},
	KeyColumns: []string{"committee_id", "candidate_id"},
	Recode:     dropFirst,
}

// OfficerCommittees annotates current officer rows with their committee. It
// stages into a hand-built two-column relation and performs an update-only
// merge; no officer rows are ever inserted from this file.
var OfficerCommittees = Driver{
	Name:           "officer_committees",
	Table:          "officers",
	SourceFile:     "CmteOfficerLinks.txt",
	Columns:        []string{"committee_id", "officer_id"},
	Recode:         dropFirst,
	UpdateOnly:     true,
	UpdateColumns:  []string{"committee_id"},
	MergePredicate: "t.id = s.officer_id AND t.current = TRUE",
	StagingDDL:     "(committee_id INTEGER, officer_id INTEGER)",
}

// FiledDocs indexes every filed disclosure document.
var FiledDocs = Driver{
	Name:       "filed_docs",
	Table:      "filed_docs",
	SourceFile: "FiledDocs.txt",
	Columns: []string{
		"id", "committee_id", "doc_type", "doc_name", "amended", "page_count",
		"received_datetime", "reporting_period_begin", "reporting_period_end",
		"signer",
	},
}

// D2Reports carries the quarterly D-2 financial summaries.
var D2Reports = Driver{
	Name:       "d2_reports",
	Table:      "d2_reports",
	SourceFile: "D2Totals.txt",
	Columns: []string{
		"id", "committee_id", "filed_doc_id", "begin_funds_available",
		"individual_itemized_contrib", "individual_non_itemized_contrib",
		"transfers_in", "loans_received", "other_receipts", "total_receipts",
		"total_expenditures", "end_funds_available", "total_investments",
		"total_debts",
	},
}

// Receipts is the itemized contribution ledger, the largest dataset.
var Receipts = Driver{
	Name:       "receipts",
	Table:      "receipts",
	SourceFile: "Receipts.txt",
	Columns: []string{
		"id", "committee_id", "filed_doc_id", "etrans_id", "last_name",
		"first_name", "received_date", "amount", "aggregate_amount",
		"loan_amount", "occupation", "employer", "address1", "address2",
		"city", "state", "zip", "d2_part", "description", "vendor_name",
		"archived",
	},
}

// Expenditures is the itemized spending ledger.
var Expenditures = Driver{
	Name:       "expenditures",
	Table:      "expenditures",
	SourceFile: "Expenditures.txt",
	Columns: []string{
		"id", "committee_id", "filed_doc_id", "etrans_id", "last_name",
		"first_name", "expended_date", "amount", "aggregate_amount",
		"address1", "address2", "city", "state", "zip", "d2_part", "purpose",
		"candidate_name", "office", "supporting", "opposing", "description",
	},
}

// Investments lists committee investment holdings.
var Investments = Driver{
	Name:       "investments",
	Table:      "investments",
	SourceFile: "Investments.txt",
	Columns: []string{
		"id", "committee_id", "filed_doc_id", "etrans_id", "last_name",
		"first_name", "purchase_date", "purchase_amount", "current_value",
		"liquid", "liquidate_date", "liquidate_amount",
	},
}

// All returns every driver in merge order. Entity tables precede the link and
// transaction files that reference them; the officer link update runs after
// both officer datasets so every current officer row exists first.
func All() []Driver {
	return []Driver{
		Committees,
		Candidates,
		Officers,
		PrevOfficers,
		Candidacies,
		CandidateCommittees,
		OfficerCommittees,
		FiledDocs,
		D2Reports,
		Receipts,
		Expenditures,
		Investments,
	}
}
