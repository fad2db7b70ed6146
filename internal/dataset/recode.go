// Per-dataset cell recodings. These run on positional cells after trimming
// and blank→nil conversion, but before the cells are aligned with the
// driver's column list, because every rule below is defined against the
// legacy file's column positions.
package dataset

// electionTypes maps the board's two-letter election codes to display names.
// Codes missing from the table (including "NE") recode to nil.
var electionTypes = map[string]string{
	"CE": "Consolidated Election",
	"GP": "General Primary",
	"GE": "General Election",
	"CP": "Consolidated Primary",
	"SE": "Special Election",
}

// raceTypes maps the board's race codes to lowercase descriptors.
var raceTypes = map[string]string{
	"Inc":  "incumbent",
	"Open": "open seat",
	"Chal": "challenger",
	"Ret":  "retired",
}

// recodeActive replaces cells[i] with true when the cell is the literal
// status marker "A", false otherwise (including blank cells).
func recodeActive(cells []any, i int) {
	if i >= len(cells) {
		return
	}
	cells[i] = cells[i] == "A"
}

// recodePosition maps the single-letter support/oppose markers onto the
// committee_position enumeration; anything else becomes nil.
func recodePosition(cells []any, i int) {
	if i >= len(cells) {
		return
	}
	switch cells[i] {
	case "S":
		cells[i] = "support"
	case "O":
		cells[i] = "oppose"
	default:
		cells[i] = nil
	}
}

// recodeLookup replaces cells[i] with its mapping in table, or nil when the
// cell is blank or has no mapping.
func recodeLookup(cells []any, i int, table map[string]string) {
	if i >= len(cells) {
		return
	}
	s, ok := cells[i].(string)
	if !ok {
		cells[i] = nil
		return
	}
	if v, ok := table[s]; ok {
		cells[i] = v
	} else {
		cells[i] = nil
	}
}

// recodeOutcome lowercases the Won/Lost outcome markers; anything else is nil.
func recodeOutcome(cells []any, i int) {
	if i >= len(cells) {
		return
	}
	switch cells[i] {
	case "Won":
		cells[i] = "won"
	case "Lost":
		cells[i] = "lost"
	default:
		cells[i] = nil
	}
}

// insertAt returns cells with v inserted before position i. Positions past the
// end append.
func insertAt(cells []any, i int, v any) []any {
	if i >= len(cells) {
		return append(cells, v)
	}
	cells = append(cells, nil)
	copy(cells[i+1:], cells[i:])
	cells[i] = v
	return cells
}

// dropFirst removes the leading cell (legacy link-table row ids that have no
// column in the warehouse).
func dropFirst(cells []any) []any {
	if len(cells) == 0 {
		return cells
	}
	return cells[1:]
}
