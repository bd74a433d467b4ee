package rules

import (
	"strings"
	"unicode"
)

// role is the meaning a header cell carries
type role int

const (
	roleStatus role = iota
	roleProhibited
	roleRequirement
	roleNotes
	roleReference
	roleRisk
	roleCategory
	roleTitle
	roleID
	roleCount
)

// roleKeywords is checked in order; a header takes the first role it matches.
// Keywords match by substring, roleWords only as whole words.
var roleKeywords = [roleCount][]string{
	roleStatus:      {"acceptance", "status"},
	roleProhibited:  {"prohibited", "avoid", "unacceptable"},
	roleRequirement: {"requirement", "required", "preferred", "language"},
	roleNotes:       {"note", "criteria", "comment", "guidance"},
	roleReference:   {"reference", "citation", "authority"},
	roleRisk:        {"risk", "severity"},
	roleCategory:    {"category"},
	roleTitle:       {"title", "name", "subject"},
	roleID:          {"clause", "term", "number"},
}

var roleWords = [roleCount][]string{
	roleID: {"id"},
}

// headerScanRows bounds how far down a sheet the header row may sit
const headerScanRows = 10

// columns maps each role to a column index, -1 when absent
type columns [roleCount]int

func (c columns) cell(row []string, r role) string {
	idx := c[r]
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (c columns) found() int {
	n := 0
	for _, idx := range c {
		if idx >= 0 {
			n++
		}
	}
	return n
}

// detectColumns classifies one candidate header row
func detectColumns(header []string) columns {
	var cols columns
	for i := range cols {
		cols[i] = -1
	}

	for i, cell := range header {
		lower := strings.ToLower(strings.TrimSpace(cell))
		if lower == "" {
			continue
		}
		for r := role(0); r < roleCount; r++ {
			if !containsAny(lower, roleKeywords[r]) && !containsWord(lower, roleWords[r]) {
				continue
			}
			if cols[r] < 0 {
				cols[r] = i
			}
			break
		}
	}
	return cols
}

// findHeader returns the index of the first row with at least two recognized columns
func findHeader(rows [][]string) (int, columns, bool) {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		cols := detectColumns(rows[i])
		if cols.found() >= 2 {
			return i, cols, true
		}
	}
	return -1, columns{}, false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// containsWord reports whether s holds one of words delimited by non-alphanumerics
func containsWord(s string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
