package preset

import (
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"

	"github.com/gosuri/uitable"
)

// builtin is the static alias table shipped with the binary.
//
//nolint:gochecknoglobals // Read-only lookup table.
var builtin = map[string]string{
	"https-everywhere": "gcbommkclmclpchllfjekcdonpmejbdp",
	"postman":          "fhbjgbiflinjbdggehcddcbncdddomop",
	"ublock-origin":    "cjpalhdlnbpafiamejdnhcphjbkeiagm",
	"umatrix":          "ogfcmafjalglgifnmanfmnieipoejdcf",
	"scriptsafe":       "oiigbmnaadbkfbmpbfijlflahbdbdgdf",
}

// idPattern matches the 32-character a..p alphabet used by store IDs.
var idPattern = regexp.MustCompile(`^[a-p]{32}$`)

// Table is a set of aliases resolved against extension IDs.
type Table struct {
	entries map[string]string
}

// New returns the built-in table with user presets merged over it.
func New(user map[string]string) *Table {
	entries := maps.Clone(builtin)
	maps.Copy(entries, user)

	return &Table{entries: entries}
}

// Resolve returns the ID for a known alias, or the argument itself.
func (t *Table) Resolve(nameOrID string) string {
	if id, ok := t.entries[nameOrID]; ok {
		return id
	}

	return nameOrID
}

// Names returns the aliases in lexical order.
func (t *Table) Names() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

// WriteTable prints the aliases and their IDs as an aligned table.
func (t *Table) WriteTable(out io.Writer) error {
	table := uitable.New()
	table.AddRow("NAME", "EXTENSION ID")

	for _, name := range t.Names() {
		table.AddRow(name, t.entries[name])
	}

	_, err := fmt.Fprintln(out, table)

	return err
}

// LooksLikeID reports whether s has the shape of a store extension ID.
func LooksLikeID(s string) bool {
	return idPattern.MatchString(s)
}
