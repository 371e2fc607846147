package db

import (
	"fmt"
	"strings"
)

// Where accumulates AND-ed filter clauses with positional arguments. Each
// clause refers to its argument as "$?"; every occurrence in one clause is
// bound to the same placeholder.
type Where struct {
	clauses []string
	args    []interface{}
}

// Add appends a clause bound to arg.
func (w *Where) Add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "$?", fmt.Sprintf("$%d", len(w.args))))
}

// AddRaw appends a clause without arguments.
func (w *Where) AddRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// SQL renders " WHERE ..." or an empty string.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *Where) Args() []interface{} {
	return w.args
}

// Page renders a LIMIT/OFFSET suffix and returns the arguments it needs
// appended after the filter arguments.
func (w *Where) Page(limit, offset int) (string, []interface{}) {
	n := len(w.args)
	args := append(append([]interface{}{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}
