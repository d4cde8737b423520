package mapping

import (
	"sort"
	"strings"
)

// Kind is the statement verb declared by a mapping resource.
type Kind string

const (
	KindSelect Kind = "select"
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSelect, KindInsert, KindUpdate, KindDelete:
		return true
	}
	return false
}

// IsQuery reports whether the statement returns rows.
func (k Kind) IsQuery() bool { return k == KindSelect }

// Statement is one resolved, executable mapped statement.
type Statement struct {
	// ID is qualified by the namespace, e.g. "user.findById".
	ID        string
	Namespace string
	Name      string
	Kind      Kind
	// SQL uses @name placeholders for named parameters and ? for positional ones.
	SQL string
	// Params lists the named parameters in order of first appearance.
	Params   []string
	Resource string
}

// Mappings is the frozen statement set of one client. It is safe for
// concurrent use.
type Mappings struct {
	statements map[string]*Statement
	short      map[string][]string
	namespaces []string
	resources  []string
}

// Statement looks a statement up by qualified id, or by its short name when
// that name is unique across namespaces.
func (m *Mappings) Statement(id string) (*Statement, bool) {
	if m == nil {
		return nil, false
	}
	if st, ok := m.statements[id]; ok {
		return st, true
	}
	if strings.Contains(id, ".") {
		return nil, false
	}
	if ids := m.short[id]; len(ids) == 1 {
		return m.statements[ids[0]], true
	}
	return nil, false
}

// Statements returns every statement sorted by id.
func (m *Mappings) Statements() []*Statement {
	if m == nil {
		return nil
	}
	out := make([]*Statement, 0, len(m.statements))
	for _, st := range m.statements {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Mappings) Namespaces() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.namespaces...)
}

// Resources lists the resource paths the mappings were parsed from, in load order.
func (m *Mappings) Resources() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.resources...)
}

func (m *Mappings) Len() int {
	if m == nil {
		return 0
	}
	return len(m.statements)
}
