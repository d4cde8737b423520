package mapping

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

var fragmentRef = regexp.MustCompile(`\$\{\s*([A-Za-z0-9_.\-]+)\s*\}`)

type yamlDocument struct {
	Namespace  string            `yaml:"namespace"`
	Fragments  map[string]string `yaml:"fragments"`
	Statements []yamlStatement   `yaml:"statements"`
}

type yamlStatement struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
	SQL  string `yaml:"sql"`
}

func parseYAML(resource string, data []byte) (*document, error) {
	var in yamlDocument
	if err := yaml.UnmarshalWithOptions(data, &in, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	ns := strings.TrimSpace(in.Namespace)
	if ns == "" {
		return nil, fmt.Errorf("mapping document requires a namespace")
	}
	doc := &document{namespace: ns}

	names := make([]string, 0, len(in.Fragments))
	for name := range in.Fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := doc.addFragment(name, splitRefs(in.Fragments[name]), resource); err != nil {
			return nil, err
		}
	}
	for _, st := range in.Statements {
		kind := Kind(strings.ToLower(strings.TrimSpace(st.Kind)))
		if kind == "" {
			kind = inferKind(st.SQL)
		}
		if err := doc.addStatement(st.ID, kind, splitRefs(st.SQL), resource); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// splitRefs breaks text at ${ref} markers.
func splitRefs(text string) []part {
	var parts []part
	last := 0
	for _, loc := range fragmentRef.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			parts = append(parts, part{text: text[last:loc[0]]})
		}
		parts = append(parts, part{ref: text[loc[2]:loc[3]]})
		last = loc[1]
	}
	if last < len(text) {
		parts = append(parts, part{text: text[last:]})
	}
	return parts
}

// inferKind reads the verb of a statement whose kind was omitted.
func inferKind(sql string) Kind {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "select", "with":
		return KindSelect
	case "insert":
		return KindInsert
	case "update":
		return KindUpdate
	case "delete":
		return KindDelete
	}
	return ""
}
