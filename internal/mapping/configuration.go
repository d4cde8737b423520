package mapping

import (
	"bedrock/internal/types"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// part is either literal SQL text or a reference to a fragment.
type part struct {
	text string
	ref  string
}

type draft struct {
	namespace string
	name      string
	kind      Kind
	parts     []part
	resource  string
}

func (d *draft) qualified() string { return d.namespace + "." + d.name }

// Configuration accumulates parsed mapping resources until it is frozen.
type Configuration struct {
	mu         sync.Mutex
	statements map[string]*draft
	fragments  map[string]*draft
	namespaces map[string]struct{}
	resources  []string
	frozen     bool
}

func NewConfiguration() *Configuration {
	return &Configuration{
		statements: make(map[string]*draft),
		fragments:  make(map[string]*draft),
		namespaces: make(map[string]struct{}),
	}
}

// Parse loads one mapping resource. The format is chosen by extension and
// falls back to sniffing the first non-blank byte.
func (c *Configuration) Parse(resourcePath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &types.MappingParseError{Path: resourcePath, Err: err}
	}

	var doc *document
	if isXML(resourcePath, data) {
		doc, err = parseXML(resourcePath, data)
	} else {
		doc, err = parseYAML(resourcePath, data)
	}
	if err != nil {
		return &types.MappingParseError{Path: resourcePath, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return &types.MappingParseError{Path: resourcePath, Err: fmt.Errorf("configuration is frozen")}
	}
	if err := c.add(doc); err != nil {
		return &types.MappingParseError{Path: resourcePath, Err: err}
	}
	c.resources = append(c.resources, resourcePath)
	log.Infof("Succeed in parsing mapping resource [%s]", resourcePath)
	return nil
}

// add merges a document all-or-nothing.
func (c *Configuration) add(doc *document) error {
	for _, f := range doc.fragments {
		if _, dup := c.fragments[f.qualified()]; dup {
			return fmt.Errorf("duplicate sql fragment [%s]", f.qualified())
		}
	}
	for _, st := range doc.statements {
		if _, dup := c.statements[st.qualified()]; dup {
			return fmt.Errorf("duplicate mapped statement [%s]", st.qualified())
		}
	}
	for _, f := range doc.fragments {
		c.fragments[f.qualified()] = f
	}
	for _, st := range doc.statements {
		c.statements[st.qualified()] = st
	}
	c.namespaces[doc.namespace] = struct{}{}
	return nil
}

// Freeze resolves every fragment reference and returns the immutable
// statement set. The configuration accepts no resources afterwards.
func (c *Configuration) Freeze() (*Mappings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true

	m := &Mappings{
		statements: make(map[string]*Statement, len(c.statements)),
		short:      make(map[string][]string),
		resources:  append([]string(nil), c.resources...),
	}
	for id, d := range c.statements {
		var buf strings.Builder
		if err := c.render(&buf, d, map[string]bool{}); err != nil {
			return nil, &types.MappingParseError{Path: d.resource, Err: err}
		}
		sql, params := rewriteParams(collapseWhitespace(buf.String()))
		m.statements[id] = &Statement{
			ID:        id,
			Namespace: d.namespace,
			Name:      d.name,
			Kind:      d.kind,
			SQL:       sql,
			Params:    params,
			Resource:  d.resource,
		}
		m.short[d.name] = append(m.short[d.name], id)
	}
	for ns := range c.namespaces {
		m.namespaces = append(m.namespaces, ns)
	}
	sort.Strings(m.namespaces)
	return m, nil
}

func (c *Configuration) render(buf *strings.Builder, d *draft, visiting map[string]bool) error {
	for _, p := range d.parts {
		if p.ref == "" {
			buf.WriteString(p.text)
			continue
		}
		frag, err := c.lookupFragment(d.namespace, p.ref)
		if err != nil {
			return fmt.Errorf("statement [%s]: %w", d.qualified(), err)
		}
		key := frag.qualified()
		if visiting[key] {
			return fmt.Errorf("circular sql fragment reference [%s]", key)
		}
		visiting[key] = true
		buf.WriteByte(' ')
		if err := c.render(buf, frag, visiting); err != nil {
			return err
		}
		buf.WriteByte(' ')
		delete(visiting, key)
	}
	return nil
}

// lookupFragment resolves a refid within the namespace first, then as a
// qualified id.
func (c *Configuration) lookupFragment(namespace, ref string) (*draft, error) {
	if f, ok := c.fragments[namespace+"."+ref]; ok {
		return f, nil
	}
	if f, ok := c.fragments[ref]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unresolved sql fragment [%s]", ref)
}

// document is one parsed resource before it is merged.
type document struct {
	namespace  string
	statements []*draft
	fragments  []*draft
}

func (doc *document) addStatement(name string, kind Kind, parts []part, resource string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s statement without id", kind)
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("statement id [%s] must not contain '.'", name)
	}
	if !kind.Valid() {
		return fmt.Errorf("statement [%s] has unknown kind %q", name, kind)
	}
	for _, st := range doc.statements {
		if st.name == name {
			return fmt.Errorf("duplicate mapped statement [%s.%s]", doc.namespace, name)
		}
	}
	doc.statements = append(doc.statements, &draft{namespace: doc.namespace, name: name, kind: kind, parts: parts, resource: resource})
	return nil
}

func (doc *document) addFragment(name string, parts []part, resource string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("sql fragment without id")
	}
	for _, f := range doc.fragments {
		if f.name == name {
			return fmt.Errorf("duplicate sql fragment [%s.%s]", doc.namespace, name)
		}
	}
	doc.fragments = append(doc.fragments, &draft{namespace: doc.namespace, name: name, parts: parts, resource: resource})
	return nil
}

func isXML(resourcePath string, data []byte) bool {
	switch strings.ToLower(path.Ext(resourcePath)) {
	case ".xml":
		return true
	case ".yaml", ".yml":
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			return strings.HasPrefix(line, "<")
		}
	}
	return false
}
