package resource

import (
	"bedrock/internal/ports"
	"bedrock/internal/types"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"
)

// mappingExtensions is the discovery filter applied before pattern matching.
var mappingExtensions = map[string]struct{}{
	".xml":  {},
	".yaml": {},
	".yml":  {},
}

// schemePrefix matches location prefixes such as "classpath*:" or "file:".
var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*\*?:`)

// Descriptor is one discovered mapping resource.
type Descriptor struct {
	Path   string
	source ports.ResourceSource
}

func (d Descriptor) Open(ctx context.Context) (io.ReadCloser, error) {
	if d.source == nil {
		return nil, fmt.Errorf("resource [%s] has no source", d.Path)
	}
	return d.source.Open(ctx, d.Path)
}

// NewDescriptor binds a path to the source able to open it.
func NewDescriptor(p string, source ports.ResourceSource) Descriptor {
	return Descriptor{Path: p, source: source}
}

// Resolver discovers mapping resources of one source.
type Resolver struct {
	source ports.ResourceSource
}

func NewResolver(source ports.ResourceSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve enumerates every root and keeps the mapping resources whose path is
// accepted by at least one pattern. An empty pattern list yields an empty
// result without touching the source. The result is de-duplicated and sorted.
func (r *Resolver) Resolve(ctx context.Context, roots, patterns []string) ([]Descriptor, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	matchers, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []Descriptor
	for _, root := range roots {
		root = NormalizeRoot(root)
		ids, err := r.source.Enumerate(ctx, root)
		if err != nil {
			return nil, &types.ResourceDiscoveryError{Root: root, Err: err}
		}
		for _, id := range ids {
			if !IsMappingResource(id) {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			if !matchAny(matchers, id) {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, Descriptor{Path: id, source: r.source})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	log.WithFields(log.Fields{"roots": roots, "patterns": patterns, "found": len(out)}).Debug("resolved mapping resources")
	return out, nil
}

// IsMappingResource reports whether the identifier carries a mapping file extension.
func IsMappingResource(id string) bool {
	_, ok := mappingExtensions[strings.ToLower(path.Ext(id))]
	return ok
}

// packageName matches dotted package notation such as com.acme.mappers.
var packageName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)+$`)

// NormalizeRoot turns a root into a slash path relative to the source.
// "", "." and "/" all denote the whole source; a package name without any
// slash maps to its directory (com.acme.mappers is com/acme/mappers).
func NormalizeRoot(root string) string {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root == "" || root == "." {
		return "."
	}
	if packageName.MatchString(root) {
		root = strings.ReplaceAll(root, ".", "/")
	}
	return path.Clean(root)
}

func compilePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		compiled := CompilePattern(p)
		if compiled == "" || !doublestar.ValidatePattern(compiled) {
			return nil, &types.ResourceDiscoveryError{
				Root: p,
				Err:  fmt.Errorf("invalid location pattern %q", p),
			}
		}
		out = append(out, compiled)
	}
	return out, nil
}

// CompilePattern strips any scheme prefix and leading slash from a location.
func CompilePattern(p string) string {
	p = strings.TrimSpace(p)
	p = schemePrefix.ReplaceAllString(p, "")
	return strings.TrimLeft(p, "/")
}

func matchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		// patterns are validated up front
		if ok, _ := doublestar.Match(p, id); ok {
			return true
		}
	}
	return false
}
