package mapping

import (
	"regexp"
	"strings"
)

var (
	paramMarker = regexp.MustCompile(`#\{\s*([^}]*)\}`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// rewriteParams turns #{name} and #{name,jdbcType=...} markers into @name
// placeholders and reports the names in order of first appearance.
func rewriteParams(sql string) (string, []string) {
	var names []string
	seen := make(map[string]struct{})
	out := paramMarker.ReplaceAllStringFunc(sql, func(m string) string {
		inner := paramMarker.FindStringSubmatch(m)[1]
		name, _, _ := strings.Cut(inner, ",")
		name = strings.TrimSpace(name)
		if name == "" {
			return m
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return "@" + name
	})
	return out, names
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
