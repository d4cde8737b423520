package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
)

// project applies the JMESPath expression in the "query" parameter to v.
// Without a query v is returned unchanged; a query that matches nothing
// yields nil.
func project(r *http.Request, v any) (any, error) {
	expression := r.URL.Query().Get("query")
	if expression == "" {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	out, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return out, nil
}
