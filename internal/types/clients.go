package types

import "sort"

// ClientSpecs is the full set of client definitions for one process, keyed by
// client id per kind.
type ClientSpecs struct {
	KV  map[string]KVClientSpec  `yaml:"kv" json:"kv"`
	SQL map[string]SQLClientSpec `yaml:"sql" json:"sql"`
}

func (c ClientSpecs) KVIDs() []string  { return sortedKeys(c.KV) }
func (c ClientSpecs) SQLIDs() []string { return sortedKeys(c.SQL) }

func (c ClientSpecs) Empty() bool {
	return len(c.KV) == 0 && len(c.SQL) == 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
