// Package headers names the cluster identity headers and captures them
// from inbound requests.
package headers

import (
	"net/http"
	"sort"
	"strings"
)

// Identity headers injected by the cluster gateway.
const (
	UserID          = "miauserid"
	UserGroups      = "miausergroups"
	ClientType      = "miaclienttype"
	ClientTypeAlias = "client-type"
	RequestID       = "x-request-id"
)

// Known returns the identity header names in declaration order.
func Known() []string {
	return []string{UserID, UserGroups, ClientType, ClientTypeAlias, RequestID}
}

// Normalize maps a header name to its canonical form: lowercase, with
// underscores rewritten to hyphens.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Set is an immutable snapshot of a request's headers keyed by
// normalized name.
type Set struct {
	keys   []string
	values map[string]string
}

// FromHTTP captures h. Multiple values for one name are joined with ", ".
func FromHTTP(h http.Header) Set {
	s := Set{values: make(map[string]string, len(h))}
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	// http.Header has no order; sort for a stable snapshot
	sort.Strings(names)
	for _, k := range names {
		s.add(Normalize(k), strings.Join(h[k], ", "))
	}
	return s
}

// FromMap builds a Set from literal pairs, mostly for tests and tools.
func FromMap(m map[string]string) Set {
	s := Set{values: make(map[string]string, len(m))}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		s.add(Normalize(k), m[k])
	}
	return s
}

func (s *Set) add(k, v string) {
	if k == "" {
		return
	}
	if prev, ok := s.values[k]; ok {
		// Foo_Bar and foo-bar collapse to one name
		s.values[k] = prev + ", " + v
		return
	}
	s.keys = append(s.keys, k)
	s.values[k] = v
}

func (s Set) Get(name string) (string, bool) {
	v, ok := s.values[Normalize(name)]
	return v, ok
}

func (s Set) Len() int { return len(s.keys) }

// Keys returns a copy of the captured names in snapshot order.
func (s Set) Keys() []string { return append([]string(nil), s.keys...) }

// Subset returns the entries of s named in allow, in allow order, and the
// allow-listed names that were absent.
func (s Set) Subset(allow []string) (present [][2]string, missing []string) {
	for _, k := range allow {
		if v, ok := s.values[k]; ok {
			present = append(present, [2]string{k, v})
		} else {
			missing = append(missing, k)
		}
	}
	return present, missing
}

// ParseAllowList splits a comma separated list of header names. Entries
// are trimmed and normalized; empties and duplicates are dropped and the
// first occurrence wins.
func ParseAllowList(csv string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(csv, ",") {
		k := Normalize(part)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
