package denoloader

import (
	"net/url"
	"sort"
	"strings"
)

// ImportMap resolves specifiers through an import map
type ImportMap struct {
	imports specifierMap
	scopes  []scope
}

type specifierMap []mapping

type mapping struct {
	key    string
	target string
}

type scope struct {
	prefix  string
	imports specifierMap
}

// NewImportMap normalises keys and targets against base
func NewImportMap(base *url.URL, imports map[string]string, scopes map[string]map[string]string) *ImportMap {
	m := &ImportMap{imports: normalizeMap(base, imports)}
	for prefix, entries := range scopes {
		m.scopes = append(m.scopes, scope{
			prefix:  resolveAgainst(base, prefix),
			imports: normalizeMap(base, entries),
		})
	}
	// most specific scope first
	sort.Slice(m.scopes, func(i, j int) bool {
		return len(m.scopes[i].prefix) > len(m.scopes[j].prefix)
	})
	return m
}

// Resolve maps specifier for a module imported from referrer. It reports
// false when no entry applies.
func (m *ImportMap) Resolve(specifier string, referrer *url.URL) (string, bool) {
	if m == nil {
		return "", false
	}

	normalized := specifier
	if isRelative(specifier) && referrer != nil {
		normalized = referrer.ResolveReference(mustParse(specifier)).String()
	}

	if referrer != nil {
		ref := referrer.String()
		for _, s := range m.scopes {
			if strings.HasPrefix(ref, s.prefix) {
				if target, ok := s.imports.lookup(normalized); ok {
					return target, true
				}
			}
		}
	}
	return m.imports.lookup(normalized)
}

// lookup tries an exact key, then the longest key ending in "/" that
// prefixes the specifier.
func (sm specifierMap) lookup(spec string) (string, bool) {
	for _, e := range sm {
		if e.key == spec {
			return e.target, true
		}
	}
	for _, e := range sm {
		if strings.HasSuffix(e.key, "/") && strings.HasPrefix(spec, e.key) {
			return e.target + strings.TrimPrefix(spec, e.key), true
		}
	}
	return "", false
}

func normalizeMap(base *url.URL, entries map[string]string) specifierMap {
	sm := make(specifierMap, 0, len(entries))
	for key, target := range entries {
		sm = append(sm, mapping{
			key:    resolveAgainst(base, key),
			target: resolveAgainst(base, target),
		})
	}
	// longest keys first so prefix matches pick the most specific entry
	sort.Slice(sm, func(i, j int) bool {
		if len(sm[i].key) != len(sm[j].key) {
			return len(sm[i].key) > len(sm[j].key)
		}
		return sm[i].key < sm[j].key
	})
	return sm
}

// resolveAgainst resolves relative specifiers against base and leaves bare
// and absolute ones alone.
func resolveAgainst(base *url.URL, spec string) string {
	if isRelative(spec) && base != nil {
		return base.ResolveReference(mustParse(spec)).String()
	}
	return spec
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || strings.HasPrefix(spec, "/")
}

func mustParse(spec string) *url.URL {
	u, err := url.Parse(spec)
	if err != nil {
		return &url.URL{Path: spec}
	}
	return u
}
