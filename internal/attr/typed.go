package attr

import "strings"

// Int reads an integer attribute. Any Go integer kind is accepted.
func Int(src Source, name string) (int, bool) {
	v, ok := Get(src, name)
	if !ok {
		return 0, false
	}
	n, ok := toInt64(v)
	return int(n), ok
}

// Int64 reads an integer attribute as int64.
func Int64(src Source, name string) (int64, bool) {
	v, ok := Get(src, name)
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

// Bool reads a boolean attribute.
func Bool(src Source, name string) (bool, bool) {
	v, ok := Get(src, name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// String reads a string attribute. Values implementing fmt.Stringer are
// rendered with String.
func String(src Source, name string) (string, bool) {
	v, ok := Get(src, name)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case interface{ String() string }:
		return s.String(), true
	}
	return "", false
}

// Strings reads a string array attribute.
func Strings(src Source, name string) ([]string, bool) {
	v, ok := Get(src, name)
	if !ok {
		return nil, false
	}
	s, ok := v.([]string)
	return s, ok
}

// Sub reads a nested record attribute.
func Sub(src Source, name string) (Source, bool) {
	v, ok := Get(src, name)
	if !ok || v == nil {
		return nil, false
	}
	s, ok := v.(Source)
	if !ok {
		return nil, false
	}
	if r, isRecord := s.(*Record); isRecord && r == nil {
		return nil, false
	}
	return s, true
}

// Path reads a dotted path such as "windowConfiguration.mActivityType",
// descending through nested records.
func Path(src Source, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := src
	for i, part := range parts {
		if i == len(parts)-1 {
			return Get(cur, part)
		}
		next, ok := Sub(cur, part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
