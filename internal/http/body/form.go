package body

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// formDepth is how many bracket levels a form key may nest.
	formDepth = 5

	// formIndexLimit is the highest numeric key that still turns an
	// object into an array.
	formIndexLimit = 20
)

func parseForm(raw string) (map[string]interface{}, error) {
	form := map[string]interface{}{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("malformed form key %q", rawKey)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("malformed form value for %q", key)
		}
		if key == "" {
			continue
		}

		root, segments := splitFormKey(key)
		form[root] = assignForm(form[root], segments, value)
	}

	for k, v := range form {
		form[k] = compactForm(v)
	}
	return form, nil
}

// splitFormKey splits a[b][] into "a" and ["b", ""]. Text past the depth
// limit or after a stray bracket is kept as one literal segment.
func splitFormKey(key string) (string, []string) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return key, nil
	}

	root, rest := key[:open], key[open:]
	var segments []string
	for len(segments) < formDepth && strings.HasPrefix(rest, "[") {
		end := strings.IndexAny(rest[1:], "[]")
		if end < 0 || rest[1+end] != ']' {
			break
		}
		segments = append(segments, rest[1:1+end])
		rest = rest[end+2:]
	}
	if len(segments) == 0 {
		return key, nil
	}
	if rest != "" {
		segments = append(segments, rest)
	}
	return root, segments
}

// assignForm stores value under segments inside cur and returns the
// updated slot. A slot that already holds a scalar becomes a list so no
// value is dropped.
func assignForm(cur interface{}, segments []string, value string) interface{} {
	if len(segments) == 0 {
		return appendFormValue(cur, value)
	}

	name, rest := segments[0], segments[1:]
	if name == "" {
		child := assignForm(nil, rest, value)
		switch v := cur.(type) {
		case nil:
			return []interface{}{child}
		case []interface{}:
			return append(v, child)
		default:
			return []interface{}{v, child}
		}
	}

	var obj map[string]interface{}
	switch v := cur.(type) {
	case map[string]interface{}:
		obj = v
	case []interface{}:
		if last, ok := v[len(v)-1].(map[string]interface{}); ok {
			obj = last
		} else {
			obj = map[string]interface{}{}
			cur = append(v, obj)
		}
	case nil:
		obj = map[string]interface{}{}
		cur = obj
	default:
		obj = map[string]interface{}{}
		cur = []interface{}{v, obj}
	}

	obj[name] = assignForm(obj[name], rest, value)
	return cur
}

func appendFormValue(cur interface{}, value string) interface{} {
	switch v := cur.(type) {
	case nil:
		return value
	case []interface{}:
		return append(v, value)
	default:
		return []interface{}{v, value}
	}
}

// compactForm turns objects keyed only by small indexes into arrays,
// ordered by index with the gaps closed.
func compactForm(v interface{}) interface{} {
	switch t := v.(type) {
	case []interface{}:
		for i := range t {
			t[i] = compactForm(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = compactForm(t[k])
		}
		indexes, ok := formIndexes(t)
		if !ok {
			return t
		}
		list := make([]interface{}, 0, len(indexes))
		for _, i := range indexes {
			list = append(list, t[strconv.Itoa(i)])
		}
		return list
	default:
		return v
	}
}

func formIndexes(obj map[string]interface{}) ([]int, bool) {
	if len(obj) == 0 {
		return nil, false
	}
	indexes := make([]int, 0, len(obj))
	for k := range obj {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i > formIndexLimit || strconv.Itoa(i) != k {
			return nil, false
		}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes, true
}
