package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// entry is a log line under construction. A key written twice keeps its
// first position and its last value.
type entry struct {
	keys []string
	vals map[string]any
}

func newEntry() *entry {
	return &entry{keys: make([]string, 0, 16), vals: make(map[string]any, 16)}
}

func (e *entry) set(key string, v any) {
	if _, ok := e.vals[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.vals[key] = v
}

func (e *entry) setDefault(key string, v any) {
	if _, ok := e.vals[key]; !ok {
		e.set(key, v)
	}
}

func (e *entry) str(key string) string {
	switch v := e.vals[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// sorted returns the non-empty keys: ranked ones first, the rest by name.
func (e *entry) sorted(rank map[string]int) []string {
	keys := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		switch v := e.vals[k].(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

type encoder func(buf *bytes.Buffer, keys []string, vals map[string]any) error

func encodeJSON(buf *bytes.Buffer, keys []string, vals map[string]any) error {
	buf.WriteByte('{')
	for i, k := range keys {
		data, err := json.Marshal(vals[k])
		if err != nil {
			return fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteString("}\n")
	return nil
}

func encodeKV(buf *bytes.Buffer, keys []string, vals map[string]any) error {
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(vals[k]))
	}
	buf.WriteByte('\n')
	return nil
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
