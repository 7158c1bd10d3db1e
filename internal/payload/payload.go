// Package payload resolves the loosely typed request fields that accept more
// than one shape into a single normalized form.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Error reports a malformed field. Handlers surface it as a 400.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string { return e.Msg }

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// kind tells which alternative of a union was supplied.
type kind int

const (
	kindAbsent kind = iota
	kindList
	kindString
)

// jsonKind classifies raw JSON by its first significant byte.
func jsonKind(raw json.RawMessage) (kind, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return kindAbsent, true
	}
	switch trimmed[0] {
	case '[':
		return kindList, true
	case '"':
		return kindString, true
	}
	return kindAbsent, false
}
