// Package photoname derives diecast metadata from an uploaded photo's object
// key. Producers name frames <prefix>_<entityId>_<position>_<sequence>.<ext>,
// e.g. "uploads/frame_3_2_006.jpg". Missing tokens never fail the parse: each
// field records whether it was present and callers substitute Default where
// a value must be sent downstream.
package photoname

import (
	"fmt"
	"strconv"
	"strings"
)

// Default is the value reported for a token the file name did not carry.
const Default = "default"

// Field is an optional string token.
type Field struct {
	Value   string
	Present bool
}

// OrDefault returns the token or Default when it is absent.
func (f Field) OrDefault() string {
	if !f.Present {
		return Default
	}
	return f.Value
}

// Metadata is everything derived from one object key.
type Metadata struct {
	Key         string
	DisplayName string
	EntityID    Field
	Position    Field

	// Sequence is valid only when SequenceErr is nil.
	Sequence    int
	SequenceErr error
}

// Parse splits key into its display name and underscore tokens.
func Parse(key string) Metadata {
	name := key
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		name = key[i+1:]
	}
	tokens := strings.Split(name, "_")

	m := Metadata{
		Key:         key,
		DisplayName: name,
		EntityID:    token(tokens, 1),
		Position:    token(tokens, 2),
	}
	m.Sequence, m.SequenceErr = sequence(tokens[len(tokens)-1])
	return m
}

func token(tokens []string, i int) Field {
	if i >= len(tokens) {
		return Field{}
	}
	return Field{Value: tokens[i], Present: true}
}

// sequence parses the text before the first '.' of the last token.
// Surrounding whitespace is ignored.
func sequence(last string) (int, error) {
	digits, _, _ := strings.Cut(last, ".")
	digits = strings.TrimSpace(digits)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("sequence %q: %w", digits, err)
	}
	return n, nil
}

// HasSequence reports whether a numeric sequence was parsed.
func (m Metadata) HasSequence() bool {
	return m.SequenceErr == nil
}

// OpensGroup reports whether this frame is the first of a group of size
// frames, i.e. (sequence-1) mod size == 0.
func (m Metadata) OpensGroup(size int) bool {
	return m.HasSequence() && size > 0 && (m.Sequence-1)%size == 0
}

// ClosesGroup reports whether this frame is the last of a group of size
// frames, i.e. sequence mod size == 0.
func (m Metadata) ClosesGroup(size int) bool {
	return m.HasSequence() && size > 0 && m.Sequence%size == 0
}
