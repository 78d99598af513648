// Package smartcode parses and validates the dotted, versioned taxonomy
// codes stamped on every entity, relationship, transaction and line.
//
// Grammar: HERA.<DOMAIN>.<CATEGORY>.<TYPE>[.<SUBTYPE>...].v<N>
// Segments are case-sensitive; the version tag is a lowercase 'v' followed
// by a positive integer.
package smartcode

import (
	"fmt"
	"strconv"
	"strings"
)

// Root is the fixed leading token every smart code must carry.
const Root = "HERA"

// minSegments is ROOT + DOMAIN + CATEGORY + TYPE + version.
const minSegments = 5

// Code is a parsed smart code.
type Code struct {
	Domain   string
	Category string
	Type     string
	Subtypes []string
	Version  int
}

// ParseError describes why a smart code was rejected, naming the
// offending segment where one exists.
type ParseError struct {
	Code    string
	Segment string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("invalid smart code %q: segment %q: %s", e.Code, e.Segment, e.Reason)
	}
	return fmt.Sprintf("invalid smart code %q: %s", e.Code, e.Reason)
}

// Parse validates raw against the smart code grammar and returns its parts.
func Parse(raw string) (Code, error) {
	segments := strings.Split(raw, ".")
	if len(segments) < minSegments {
		return Code{}, &ParseError{Code: raw, Reason: fmt.Sprintf("expected at least %d segments, got %d", minSegments, len(segments))}
	}

	for _, seg := range segments {
		if seg == "" {
			return Code{}, &ParseError{Code: raw, Segment: seg, Reason: "empty segment"}
		}
	}

	if segments[0] != Root {
		return Code{}, &ParseError{Code: raw, Segment: segments[0], Reason: fmt.Sprintf("root must be %q", Root)}
	}

	version, err := parseVersion(segments[len(segments)-1])
	if err != nil {
		return Code{}, &ParseError{Code: raw, Segment: segments[len(segments)-1], Reason: err.Error()}
	}

	return Code{
		Domain:   segments[1],
		Category: segments[2],
		Type:     segments[3],
		Subtypes: segments[4 : len(segments)-1],
		Version:  version,
	}, nil
}

// Valid reports whether raw is a well-formed smart code.
func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

func parseVersion(seg string) (int, error) {
	if !strings.HasPrefix(seg, "v") {
		return 0, fmt.Errorf("version must start with lowercase 'v'")
	}
	n, err := strconv.Atoi(seg[1:])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("version must be 'v' followed by a positive integer")
	}
	return n, nil
}

// String reassembles the canonical dotted form.
func (c Code) String() string {
	segments := append([]string{Root, c.Domain, c.Category, c.Type}, c.Subtypes...)
	segments = append(segments, "v"+strconv.Itoa(c.Version))
	return strings.Join(segments, ".")
}

// financialMarkers are segment tokens that mark a transaction as subject
// to the debit/credit balance check.
var financialMarkers = map[string]bool{
	"GL":      true,
	"FIN":     true,
	"FINANCE": true,
	"JOURNAL": true,
	"POSTING": true,
}

// IsFinancial reports whether any segment marks the code as a financial
// journal type whose lines must balance.
func (c Code) IsFinancial() bool {
	if financialMarkers[c.Domain] || financialMarkers[c.Category] || financialMarkers[c.Type] {
		return true
	}
	for _, s := range c.Subtypes {
		if financialMarkers[s] {
			return true
		}
	}
	return false
}

// SameDomain reports whether both codes share the same DOMAIN segment.
// Dynamic data attached to an entity must stay in the entity's domain.
func (c Code) SameDomain(other Code) bool {
	return c.Domain == other.Domain
}
