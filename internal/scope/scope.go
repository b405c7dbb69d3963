// Package scope parses and evaluates capability scope patterns of the form
// resource.identifier.permission. The engine is purely syntactic: it answers
// whether a granted pattern covers a required one and knows nothing about the
// entities behind the identifiers. Domain policy (such as whether a tool is
// actually safe) is composed by the caller.
package scope

import (
	"strings"
)

// Resources enumerates the resource types a pattern may name.
var Resources = map[string]struct{}{
	"chat":      {},
	"tools":     {},
	"memory":    {},
	"resources": {},
	"pay":       {},
}

// Permissions enumerates the recognised permission segments.
var Permissions = map[string]struct{}{
	"read":    {},
	"write":   {},
	"execute": {},
	"list":    {},
	"safe":    {},
	"*":       {},
}

// IDKind discriminates the identifier slot of a parsed pattern.
type IDKind int

const (
	// IDLiteral names one identifier; the empty string is a valid literal
	// (the resource..perm form, "this permission across all identifiers").
	IDLiteral IDKind = iota
	// IDAll is the wildcard identifier segment (resource.*.perm).
	IDAll
	// IDGlobal marks the two-segment form resource.perm, where no
	// identifier slot exists at all.
	IDGlobal
)

// PermKind discriminates the permission slot of a parsed pattern.
type PermKind int

const (
	// PermLiteral names one permission.
	PermLiteral PermKind = iota
	// PermAll is the wildcard permission segment.
	PermAll
	// PermNone marks a pattern whose permission slot is absent.
	PermNone
)

// Pattern is the parsed, tagged form of a scope string. The wire format stays
// string-based at the boundary; evaluation works on this structure.
type Pattern struct {
	Resource string
	IDKind   IDKind
	ID       string
	PermKind PermKind
	Perm     string
	raw      string
}

// Parse converts a scope string into its tagged form. Parsing is permissive:
// unknown resources or permissions still parse so that evaluation can reject
// them by simple non-match. Use IsValidPattern for strict diagnostics.
func Parse(s string) Pattern {
	s = strings.TrimSpace(s)
	p := Pattern{raw: s}
	segments := strings.Split(s, ".")
	switch len(segments) {
	case 1:
		p.Resource = segments[0]
		p.IDKind = IDGlobal
		p.PermKind = PermNone
	case 2:
		p.Resource = segments[0]
		p.IDKind = IDGlobal
		if segments[1] == "*" {
			p.PermKind = PermAll
		} else {
			p.PermKind = PermLiteral
			p.Perm = segments[1]
		}
	default:
		p.Resource = segments[0]
		if segments[1] == "*" {
			p.IDKind = IDAll
		} else {
			p.IDKind = IDLiteral
			p.ID = segments[1]
		}
		perm := strings.Join(segments[2:], ".")
		if perm == "*" {
			p.PermKind = PermAll
		} else {
			p.PermKind = PermLiteral
			p.Perm = perm
		}
	}
	return p
}

// String returns the original wire form.
func (p Pattern) String() string { return p.raw }

// FormatScope builds the canonical three-segment required-scope string.
// An empty id yields the resource..perm form.
func FormatScope(resource, id, perm string) string {
	return resource + "." + id + "." + perm
}

// FormatGlobal builds the two-segment resource.perm required-scope string.
func FormatGlobal(resource, perm string) string {
	return resource + "." + perm
}

// CheckPermission reports whether the comma-separated grant list satisfies
// required. An empty grant list denies everything.
func CheckPermission(required, grants string) bool {
	if strings.TrimSpace(grants) == "" {
		return false
	}
	req := Parse(required)
	for _, raw := range strings.Split(grants, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if raw == strings.TrimSpace(required) {
			return true
		}
		if Parse(raw).covers(req) {
			return true
		}
	}
	return false
}

// covers implements the evaluation rules over tagged patterns:
//
//  1. exact match (handled by the caller on raw strings)
//  2. resource.* covers everything under resource
//  3. resource.id.* covers resource.id.anyperm
//  4. resource.perm covers resource.anyid.perm
//  5. resource..perm covers resource.anyid.perm (empty-identifier form,
//     an independent rule from 4)
//
// No other combination grants.
func (g Pattern) covers(req Pattern) bool {
	if g.Resource == "" || g.Resource != req.Resource {
		return false
	}
	// Rule 2: top-level wildcard.
	if g.IDKind == IDGlobal && g.PermKind == PermAll {
		return true
	}
	// Rule 3: per-identifier wildcard permission.
	if g.IDKind == IDLiteral && g.PermKind == PermAll {
		return req.IDKind == IDLiteral && req.ID == g.ID
	}
	// Rule 4: two-segment global permission.
	if g.IDKind == IDGlobal && g.PermKind == PermLiteral {
		return req.PermKind == PermLiteral && req.Perm == g.Perm
	}
	// Rule 5: empty-identifier permission.
	if g.IDKind == IDLiteral && g.ID == "" && g.PermKind == PermLiteral {
		return req.PermKind == PermLiteral && req.Perm == g.Perm
	}
	return false
}

// SafeToolGrant reports whether the grant list contains a tools.safe.* or
// tools.safe.<toolID> pattern covering toolID. This is only the string half
// of the safe-tool carve-out; callers must independently confirm the tool is
// marked safe before treating the grant as execute permission.
func SafeToolGrant(toolID, grants string) bool {
	if strings.TrimSpace(grants) == "" {
		return false
	}
	for _, raw := range strings.Split(grants, ",") {
		p := Parse(strings.TrimSpace(raw))
		if p.Resource != "tools" || p.IDKind != IDLiteral || p.ID != "safe" {
			continue
		}
		if p.PermKind == PermAll {
			return true
		}
		if p.PermKind == PermLiteral && p.Perm == toolID {
			return true
		}
	}
	return false
}

// IsValidPattern strictly validates a scope string. It is a diagnostic only;
// evaluation never consults it.
func IsValidPattern(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	segments := strings.Split(s, ".")
	if len(segments) < 1 || len(segments) > 3 {
		return false
	}
	if _, ok := Resources[segments[0]]; !ok {
		return false
	}
	for _, seg := range segments[1:] {
		if !validSegment(seg) {
			return false
		}
	}
	if len(segments) == 3 {
		last := segments[2]
		if _, ok := Permissions[last]; ok {
			return true
		}
		// tools.safe.<toolID> carries a tool id in the permission slot.
		return segments[0] == "tools" && segments[1] == "safe" && last != ""
	}
	return true
}

func validSegment(seg string) bool {
	if seg == "" || seg == "*" {
		return true
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
