package scope_test

import (
	"testing"

	"github.com/agnt-gg/slop-sub000/internal/scope"
)

func TestCheckPermission(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		required string
		grants   string
		want     bool
	}{
		{"exact match", "chat.write", "chat.write", true},
		{"exact three segment", "chat.abc123.read", "chat.abc123.read", true},
		{"empty grants deny", "chat.write", "", false},
		{"whitespace grants deny", "chat.write", "   ", false},
		{"top level wildcard", "chat.abc123.read", "chat.*", true},
		{"top level wildcard covers write", "chat.write", "chat.*", true},
		{"wrong resource wildcard", "chat.abc123.read", "memory.*", false},
		{"resource specific wildcard", "memory.notes.write", "memory.notes.*", true},
		{"resource specific wildcard wrong id", "memory.other.write", "memory.notes.*", false},
		{"global permission form", "memory.notes.read", "memory.read", true},
		{"global permission wrong perm", "memory.notes.write", "memory.read", false},
		{"empty identifier form", "memory.notes.read", "memory..read", true},
		{"empty identifier wrong perm", "memory.notes.write", "memory..read", false},
		{"required empty identifier exact", "memory..read", "memory..read", true},
		{"required empty identifier via global", "memory..read", "memory.read", true},
		{"required empty identifier via wildcard", "memory..read", "memory.*", true},
		{"id wildcard grant has no rule", "memory.notes.read", "memory.*.read", false},
		{"comma separated list", "pay.tx1.read", "chat.write, pay.tx1.read", true},
		{"safe grant does not execute", "tools.calculator.execute", "tools.safe.*", false},
		{"exact match is syntactic even for unknown resources", "widgets.a.read", "widgets.a.read", true},
		{"malformed grant ignored", "chat.write", ",,chat.write", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := scope.CheckPermission(tc.required, tc.grants); got != tc.want {
				t.Fatalf("CheckPermission(%q, %q) = %v, want %v", tc.required, tc.grants, got, tc.want)
			}
		})
	}
}

func TestCheckPermissionMonotonicUnderWildcard(t *testing.T) {
	t.Parallel()

	required := []string{"memory.notes.read", "memory.write", "memory..read", "memory.x.execute"}
	grants := "memory.notes.read"
	for _, req := range required {
		before := scope.CheckPermission(req, grants)
		after := scope.CheckPermission(req, grants+",memory.*")
		if before && !after {
			t.Fatalf("adding memory.* revoked %q", req)
		}
		if !after {
			t.Fatalf("memory.* should grant %q", req)
		}
	}
}

func TestSafeToolGrant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		toolID string
		grants string
		want   bool
	}{
		{"safe wildcard", "calculator", "tools.safe.*", true},
		{"safe literal", "calculator", "tools.safe.calculator", true},
		{"safe other tool", "calculator", "tools.safe.greet", false},
		{"plain execute is not safe form", "calculator", "tools.calculator.execute", false},
		{"empty grants", "calculator", "", false},
		{"mixed list", "calculator", "chat.write,tools.safe.calculator", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := scope.SafeToolGrant(tc.toolID, tc.grants); got != tc.want {
				t.Fatalf("SafeToolGrant(%q, %q) = %v, want %v", tc.toolID, tc.grants, got, tc.want)
			}
		})
	}
}

func TestFormatScope(t *testing.T) {
	t.Parallel()

	if got := scope.FormatScope("memory", "notes", "read"); got != "memory.notes.read" {
		t.Fatalf("unexpected scope %q", got)
	}
	if got := scope.FormatScope("memory", "", "read"); got != "memory..read" {
		t.Fatalf("expected empty-identifier form, got %q", got)
	}
	if got := scope.FormatGlobal("chat", "write"); got != "chat.write" {
		t.Fatalf("unexpected global scope %q", got)
	}
}

func TestIsValidPattern(t *testing.T) {
	t.Parallel()

	valid := []string{
		"chat.write",
		"chat.*",
		"memory..read",
		"memory.*.read",
		"tools.safe.calculator",
		"tools.safe.*",
		"resources.doc-1.read",
		"pay",
	}
	for _, s := range valid {
		if !scope.IsValidPattern(s) {
			t.Errorf("expected %q valid", s)
		}
	}

	invalid := []string{
		"",
		"widgets.read",
		"chat.a.b.c",
		"chat.id.fly",
		"memory.no spaces.read",
	}
	for _, s := range invalid {
		if scope.IsValidPattern(s) {
			t.Errorf("expected %q invalid", s)
		}
	}
}

func TestParseShapes(t *testing.T) {
	t.Parallel()

	p := scope.Parse("memory..read")
	if p.IDKind != scope.IDLiteral || p.ID != "" || p.Perm != "read" {
		t.Fatalf("empty-identifier parse wrong: %+v", p)
	}
	q := scope.Parse("memory.read")
	if q.IDKind != scope.IDGlobal || q.Perm != "read" {
		t.Fatalf("global parse wrong: %+v", q)
	}
	if p.IDKind == q.IDKind {
		t.Fatal("empty-identifier and global forms must stay distinct shapes")
	}
}
