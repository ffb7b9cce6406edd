package imacros

import (
	"strings"
	"testing"
)

func TestParseCommandCount(t *testing.T) {
	text := "' a comment\nURL GOTO=http://example.com\n\nTAG POS=1 TYPE=INPUT ATTR:ID=q\n' trailing comment\n"
	macro := NewParser().Parse(text)
	if len(macro.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(macro.Commands))
	}
	if macro.Commands[0].Type != KindURL {
		t.Errorf("expected first command KindURL, got %s", macro.Commands[0].Type)
	}
	if macro.Commands[1].Type != KindTag {
		t.Errorf("expected second command KindTag, got %s", macro.Commands[1].Type)
	}
}

func TestParseLineNumbersPreserved(t *testing.T) {
	text := "URL GOTO=http://a\n\nURL GOTO=http://b\n'comment\nURL GOTO=http://c\n"
	macro := NewParser().Parse(text)
	want := []int{1, 3, 5}
	if len(macro.Commands) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(macro.Commands))
	}
	for i, cmd := range macro.Commands {
		if cmd.LineNumber != want[i] {
			t.Errorf("command %d: expected line %d, got %d", i, want[i], cmd.LineNumber)
		}
	}
}

func TestParseBOMStrippedIsIdentical(t *testing.T) {
	plain := "URL GOTO=http://example.com\n"
	withBOM := bom + plain

	a := NewParser().Parse(plain)
	b := NewParser().Parse(withBOM)

	if len(a.Commands) != 1 || len(b.Commands) != 1 {
		t.Fatalf("expected exactly one command in each parse")
	}
	if a.Commands[0].Raw != b.Commands[0].Raw {
		t.Errorf("BOM-prefixed parse differs from plain parse: %q vs %q", b.Commands[0].Raw, a.Commands[0].Raw)
	}
}

func TestParseIdempotentRoundTrip(t *testing.T) {
	text := "TAG POS=1 TYPE=INPUT:TEXT ATTR:ID=username CONTENT=\"John Doe\"\n"
	first := NewParser().Parse(text)
	second := NewParser().Parse(first.Commands[0].Raw)

	if len(first.Commands) != len(second.Commands) {
		t.Fatalf("expected the same command count across re-parses")
	}
	for i := range first.Commands {
		if first.Commands[i].Raw != second.Commands[i].Raw {
			t.Errorf("command %d: raw text differs across re-parses", i)
		}
		if len(first.Commands[i].Parameters) != len(second.Commands[i].Parameters) {
			t.Errorf("command %d: parameter count differs across re-parses", i)
		}
	}
}

func TestParseQuotedValueWithSpaces(t *testing.T) {
	text := `TAG POS=1 TYPE=INPUT:TEXT ATTR:ID=username CONTENT="John Doe"`
	macro := NewParser().Parse(text)
	cmd := macro.Commands[0]
	content, ok := cmd.GetParam("CONTENT")
	if !ok {
		t.Fatalf("expected CONTENT parameter")
	}
	if content != "John Doe" {
		t.Errorf("expected %q, got %q", "John Doe", content)
	}
}

func TestParseColonAttrParam(t *testing.T) {
	text := `TAG POS=1 TYPE=INPUT:TEXT ATTR:ID=username`
	macro := NewParser().Parse(text)
	cmd := macro.Commands[0]
	value, ok := cmd.GetParam("ATTR:ID")
	if !ok {
		t.Fatalf("expected ATTR:ID parameter")
	}
	if value != "username" {
		t.Errorf("expected %q, got %q", "username", value)
	}
}

func TestParseVariableReferenceCollected(t *testing.T) {
	text := "SET myvar {{!EXTRACT}}\n"
	macro := NewParser().Parse(text)
	if len(macro.Variables) != 1 {
		t.Fatalf("expected 1 variable reference, got %d", len(macro.Variables))
	}
	if macro.Variables[0].Name != "!EXTRACT" {
		t.Errorf("expected !EXTRACT, got %s", macro.Variables[0].Name)
	}
}

func TestParseVersionLineSetsMacroVersion(t *testing.T) {
	macro := NewParser().Parse("VERSION BUILD=12.0\nURL GOTO=http://example.com\n")
	if macro.Version != "12.0" {
		t.Errorf("expected version %q, got %q", "12.0", macro.Version)
	}
}

func TestParseUnknownCommandTaggedButKept(t *testing.T) {
	macro := NewParser().Parse("FROBNICATE X=1\n")
	if len(macro.Commands) != 1 {
		t.Fatalf("expected the unknown command to still parse")
	}
	if macro.Commands[0].Type != KindUnknown {
		t.Errorf("expected KindUnknown, got %s", macro.Commands[0].Type)
	}
	found := false
	for _, d := range macro.Errors {
		if strings.Contains(d.Message, "unknown command") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an unknown-command diagnostic")
	}
}

func TestValidateCommandDiagnostics(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"url missing goto", "URL", "GOTO or the CURRENT flag"},
		{"tab no selector", "TAB", "exactly one of"},
		{"frame missing", "FRAME", "F=<n> or NAME"},
		{"tag missing selector", "TAG", "XPATH, CSS, or TYPE"},
		{"wait missing seconds", "WAIT", "SECONDS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			macro := NewParser().Parse(tc.line + "\n")
			if len(macro.Errors) == 0 {
				t.Fatalf("expected a diagnostic for %q", tc.line)
			}
			if !strings.Contains(macro.Errors[0].Message, tc.want) {
				t.Errorf("expected diagnostic to mention %q, got %q", tc.want, macro.Errors[0].Message)
			}
		})
	}
}
