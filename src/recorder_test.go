package imacros

import (
	"strings"
	"testing"
)

func TestRecorderChangeEventRoundTrip(t *testing.T) {
	store := NewVariableStore()
	rec := NewRecorder(store)
	rec.Start()

	rec.HandleChange(DOMElement{
		TagName: "INPUT",
		Type:    "text",
		ID:      "username",
		Name:    "username",
	}, "John Doe", 100)

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(events))
	}

	line := renderLine(events[0])
	macro := NewParser().Parse(line)
	if len(macro.Commands) != 1 {
		t.Fatalf("expected the recorded line to parse to one command, got %d", len(macro.Commands))
	}
	cmd := macro.Commands[0]
	if cmd.Type != KindTag {
		t.Fatalf("expected a TAG command, got %s", cmd.Type)
	}
	if got, _ := cmd.GetParam("TYPE"); got != "INPUT:TEXT" {
		t.Errorf("expected TYPE=INPUT:TEXT, got %q", got)
	}
	if got, _ := cmd.GetParam("ATTR:ID"); got != "username" {
		t.Errorf("expected ATTR:ID=username, got %q", got)
	}
	if got, _ := cmd.GetParam("CONTENT"); got != "John Doe" {
		t.Errorf("expected CONTENT %q (quoted, preserving the space), got %q", "John Doe", got)
	}
}

func TestRecorderSkipsClicksOnTextInputs(t *testing.T) {
	rec := NewRecorder(NewVariableStore())
	rec.Start()

	rec.HandleClick(DOMElement{TagName: "INPUT", Type: "text"}, 10)
	rec.HandleClick(DOMElement{TagName: "INPUT", Type: "checkbox", ID: "agree"}, 20)

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("expected only the checkbox click to be recorded, got %d events", len(events))
	}
	if events[0].Element.ID != "agree" {
		t.Errorf("expected the checkbox click, got %+v", events[0].Element)
	}
}

func TestRecorderSelectorPreference(t *testing.T) {
	cases := []struct {
		name    string
		el      DOMElement
		wantKey string
		wantVal string
	}{
		{"id wins", DOMElement{TagName: "A", ID: "x", Name: "n", Href: "/h", Class: "c"}, "ID", "x"},
		{"name next", DOMElement{TagName: "A", Name: "n", Href: "/h", Class: "c"}, "NAME", "n"},
		{"href for anchors", DOMElement{TagName: "A", Href: "/h", Class: "c"}, "HREF", "/h"},
		{"href skipped for buttons", DOMElement{TagName: "BUTTON", Href: "/h", Class: "c"}, "CLASS", "c"},
		{"text as last resort", DOMElement{TagName: "BUTTON", Text: "Go"}, "TXT", "Go"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, value := selectorAttr(tc.el)
			if key != tc.wantKey || value != tc.wantVal {
				t.Errorf("expected %s=%s, got %s=%s", tc.wantKey, tc.wantVal, key, value)
			}
		})
	}
}

func TestRecorderTimestampsMonotonic(t *testing.T) {
	rec := NewRecorder(NewVariableStore())
	rec.Start()

	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "a"}, 100)
	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "b"}, 50)

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Timestamp < events[0].Timestamp {
		t.Errorf("expected non-decreasing timestamps, got %d then %d", events[0].Timestamp, events[1].Timestamp)
	}
}

func TestRecorderStartIdempotentStopDetaches(t *testing.T) {
	rec := NewRecorder(NewVariableStore())
	rec.Start()
	rec.Start()
	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "a"}, 1)

	rec.Stop()
	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "b"}, 2)

	if got := len(rec.Events()); got != 1 {
		t.Errorf("expected events after Stop to be dropped, got %d recorded", got)
	}
}

func TestRecorderClearEventsPreservesSubscription(t *testing.T) {
	rec := NewRecorder(NewVariableStore())
	rec.Start()
	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "a"}, 1)
	rec.ClearEvents()
	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "b"}, 2)

	events := rec.Events()
	if len(events) != 1 || events[0].Element.ID != "b" {
		t.Errorf("expected only the post-clear event, got %+v", events)
	}
}

func TestRecorderGenerateMacroHeader(t *testing.T) {
	store := NewVariableStore()
	store.SetPrivileged("!URLCURRENT", "https://example.com/form")
	rec := NewRecorder(store)
	rec.Start()
	rec.HandleChange(DOMElement{TagName: "SELECT", ID: "color", IsSelect: true}, "Red", 5)

	out := rec.GenerateMacro()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + url + 1 event line, got %d lines: %q", len(lines), out)
	}
	if lines[0] != "' iMacros Recorded Macro" {
		t.Errorf("unexpected header line %q", lines[0])
	}
	if lines[1] != "' URL: https://example.com/form" {
		t.Errorf("unexpected URL line %q", lines[1])
	}
	if !strings.Contains(lines[2], "CONTENT=%Red") {
		t.Errorf("expected the select value to carry the %% prefix, got %q", lines[2])
	}
}

func TestRecorderOnEventCallback(t *testing.T) {
	rec := NewRecorder(NewVariableStore())
	rec.Start()

	var seen []string
	rec.OnEvent(func(evt RecordedEvent) { seen = append(seen, evt.Element.ID) })

	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "a"}, 1)
	rec.HandleClick(DOMElement{TagName: "BUTTON", ID: "b"}, 2)

	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("expected the callback to observe both events in order, got %v", seen)
	}
}
