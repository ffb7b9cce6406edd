package imacros

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// reservedVariables is the closed set of names with engine-controlled
// semantics. Those outside writeThroughVariables cannot be overwritten
// via the user-facing Set path; only SetPrivileged (used internally by
// the executor and handlers) may change them.
var reservedVariables = map[string]bool{
	"!URLCURRENT":           true,
	"!DOCUMENT_TITLE":       true,
	"!LOOP":                 true,
	"!VERSION":              true,
	"!PLATFORM":             true,
	"!EXTRACT":              true,
	"!CMDLINE_EXITCODE":     true,
	"!CMDLINE_STDOUT":       true,
	"!CMDLINE_STDERR":       true,
	"!LOGIN_USER":           true,
	"!LOGIN_PASSWORD":       true,
	"!TIMEOUT":              true,
	"!TIMEOUT_TAG":          true,
	"!TIMEOUT_STEP":         true,
	"!ERRORIGNORE":          true,
	"!ERRORLOOP":            true,
	"!ENCRYPTION":           true,
	"!DATASOURCE":           true,
	"!DATASOURCE_LINE":      true,
	"!FILE_PROFILER":        true,
	"!FOLDER_DATASOURCE":    true,
	"!DIALOG_POS":           true,
	"!DIALOG_BUTTON":        true,
	"!DIALOG_CONTENT":       true,
	"!CERTIFICATE_BUTTON":   true,
}

// writeThroughVariables is the subset of reservedVariables that macros
// are expected to set directly (timeout/error-control/datasource
// directives). Every other reserved name stays read-only on the user
// path.
var writeThroughVariables = map[string]bool{
	"!TIMEOUT":           true,
	"!TIMEOUT_TAG":       true,
	"!TIMEOUT_STEP":      true,
	"!ERRORIGNORE":       true,
	"!ERRORLOOP":         true,
	"!ENCRYPTION":        true,
	"!DATASOURCE":        true,
	"!DATASOURCE_LINE":   true,
	"!FILE_PROFILER":     true,
	"!FOLDER_DATASOURCE": true,
}

func isStopwatchVariable(name string) bool {
	return strings.HasPrefix(name, "!STOPWATCH")
}

// SetOutcome describes what happened when a value was written.
type SetOutcome struct {
	Success       bool
	Reason        string
	PreviousValue interface{}
	NewValue      interface{}
}

// VariableStore holds named values (string, number, or bool) with
// read-only protection for the reserved name set and {{NAME}}
// expansion.
type VariableStore struct {
	mu     sync.RWMutex
	values map[string]interface{}
	now    func() time.Time
}

// NewVariableStore creates an empty store.
func NewVariableStore() *VariableStore {
	return &VariableStore{
		values: make(map[string]interface{}),
		now:    time.Now,
	}
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Get returns a variable's value, case-insensitively.
func (s *VariableStore) Get(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[normalizeName(name)]
	return v, ok
}

// GetString returns a variable's value rendered as a string.
func (s *VariableStore) GetString(name string) string {
	v, ok := s.Get(name)
	if !ok {
		return ""
	}
	return stringify(v)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		if t {
			return "YES"
		}
		return "NO"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Set writes a user-facing variable. Reserved names outside the
// write-through set are rejected (Success=false, Reason="read-only")
// and left unmodified; stopwatch variables are always read-only on
// this path since STOPWATCH owns them.
func (s *VariableStore) Set(name string, value interface{}) SetOutcome {
	key := normalizeName(name)
	if (reservedVariables[key] && !writeThroughVariables[key]) || isStopwatchVariable(key) {
		s.mu.RLock()
		prev := s.values[key]
		s.mu.RUnlock()
		return SetOutcome{Success: false, Reason: "read-only", PreviousValue: prev}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.values[key]
	s.values[key] = value
	return SetOutcome{Success: true, PreviousValue: prev, NewValue: value}
}

// SetPrivileged writes any variable, bypassing the read-only check.
// Used by the executor itself (e.g. !URLCURRENT, !LOOP) and by
// handlers that are permitted to update system variables directly.
func (s *VariableStore) SetPrivileged(name string, value interface{}) {
	key := normalizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// SetVariable is a synonym for Set used by handlers for plain
// (non-reserved) writes.
func (s *VariableStore) SetVariable(name string, value interface{}) SetOutcome {
	return s.Set(name, value)
}

// SetURL is the privileged path the executor uses to update
// !URLCURRENT after a successful navigation.
func (s *VariableStore) SetURL(url string) {
	s.SetPrivileged("!URLCURRENT", url)
}

// Snapshot returns a copy of all stored variables.
func (s *VariableStore) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Expand replaces every {{NAME}} in text with the variable's current
// value (undefined names expand to empty string) and interprets
// !NOW:<format> tokens. Expansion is one-pass: no {{…}} inside an
// already-expanded value is re-expanded.
func (s *VariableStore) Expand(text string) (string, []VariableReference) {
	var refs []VariableReference
	var out strings.Builder
	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], "{{") {
			end := strings.Index(text[i+2:], "}}")
			if end >= 0 {
				name := text[i+2 : i+2+end]
				refs = append(refs, VariableReference{Name: name})
				out.WriteString(s.resolveExpansion(name))
				i = i + 2 + end + 2
				continue
			}
		}
		out.WriteByte(text[i])
		i++
	}
	return out.String(), refs
}

func (s *VariableStore) resolveExpansion(name string) string {
	if strings.HasPrefix(strings.ToUpper(name), "!NOW:") {
		return s.renderNow(name[5:])
	}
	return s.GetString(name)
}

// renderNow renders the current local time using a strftime-like
// pattern built from { yyyy, mm, dd, hh, nn, ss } tokens.
func (s *VariableStore) renderNow(format string) string {
	t := s.now()
	replacer := strings.NewReplacer(
		"yyyy", fmt.Sprintf("%04d", t.Year()),
		"mm", fmt.Sprintf("%02d", int(t.Month())),
		"dd", fmt.Sprintf("%02d", t.Day()),
		"hh", fmt.Sprintf("%02d", t.Hour()),
		"nn", fmt.Sprintf("%02d", t.Minute()),
		"ss", fmt.Sprintf("%02d", t.Second()),
	)
	return replacer.Replace(format)
}

// ParseSeconds parses a numeric or numeric-string timeout value,
// returning ok=false on an invalid value so the caller can fall back
// to a documented default.
func ParseSeconds(value interface{}) (float64, bool) {
	switch t := value.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
