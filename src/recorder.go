package imacros

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// textLikeInputTypes are the input types whose clicks are skipped
// because the subsequent change event already captures the edit.
var textLikeInputTypes = map[string]bool{
	"text": true, "password": true, "email": true, "number": true,
	"tel": true, "url": true, "search": true, "textarea": true,
}

// DOMElement is the minimal element description the recorder needs:
// enough to build a TAG selector and a content value.
type DOMElement struct {
	TagName  string
	Type     string // input type, lower-case
	ID       string
	Name     string
	Class    string
	Href     string
	Text     string
	IsSelect bool
}

// RecordedEvent is one captured DOM event, ready to render as a TAG
// command line.
type RecordedEvent struct {
	ID        string
	Kind      string // "click" or "change"
	Element   DOMElement
	Value     string
	Timestamp int64
}

// Recorder subscribes to DOM click/change events and accumulates
// equivalent TAG commands in chronological order.
type Recorder struct {
	mu        sync.Mutex
	store     *VariableStore
	running   bool
	events    []RecordedEvent
	lastStamp int64
	onEvent   func(RecordedEvent)
}

// NewRecorder creates a recorder bound to a variable store (used to
// read !URLCURRENT for generateMacro's header).
func NewRecorder(store *VariableStore) *Recorder {
	return &Recorder{store: store}
}

// Start begins recording; idempotent.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
}

// Stop detaches the recorder; idempotent.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
}

// ClearEvents empties the recorded list but preserves subscription.
func (r *Recorder) ClearEvents() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// OnEvent registers a callback invoked synchronously as each event is
// recorded.
func (r *Recorder) OnEvent(cb func(RecordedEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = cb
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

// HandleClick records a click. Clicks on text-like inputs are skipped;
// the subsequent change event already carries the edit.
func (r *Recorder) HandleClick(el DOMElement, timestampMs int64) {
	if (el.TagName == "INPUT" || el.TagName == "TEXTAREA") && textLikeInputTypes[strings.ToLower(el.Type)] {
		return
	}
	r.record(RecordedEvent{Kind: "click", Element: el, Timestamp: r.monotonic(timestampMs)})
}

// HandleChange records a change event on an input/textarea/select.
func (r *Recorder) HandleChange(el DOMElement, value string, timestampMs int64) {
	r.record(RecordedEvent{Kind: "change", Element: el, Value: value, Timestamp: r.monotonic(timestampMs)})
}

func (r *Recorder) monotonic(timestampMs int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timestampMs < r.lastStamp {
		timestampMs = r.lastStamp
	}
	r.lastStamp = timestampMs
	return timestampMs
}

func (r *Recorder) record(evt RecordedEvent) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	evt.ID = uuid.NewString()
	r.events = append(r.events, evt)
	cb := r.onEvent
	r.mu.Unlock()

	if cb != nil {
		cb(evt)
	}
}

// selectorAttr picks the preferred attribute for a recorded selector:
// first non-empty of ID, NAME, HREF (anchors only), CLASS, visible
// text. Only one attribute is ever emitted per command.
func selectorAttr(el DOMElement) (key, value string) {
	if el.ID != "" {
		return "ID", el.ID
	}
	if el.Name != "" {
		return "NAME", el.Name
	}
	if el.TagName == "A" && el.Href != "" {
		return "HREF", el.Href
	}
	if el.Class != "" {
		return "CLASS", el.Class
	}
	return "TXT", el.Text
}

func tagTypeParam(el DOMElement) string {
	if el.Type != "" {
		return fmt.Sprintf("%s:%s", el.TagName, strings.ToUpper(el.Type))
	}
	return el.TagName
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " \t") {
		return fmt.Sprintf("%q", v)
	}
	return v
}

func contentValue(el DOMElement, value string) string {
	rendered := value
	if el.IsSelect {
		rendered = "%" + value
	}
	return quoteIfNeeded(rendered)
}

// renderLine renders one RecordedEvent as a TAG command line.
func renderLine(evt RecordedEvent) string {
	key, value := selectorAttr(evt.Element)
	line := fmt.Sprintf("TAG POS=1 TYPE=%s ATTR:%s=%s", tagTypeParam(evt.Element), key, quoteIfNeeded(value))
	if evt.Kind == "change" {
		line += " CONTENT=" + contentValue(evt.Element, evt.Value)
	}
	return line
}

// GenerateMacro emits the header comment block followed by one line
// per recorded event, in insertion order.
func (r *Recorder) GenerateMacro() string {
	r.mu.Lock()
	events := make([]RecordedEvent, len(r.events))
	copy(events, r.events)
	r.mu.Unlock()

	var b strings.Builder
	b.WriteString("' iMacros Recorded Macro\n")
	b.WriteString("' URL: " + r.store.GetString("!URLCURRENT") + "\n")
	for _, evt := range events {
		b.WriteString(renderLine(evt))
		b.WriteString("\n")
	}
	return b.String()
}
