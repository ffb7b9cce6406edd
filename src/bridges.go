package imacros

import "context"

// BridgeResponse is the common envelope every bridge call returns.
type BridgeResponse struct {
	Success   bool
	Error     string
	ErrorCode ErrorCode
	Data      map[string]interface{}
}

// BrowserBridge performs navigation and tab/frame operations. The core
// engine only constructs these message shapes; a real transport or a
// test double implements the methods.
type BrowserBridge interface {
	Navigate(ctx context.Context, url string) BridgeResponse
	GetCurrentURL(ctx context.Context) BridgeResponse
	GoBack(ctx context.Context) BridgeResponse
	Refresh(ctx context.Context) BridgeResponse
	OpenTab(ctx context.Context, url string) BridgeResponse
	SwitchTab(ctx context.Context, tabIndex int) BridgeResponse
	CloseTab(ctx context.Context) BridgeResponse
	CloseOtherTabs(ctx context.Context) BridgeResponse
	SelectFrame(ctx context.Context, frameIndex int, frameName string) BridgeResponse
}

// TagAction is the action a TAG command asks the content script to
// perform once an element is located.
type TagAction struct {
	Kind    string // "click", "content", "extract", "submit", "reset"
	Content string
	Extract string
}

// TagCommandMessage is the payload for the TAG_COMMAND message family.
type TagCommandMessage struct {
	Selector    ElementSelector
	Action      TagAction
	Timeout     float64
	WaitVisible bool
}

// ElementSelector addresses an element either by XPath, CSS, or the
// POS/TYPE/ATTR triple.
type ElementSelector struct {
	XPath string
	CSS   string

	Pos      int
	Relative bool // true when Pos came from POS=R<k>
	Type     string
	Attrs    []AttrMatch
}

// AttrMatch is one KEY:value clause of a compound ATTR parameter.
type AttrMatch struct {
	Key      string
	Value    string
	Wildcard bool
}

// ExtractedData carries extraction results back from the content
// script.
type ExtractedData struct {
	Values []string
}

// ElementInfo describes the element a content-script call acted on.
type ElementInfo struct {
	TagName string
	Type    string
}

// ContentScriptSender performs DOM interactions: element queries,
// clicks, synthetic events, and search.
type ContentScriptSender interface {
	SendTag(ctx context.Context, msg TagCommandMessage) ContentScriptResponse
	SendClick(ctx context.Context, x, y int, button string, clickCount int) ContentScriptResponse
	SendEvent(ctx context.Context, eventType string, selector ElementSelector, payload map[string]interface{}) ContentScriptResponse
	SendSearch(ctx context.Context, sourceType, pattern string, ignoreCase bool, extractPattern string) ContentScriptResponse
}

// ContentScriptResponse is the common response shape for content
// script calls.
type ContentScriptResponse struct {
	Success       bool
	Error         string
	ErrorCode     ErrorCode
	ExtractedData *ExtractedData
	ElementInfo   *ElementInfo
}

// DialogResponse describes how a dialog bridge resolved a prompt.
type DialogResponse struct {
	Accepted bool
	Text     string
}

// DialogBridge handles ONDIALOG/PROMPT interactions.
type DialogBridge interface {
	HandleDialog(ctx context.Context, kind string, message string, defaultText string) DialogResponse
}

// CmdlineResult is the outcome of a CMDLINE invocation.
type CmdlineResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CmdlineExecutor runs OS-level commands. The default engine wiring
// never calls it — CMDLINE is stubbed to UNSUPPORTED_COMMAND — but the
// interface exists so a host application may opt in.
type CmdlineExecutor interface {
	Run(ctx context.Context, command string) (CmdlineResult, error)
}

// NetworkManager provides the proxy and filter network-layer
// collaborators.
type NetworkManager interface {
	SetProxy(ctx context.Context, spec string) error
	SetFilter(ctx context.Context, spec string) error
}
