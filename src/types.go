package imacros

import (
	"io"
	"strings"
	"time"
)

// SourcePosition tracks where a command came from in the macro source.
type SourcePosition struct {
	Line     int
	Filename string
}

// VariableReference records a single {{NAME}} occurrence within a line.
type VariableReference struct {
	Name string
	Line int
}

// CommandKind is the closed enumeration of command keywords the parser
// recognizes. Unknown keywords still parse, tagged KindUnknown.
type CommandKind string

const (
	KindURL            CommandKind = "URL"
	KindTab            CommandKind = "TAB"
	KindFrame          CommandKind = "FRAME"
	KindTag            CommandKind = "TAG"
	KindClick          CommandKind = "CLICK"
	KindEvent          CommandKind = "EVENT"
	KindSearch         CommandKind = "SEARCH"
	KindExtract        CommandKind = "EXTRACT"
	KindSet            CommandKind = "SET"
	KindAdd            CommandKind = "ADD"
	KindWait           CommandKind = "WAIT"
	KindPause          CommandKind = "PAUSE"
	KindPrompt         CommandKind = "PROMPT"
	KindOnDialog       CommandKind = "ONDIALOG"
	KindOnLogin        CommandKind = "ONLOGIN"
	KindOnDownload     CommandKind = "ONDOWNLOAD"
	KindStopwatch      CommandKind = "STOPWATCH"
	KindVersion        CommandKind = "VERSION"
	KindBack           CommandKind = "BACK"
	KindRefresh        CommandKind = "REFRESH"
	KindFilter         CommandKind = "FILTER"
	KindProxy          CommandKind = "PROXY"
	KindSaveAs         CommandKind = "SAVEAS"
	KindCmdline        CommandKind = "CMDLINE"
	KindDisconnect     CommandKind = "DISCONNECT"
	KindRedial         CommandKind = "REDIAL"
	KindImageClick     CommandKind = "IMAGECLICK"
	KindEval           CommandKind = "EVAL"
	KindUnknown        CommandKind = "UNKNOWN"
)

// Parameter is a single KEY=VALUE or positional token on a command line.
type Parameter struct {
	Key       string // upper-cased for lookup; empty for positional tokens
	Value     string // value after '=', with <SP>/<BR>/<TAB>/<ENTER> escapes resolved
	RawValue  string // original text, before escape resolution
	Variables []VariableReference
}

// ParsedCommand is one line of a parsed macro.
type ParsedCommand struct {
	Type       CommandKind
	Parameters []Parameter
	Raw        string
	LineNumber int
	Variables  []VariableReference
}

// GetParam returns the first parameter matching key (case-insensitive),
// or ("", false) if absent.
func (c *ParsedCommand) GetParam(key string) (string, bool) {
	key = strings.ToUpper(key)
	for _, p := range c.Parameters {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// HasParam reports whether a parameter key is present.
func (c *ParsedCommand) HasParam(key string) bool {
	_, ok := c.GetParam(key)
	return ok
}

// Positional returns the i-th positional (no '=') parameter's raw text.
func (c *ParsedCommand) Positional(i int) (string, bool) {
	n := 0
	for _, p := range c.Parameters {
		if p.Key == "" {
			if n == i {
				return p.RawValue, true
			}
			n++
		}
	}
	return "", false
}

// ParseDiagnostic is a non-fatal parse-time validation finding.
type ParseDiagnostic struct {
	Line    int
	Message string
}

// ParsedMacro is the result of parsing macro text.
type ParsedMacro struct {
	Commands  []*ParsedCommand
	Version   string
	Variables []VariableReference
	Errors    []ParseDiagnostic
}

// Handler handles one command kind. It must not retain ctx past the call.
type Handler func(ctx *Context) HandlerResult

// HandlerResult is what a command handler returns.
type HandlerResult struct {
	Success bool
	Code    ErrorCode
	Message string
	Output  interface{}
}

// OK builds a successful result, optionally carrying an output value.
func OK(output ...interface{}) HandlerResult {
	r := HandlerResult{Success: true, Code: ErrOK}
	if len(output) > 0 {
		r.Output = output[0]
	}
	return r
}

// Fail builds a failure result with the given code and message.
func Fail(code ErrorCode, message string) HandlerResult {
	if message == "" {
		message = DefaultMessage(code)
	}
	return HandlerResult{Success: false, Code: code, Message: message}
}

// Context is the short-lived object passed to a command handler. A
// handler must not retain it past its call.
type Context struct {
	Command  *ParsedCommand
	state    *ExecutionState
	store    *VariableStore
	executor *Executor
	logger   *Logger
}

// GetParam returns a parameter value with variables expanded.
func (c *Context) GetParam(key string) (string, bool) {
	raw, ok := c.Command.GetParam(key)
	if !ok {
		return "", false
	}
	expanded, _ := c.store.Expand(raw)
	return expanded, true
}

// GetRequiredParam returns an expanded parameter, or MISSING_PARAMETER.
func (c *Context) GetRequiredParam(key string) (string, HandlerResult, bool) {
	v, ok := c.GetParam(key)
	if !ok {
		return "", Fail(ErrMissingParameter, "missing required parameter "+key), false
	}
	return v, HandlerResult{}, true
}

// Expand expands {{NAME}} references and !NOW:<format> in text.
func (c *Context) Expand(text string) string {
	expanded, _ := c.store.Expand(text)
	return expanded
}

// State returns the executor's execution state.
func (c *Context) State() *ExecutionState { return c.state }

// Store returns the variable store.
func (c *Context) Store() *VariableStore { return c.store }

// Log writes a message at the given level/category.
func (c *Context) Log(level LogLevel, cat LogCategory, format string, args ...interface{}) {
	c.logger.Logf(level, cat, format, args...)
}

// MacroResult is returned by Executor.Execute.
type MacroResult struct {
	Success         bool
	ErrorCode       ErrorCode
	ErrorMessage    string
	ErrorLine       int
	LoopsCompleted  int
	ExecutionTimeMs int64
	ExtractData     []string
	Variables       map[string]interface{}
	ProfilerRecords []ProfilerRecord
}

// ProfilerRecord captures one command's timing for !FILE_PROFILER output.
type ProfilerRecord struct {
	Line       int
	Command    string
	DurationMs int64
	Success    bool
}

// Config configures an Engine/Executor.
type Config struct {
	Debug             bool
	Stdout            io.Writer
	Stderr            io.Writer
	InitialVariables  map[string]interface{}
	MaxLoops          int
	Evaluator         EvalEvaluator
	DefaultTagTimeout time.Duration
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Debug:             false,
		MaxLoops:          1,
		DefaultTagTimeout: 6 * time.Second,
	}
}
