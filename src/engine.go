package imacros

import (
	"context"
	"os"
	"time"
)

// Engine is the top-level entry point: it owns a Config, a Logger, a
// parser, and an Executor wired with default handlers.
type Engine struct {
	config   *Config
	logger   *Logger
	parser   *Parser
	store    *VariableStore
	state    *ExecutionState
	executor *Executor
	recorder *Recorder
	loaded   *ParsedMacro
}

// New creates an Engine. bridges may leave any field nil; handlers
// that need a missing collaborator fail accordingly at dispatch time.
func New(config *Config, bridges Bridges) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}

	logger := NewLoggerWithWriters(config.Debug, config.Stdout, config.Stderr)
	store := NewVariableStore()
	seedReservedDefaults(store, config)

	state := NewExecutionState(store)
	executor := NewExecutor(logger, store, state)

	evaluator := config.Evaluator
	if evaluator == nil {
		evaluator = NewDefaultEvaluator(time.Now().UnixNano())
	}
	RegisterDefaultHandlers(executor, bridges, evaluator)

	return &Engine{
		config:   config,
		logger:   logger,
		parser:   NewParser(),
		store:    store,
		state:    state,
		executor: executor,
	}
}

func seedReservedDefaults(store *VariableStore, config *Config) {
	store.SetPrivileged("!VERSION", EngineVersion)
	store.SetPrivileged("!PLATFORM", "go")
	store.SetPrivileged("!TIMEOUT", "60")
	store.SetPrivileged("!TIMEOUT_TAG", formatNumber(config.DefaultTagTimeout.Seconds()))
	store.SetPrivileged("!ERRORIGNORE", "NO")
	store.SetPrivileged("!ERRORLOOP", "NO")
	for name, v := range config.InitialVariables {
		store.SetVariable(name, v)
	}
}

// RegisterHandler allows a host application to override or extend a
// command's handler after construction.
func (e *Engine) RegisterHandler(kind CommandKind, handler Handler) {
	e.executor.RegisterHandler(kind, handler)
}

// RegisterCleanup registers a callback that fires on every exit path
// of the next RunMacro call.
func (e *Engine) RegisterCleanup(fn func()) {
	e.executor.RegisterCleanup(fn)
}

// Parse parses macro text without executing it.
func (e *Engine) Parse(text string) *ParsedMacro {
	return e.parser.Parse(text)
}

// RunMacro parses and executes macro text for the given loop count.
func (e *Engine) RunMacro(ctx context.Context, text string, maxLoops int) MacroResult {
	macro := e.parser.Parse(text)
	return e.executor.Execute(ctx, macro.Commands, maxLoops, e.config.InitialVariables)
}

// LoadMacro parses macro text and retains it for a later Execute call.
// The returned ParsedMacro carries any non-fatal diagnostics.
func (e *Engine) LoadMacro(text string) *ParsedMacro {
	e.loaded = e.parser.Parse(text)
	return e.loaded
}

// Execute runs the most recently loaded macro with the configured loop
// count. With nothing loaded it fails with MISSING_PARAMETER.
func (e *Engine) Execute(ctx context.Context) MacroResult {
	if e.loaded == nil {
		return MacroResult{
			Success:      false,
			ErrorCode:    ErrMissingParameter,
			ErrorMessage: "no macro loaded",
		}
	}
	return e.executor.Execute(ctx, e.loaded.Commands, e.config.MaxLoops, e.config.InitialVariables)
}

// Pause / Resume / Stop / Step / SetErrorIgnore control an in-flight
// run cooperatively.
func (e *Engine) Pause()              { e.executor.Pause() }
func (e *Engine) Resume()             { e.executor.Resume() }
func (e *Engine) Stop()               { e.executor.Stop() }
func (e *Engine) SetSingleStep(v bool) { e.executor.SetSingleStep(v) }
func (e *Engine) Step()               { e.executor.Step() }

func (e *Engine) SetErrorIgnore(v bool) {
	e.store.SetPrivileged("!ERRORIGNORE", boolToYesNo(v))
}

func boolToYesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

// State returns the execution state, mainly for tests.
func (e *Engine) State() *ExecutionState { return e.state }

// Store returns the variable store, mainly for tests.
func (e *Engine) Store() *VariableStore { return e.store }

// Recorder lazily constructs and returns the DOM-event recorder bound
// to this engine's store.
func (e *Engine) Recorder() *Recorder {
	if e.recorder == nil {
		e.recorder = NewRecorder(e.store)
	}
	return e.recorder
}
