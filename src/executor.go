package imacros

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Executor dispatches parsed commands against a registry of handlers,
// driving a single-threaded cooperative main loop: commands run in
// parse order, suspending only at bridge calls, WAIT sleeps, and the
// pause/stop/step gates.
type Executor struct {
	mu       sync.RWMutex
	commands map[CommandKind]Handler

	logger *Logger
	store  *VariableStore
	state  *ExecutionState

	fallbackHandler Handler
}

// NewExecutor creates an executor bound to a store/state pair. Each
// executor exclusively owns its store and state; bridges are wired in
// separately by the engine layer via handler closures.
func NewExecutor(logger *Logger, store *VariableStore, state *ExecutionState) *Executor {
	return &Executor{
		commands: make(map[CommandKind]Handler),
		logger:   logger,
		store:    store,
		state:    state,
		fallbackHandler: func(ctx *Context) HandlerResult {
			return OK()
		},
	}
}

// RegisterHandler registers a handler for a command kind, overwriting
// any previous registration.
func (e *Executor) RegisterHandler(kind CommandKind, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[kind] = handler
	e.logger.Debug("registered handler for %s", kind)
}

// SetFallbackHandler overrides the default no-op handler used for
// unregistered command kinds.
func (e *Executor) SetFallbackHandler(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallbackHandler = handler
}

func (e *Executor) handlerFor(kind CommandKind) Handler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if h, ok := e.commands[kind]; ok {
		return h
	}
	return e.fallbackHandler
}

// RegisterCleanup registers a callback that fires on every exit path
// of the next execute() call.
func (e *Executor) RegisterCleanup(fn func()) {
	e.state.RegisterCleanup(fn)
}

// SetPendingError queues an async error, consumed at the next command
// boundary.
func (e *Executor) SetPendingError(result HandlerResult) {
	e.state.SetPendingError(result)
}

func (e *Executor) Pause()                    { e.state.Pause() }
func (e *Executor) Resume()                   { e.state.Resume() }
func (e *Executor) Stop()                     { e.state.Stop() }
func (e *Executor) SetSingleStep(v bool)      { e.state.SetSingleStep(v) }
func (e *Executor) Step()                     { e.state.Step() }
func (e *Executor) GetState() *ExecutionState { return e.state }

// SetErrorIgnore toggles !ERRORIGNORE for the current/next run.
func (e *Executor) SetErrorIgnore(v bool) {
	e.store.SetPrivileged("!ERRORIGNORE", boolToYesNo(v))
}

// dispatch builds a Context and invokes the handler for cmd.
func (e *Executor) dispatch(cmd *ParsedCommand) HandlerResult {
	handler := e.handlerFor(cmd.Type)
	ctx := &Context{
		Command:  cmd,
		state:    e.state,
		store:    e.store,
		executor: e,
		logger:   e.logger,
	}
	traceID := uuid.NewString()
	e.logger.Logf(LevelDebug, CatCommand, "dispatch %s line=%d trace=%s", cmd.Type, cmd.LineNumber, traceID)
	return handler(ctx)
}

// Execute runs the commands loop-counted and command-indexed: for each
// loop iteration, every command is dispatched in parse order, with
// pause/stop/step gates and the error-ignore/error-loop escape hatches
// checked at each command boundary. initialVariables are re-applied at
// the start of every loop iteration when provided.
func (e *Executor) Execute(ctx context.Context, commands []*ParsedCommand, maxLoops int, initialVariables map[string]interface{}) MacroResult {
	e.state.Reset(maxLoops)
	start := time.Now()

	result := MacroResult{Success: true}
	loopsCompleted := 0

loopLoop:
	for loop := 1; loop <= maxLoops; loop++ {
		if e.state.flagsSnapshot().Stopped {
			break
		}
		for name, v := range initialVariables {
			e.store.SetVariable(name, v)
		}
		e.state.SetLoop(loop)

		for _, cmd := range commands {
			if e.state.flagsSnapshot().Stopped {
				break loopLoop
			}
			e.waitWhilePausedOrStepping(ctx)
			if e.state.flagsSnapshot().Stopped {
				break loopLoop
			}

			syncErrorIgnore := e.parseErrorIgnore()
			e.state.SetErrorIgnore(syncErrorIgnore)
			errorLoop := e.parseErrorLoop()
			e.state.SetErrorLoop(errorLoop)

			var cmdResult HandlerResult
			if pending, ok := e.state.ConsumePendingError(); ok {
				cmdResult = pending
			} else {
				cmdStart := time.Now()
				cmdResult = e.dispatch(cmd)
				e.state.AddProfilerRecord(ProfilerRecord{
					Line:       cmd.LineNumber,
					Command:    string(cmd.Type),
					DurationMs: time.Since(cmdStart).Milliseconds(),
					Success:    cmdResult.Success,
				})
			}

			if !cmdResult.Success {
				if syncErrorIgnore {
					e.logger.Warn("line %d: %s (ignored)", cmd.LineNumber, cmdResult.Message)
					continue
				}
				if errorLoop {
					e.logger.Warn("line %d: %s (loop abandoned)", cmd.LineNumber, cmdResult.Message)
					continue loopLoop
				}
				result = MacroResult{
					Success:      false,
					ErrorCode:    cmdResult.Code,
					ErrorMessage: cmdResult.Message,
					ErrorLine:    cmd.LineNumber,
				}
				break loopLoop
			}
			loopsCompleted = loop
		}
	}

	e.state.RunCleanups(e.logger)

	result.LoopsCompleted = loopsCompleted
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	result.ExtractData = e.state.GetExtractData()
	result.Variables = e.store.Snapshot()
	result.ProfilerRecords = e.state.ProfilerRecords()
	return result
}

func (e *Executor) parseErrorIgnore() bool {
	v, _ := e.store.Get("!ERRORIGNORE")
	return equalsYes(v)
}

func (e *Executor) parseErrorLoop() bool {
	v, _ := e.store.Get("!ERRORLOOP")
	return equalsYes(v)
}

func equalsYes(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return s == "YES" || s == "yes"
}

// waitWhilePausedOrStepping cooperatively blocks while the executor is
// paused, and gates on an explicit Step() call in single-step mode.
// Both loops observe Stop() and the caller's context.
func (e *Executor) waitWhilePausedOrStepping(ctx context.Context) {
	if e.state.flagsSnapshot().SingleStep {
		for {
			if e.state.flagsSnapshot().Stopped {
				return
			}
			if e.state.consumeStepRequest() {
				return
			}
			select {
			case <-ctx.Done():
				e.state.Stop()
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
	for e.state.flagsSnapshot().Paused {
		if e.state.flagsSnapshot().Stopped {
			return
		}
		select {
		case <-ctx.Done():
			e.state.Stop()
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
