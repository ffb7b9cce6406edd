package imacros

import "sync"

const extractDelimiter = "[EXTRACT]"

// Stopwatch tracks a single named timer.
type Stopwatch struct {
	StartTime   int64 // unix millis
	Laps        []int64
	Running     bool
	Accumulated int64
}

// Flags are the executor's cooperative control bits.
type Flags struct {
	Paused        bool
	Stopped       bool
	SingleStep    bool
	StepRequested bool
}

// ExecutionState is the per-run mutable state owned exclusively by one
// Executor: current loop, stopwatches, extract accumulator, profiler
// records, cleanup callbacks, and the pending async error slot.
type ExecutionState struct {
	mu sync.RWMutex

	store *VariableStore

	loopIndex     int
	maxLoops      int
	errorIgnore   bool
	errorLoop     bool
	startTabIndex int

	stopwatches map[string]*Stopwatch
	extractData []string

	profilerRecords []ProfilerRecord

	cleanups []func()

	pendingError  *HandlerResult
	hasPendingErr bool

	flags Flags

	anchorTagIndex int // for TAG POS=R<k> relative addressing
}

// NewExecutionState creates a fresh state bound to a variable store.
func NewExecutionState(store *VariableStore) *ExecutionState {
	return &ExecutionState{
		store:       store,
		maxLoops:    1,
		stopwatches: make(map[string]*Stopwatch),
	}
}

// Reset clears per-run state ahead of execute(), preserving nothing
// that belongs to a previous run (registered handlers/bridges live on
// the Executor, not here). Cleanup callbacks registered since the last
// RunCleanups are kept for this run.
func (s *ExecutionState) Reset(maxLoops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopIndex = 0
	s.maxLoops = maxLoops
	s.errorIgnore = false
	s.errorLoop = false
	s.startTabIndex = 0
	s.stopwatches = make(map[string]*Stopwatch)
	s.extractData = nil
	s.profilerRecords = nil
	s.pendingError = nil
	s.hasPendingErr = false
	s.flags = Flags{}
	s.anchorTagIndex = 0
}

// SetLoop writes the current 1-based loop index, both internally and
// into !LOOP, before any command in that iteration runs, and clears the
// TAG anchor used by POS=R<k>.
func (s *ExecutionState) SetLoop(loop int) {
	s.mu.Lock()
	s.loopIndex = loop
	s.anchorTagIndex = 0
	s.mu.Unlock()
	s.store.SetPrivileged("!LOOP", loop)
}

// Loop returns the current 1-based loop index.
func (s *ExecutionState) Loop() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loopIndex
}

// MaxLoops returns the configured loop count for this run.
func (s *ExecutionState) MaxLoops() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxLoops
}

// SetErrorIgnore / ErrorIgnore mirror !ERRORIGNORE.
func (s *ExecutionState) SetErrorIgnore(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorIgnore = v
}

func (s *ExecutionState) ErrorIgnore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorIgnore
}

// SetErrorLoop / ErrorLoop mirror !ERRORLOOP.
func (s *ExecutionState) SetErrorLoop(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorLoop = v
}

func (s *ExecutionState) ErrorLoop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorLoop
}

// StartTabIndex / SetStartTabIndex track the TAB bookmark base.
func (s *ExecutionState) StartTabIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTabIndex
}

func (s *ExecutionState) SetStartTabIndex(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTabIndex = i
}

// GetVariable / SetVariable pass through to the Store.
func (s *ExecutionState) GetVariable(name string) (interface{}, bool) {
	return s.store.Get(name)
}

func (s *ExecutionState) SetVariable(name string, value interface{}) SetOutcome {
	return s.store.SetVariable(name, value)
}

// AddExtract appends to the extract list and updates !EXTRACT to
// reflect only the latest value; the joined form is available through
// GetExtractString.
func (s *ExecutionState) AddExtract(value string) {
	s.mu.Lock()
	s.extractData = append(s.extractData, value)
	s.mu.Unlock()
	s.store.SetPrivileged("!EXTRACT", value)
}

// GetExtractString joins the extract list with the fixed delimiter.
func (s *ExecutionState) GetExtractString() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := ""
	for i, v := range s.extractData {
		if i > 0 {
			out += extractDelimiter
		}
		out += v
	}
	return out
}

// GetExtractData returns the raw extract list.
func (s *ExecutionState) GetExtractData() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.extractData))
	copy(out, s.extractData)
	return out
}

// RegisterCleanup appends a callback run on every exit path.
func (s *ExecutionState) RegisterCleanup(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// RunCleanups runs registered callbacks in order and empties the list;
// a panicking callback is caught, logged, and does not prevent the
// remaining callbacks from running.
func (s *ExecutionState) RunCleanups(logger *Logger) {
	s.mu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	for _, fn := range cleanups {
		runCleanupSafely(fn, logger)
	}
}

func runCleanupSafely(fn func(), logger *Logger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Warn("cleanup callback panicked: %v", r)
		}
	}()
	fn()
}

// SetPendingError records the first async error; later calls before
// ConsumePendingError are ignored.
func (s *ExecutionState) SetPendingError(result HandlerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasPendingErr {
		return
	}
	r := result
	s.pendingError = &r
	s.hasPendingErr = true
}

// ConsumePendingError atomically fetches and clears the pending error.
func (s *ExecutionState) ConsumePendingError() (HandlerResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasPendingErr {
		return HandlerResult{}, false
	}
	r := *s.pendingError
	s.pendingError = nil
	s.hasPendingErr = false
	return r, true
}

// AddProfilerRecord appends a per-command timing record.
func (s *ExecutionState) AddProfilerRecord(rec ProfilerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profilerRecords = append(s.profilerRecords, rec)
}

// ProfilerRecords returns a copy of the accumulated timing records.
func (s *ExecutionState) ProfilerRecords() []ProfilerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ProfilerRecord, len(s.profilerRecords))
	copy(out, s.profilerRecords)
	return out
}

// Stopwatch returns (creating if absent) the named stopwatch.
func (s *ExecutionState) Stopwatch(id string) *Stopwatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	sw, ok := s.stopwatches[id]
	if !ok {
		sw = &Stopwatch{}
		s.stopwatches[id] = sw
	}
	return sw
}

// StopwatchExists reports whether a named stopwatch has been created.
func (s *ExecutionState) StopwatchExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stopwatches[id]
	return ok
}

// Pause / Resume / Stop / Step control the cooperative flags.
func (s *ExecutionState) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.Paused = true
}

func (s *ExecutionState) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.Paused = false
}

func (s *ExecutionState) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.Stopped = true
}

func (s *ExecutionState) SetSingleStep(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.SingleStep = v
}

func (s *ExecutionState) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.StepRequested = true
}

func (s *ExecutionState) flagsSnapshot() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

func (s *ExecutionState) consumeStepRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags.StepRequested {
		s.flags.StepRequested = false
		return true
	}
	return false
}

// SetAnchorTagIndex / AnchorTagIndex track the most recent TAG match
// position, used to resolve POS=R<k> relative addressing within the
// same loop iteration.
func (s *ExecutionState) SetAnchorTagIndex(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchorTagIndex = i
}

func (s *ExecutionState) AnchorTagIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anchorTagIndex
}
