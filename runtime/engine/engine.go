// Package engine implements the sketch execution engine: a cooperative
// state machine that walks the AST, drives the scope store and library
// registry, and emits commands to its host.
//
// One engine instance owns one program. Evaluation runs on an
// engine-owned goroutine; the control surface (Start, Pause, Resume,
// Step, Stop, Reset, ResumeWithValue) is what the host calls, and the
// host must serialize those calls. Encountering a host-resolved value
// (digitalRead, analogRead, millis, micros, pulseIn) emits a request
// command and suspends until the host answers with ResumeWithValue;
// every host-resolved primitive goes through this single contract.
//
// Engine instances are fully independent. Nothing is shared between
// runs: Start builds a fresh scope store and request-id sequence every
// time.
package engine

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/breadboard-sim/breadboard/core/ast"
	"github.com/breadboard-sim/breadboard/core/astfmt"
	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/core/invariant"
	"github.com/breadboard-sim/breadboard/runtime/library"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// DefaultMaxCallDepth bounds user-function recursion when Config leaves
// MaxCallDepth zero.
const DefaultMaxCallDepth = 128

// Config configures an engine instance.
type Config struct {
	// MaxLoopIterations caps how many times loop() runs; 0 means
	// unbounded. Reaching the cap emits LoopLimitReached and completes
	// the run.
	MaxLoopIterations int64

	// MaxCallDepth caps user-function call depth; exceeding it fails the
	// run with a stack overflow Error command. 0 means DefaultMaxCallDepth.
	MaxCallDepth int

	// Verbose records debug events (state transitions, command types).
	// Diagnostics only; no behavioral effect.
	Verbose bool

	// StepDelay is a pacing hint for hosts replaying the command stream.
	// The engine itself never sleeps.
	StepDelay time.Duration
}

// DebugEvent is one Verbose trace entry.
type DebugEvent struct {
	Timestamp time.Time
	Event     string
	Detail    string
}

// Engine executes one program. Construct with New or NewFromBytes;
// register callbacks before Start.
type Engine struct {
	program     *ast.Node
	fingerprint [32]byte
	config      Config
	registry    library.Registry // nil: fresh builtin catalog per run

	mu   sync.Mutex
	cond *sync.Cond

	state      State
	stopping   bool
	inCallback bool
	stepBudget int
	pending    string // outstanding request id, "" if none
	prior      State  // state recorded before suspension
	response   *value.Value
	done       chan struct{}

	onCommand     func(command.Command)
	onError       func(error)
	onStateChange func(from, to State)

	// Per-run evaluator state, rebuilt by Start.
	store     *value.Store
	reg       library.Registry
	funcs     map[string]*ast.Node
	funcStack []string
	callDepth int
	ids       *idFactory
	rng       uint64

	debugEvents []DebugEvent
}

// New creates an engine for a validated program tree. The program
// fingerprint is derived by encoding the tree, so hand-built and
// decoded programs get identical ProgramStart fingerprints and request
// ids. reg may be nil, in which case every run gets a fresh builtin
// registry.
func New(program *ast.Node, reg library.Registry, cfg Config) (*Engine, error) {
	_, fp, err := astfmt.Encode(program)
	if err != nil {
		return nil, err
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	e := &Engine{
		program:     program,
		fingerprint: fp,
		config:      cfg,
		registry:    reg,
		state:       StateIdle,
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// NewFromBytes decodes a binary AST buffer and creates an engine for
// it. Malformed bytes fail with *astfmt.CorruptFormatError before any
// engine state exists.
func NewFromBytes(data []byte, reg library.Registry, cfg Config) (*Engine, error) {
	root, _, err := astfmt.Decode(data)
	if err != nil {
		return nil, err
	}
	return New(root, reg, cfg)
}

// Fingerprint returns the BLAKE2b-256 program fingerprint carried in
// the ProgramStart command.
func (e *Engine) Fingerprint() [32]byte { return e.fingerprint }

// OnCommand registers the command sink. Commands are delivered in
// strict generation order, synchronously from the evaluation goroutine;
// the callback may call ResumeWithValue, Pause or Stop.
func (e *Engine) OnCommand(fn func(command.Command)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCommand = fn
}

// OnError registers a callback invoked when a run fails; the same
// information also arrives as an Error command.
func (e *Engine) OnError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// OnStateChange registers a callback invoked on every state
// transition, in transition order. The callback runs under the engine
// lock: it must return promptly and must not call back into the
// control surface.
func (e *Engine) OnStateChange(fn func(from, to State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStateChange = fn
}

// GetState returns the current execution state.
func (e *Engine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// DebugEvents returns a copy of the Verbose trace recorded so far.
func (e *Engine) DebugEvents() []DebugEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]DebugEvent, len(e.debugEvents))
	copy(out, e.debugEvents)
	return out
}

// setStateLocked transitions the state machine and fires OnStateChange.
// The caller holds mu.
func (e *Engine) setStateLocked(next State) {
	if e.state == next {
		return
	}
	prev := e.state
	e.state = next
	if e.config.Verbose {
		e.recordLocked("state", prev.String()+" -> "+next.String())
	}
	if e.onStateChange != nil {
		e.onStateChange(prev, next)
	}
}

// Start begins a run: globals, then setup() once, then loop() up to the
// configured ceiling. It fails with ErrNotReady when the program
// defines neither setup nor loop, and with ErrInvalidState outside
// IDLE. Start returns once the run goroutine is launched; progress is
// observed through the registered callbacks. Start must not be called
// from inside a callback.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, e.state)
	}
	if e.program.FindFunction("setup") == nil && e.program.FindFunction("loop") == nil {
		e.mu.Unlock()
		return ErrNotReady
	}
	prev := e.done
	e.mu.Unlock()

	// A stopped run's evaluator may still be unwinding: Stop does not
	// join it when a command callback is in flight. Wait it out here so
	// the old goroutine can never observe the new run's state.
	if prev != nil {
		<-prev
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, e.state)
	}

	e.store = value.NewStore()
	e.reg = e.registry
	if e.reg == nil {
		e.reg = library.NewBuiltin()
	}
	e.funcs = make(map[string]*ast.Node)
	for _, child := range e.program.Children {
		if child.Kind == ast.KindFuncDef {
			e.funcs[child.Name] = child
		}
	}
	e.funcStack = nil
	e.callDepth = 0
	e.ids = newIDFactory(e.fingerprint)
	e.rng = 1
	e.stopping = false
	e.stepBudget = 0
	e.pending = ""
	e.response = nil
	e.done = make(chan struct{})
	done := e.done
	e.setStateLocked(StateRunning)
	e.mu.Unlock()

	go e.run(done)
	return nil
}

// Pause suspends a free-running engine at the next statement boundary.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidState, e.state)
	}
	e.setStateLocked(StatePaused)
	e.cond.Broadcast()
	return nil
}

// Resume returns a paused engine to free-running.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidState, e.state)
	}
	e.setStateLocked(StateRunning)
	e.cond.Broadcast()
	return nil
}

// Step executes exactly one statement of a paused engine, then returns
// to PAUSED. If the statement encounters a host-resolved value, the
// engine suspends in WAITING_FOR_RESPONSE; the answering
// ResumeWithValue completes the interrupted step and lands in PAUSED,
// never RUNNING.
func (e *Engine) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("%w: step from %s", ErrInvalidState, e.state)
	}
	e.stepBudget = 1
	e.setStateLocked(StateStepping)
	e.cond.Broadcast()
	return nil
}

// Stop abandons the run, including any in-flight request, and lands in
// IDLE. It joins the evaluation goroutine unless a command callback is
// in flight (Stop from inside the callback included); then the
// goroutine unwinds as soon as the callback returns, and the next
// Start waits it out before building fresh run state.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.state.live() {
		e.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, e.state)
	}
	e.stopping = true
	e.pending = ""
	e.response = nil
	e.setStateLocked(StateIdle)
	e.cond.Broadcast()
	done := e.done
	join := !e.inCallback
	e.mu.Unlock()

	if join {
		<-done
	}
	return nil
}

// Reset returns a COMPLETE or ERROR engine to IDLE. The next Start
// builds a fresh scope store; no run state survives.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateIdle, StateComplete, StateError:
	default:
		return fmt.Errorf("%w: reset from %s", ErrInvalidState, e.state)
	}
	e.store = nil
	e.debugEvents = nil
	e.setStateLocked(StateIdle)
	return nil
}

// ResumeWithValue answers the outstanding request. It returns false,
// mutating nothing, when the engine is not waiting or requestID does
// not match the pending request. On success the engine restores the
// state recorded before suspension: a free run continues free-running,
// an interrupted step completes and parks in PAUSED.
//
// ResumeWithValue may be called from inside the OnCommand callback that
// delivered the request.
func (e *Engine) ResumeWithValue(requestID string, v value.Value) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateWaitingForResponse || requestID != e.pending {
		return false
	}
	e.pending = ""
	e.response = &v
	e.setStateLocked(e.prior)
	e.cond.Broadcast()
	return true
}

// errStopRun unwinds the evaluation goroutine after Stop.
var errStopRun = fmt.Errorf("run stopped")

func (e *Engine) run(done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil && r != errStopRun {
			// Programmer error (invariant violation), not a sketch fault.
			panic(r)
		}
	}()

	e.record("run", "program start")
	e.emit(command.ProgramStart(hex.EncodeToString(e.fingerprint[:])))
	if err := e.execProgram(); err != nil {
		e.fail(err)
		return
	}
	e.record("run", "program complete")

	e.mu.Lock()
	// A Stop delivered through the final command's callback already
	// landed in IDLE; the run stays stopped.
	if !e.stopping {
		e.setStateLocked(StateComplete)
	}
	e.mu.Unlock()
}

func (e *Engine) fail(err error) {
	e.record("run", "error: "+err.Error())
	e.emit(command.Error(err.Error()))
	e.mu.Lock()
	e.pending = ""
	cb := e.onError
	e.setStateLocked(StateError)
	e.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (e *Engine) execProgram() error {
	e.declareConstants()
	for _, decl := range e.program.Children {
		if decl.Kind == ast.KindFuncDef {
			continue
		}
		if err := e.execStmt(decl); err != nil {
			return err
		}
	}

	if setup := e.program.FindFunction("setup"); setup != nil {
		if _, err := e.callFunction(setup, nil); err != nil {
			return err
		}
	}
	loopFn := e.program.FindFunction("loop")
	if loopFn == nil {
		e.emit(command.ProgramEnd())
		return nil
	}
	for n := int64(0); ; n++ {
		if e.config.MaxLoopIterations > 0 && n >= e.config.MaxLoopIterations {
			e.emit(command.LoopLimitReached(n))
			return nil
		}
		e.checkpoint()
		if _, err := e.callFunction(loopFn, nil); err != nil {
			return err
		}
	}
}

// checkpoint is the statement boundary: the only place a pause, step or
// stop takes effect. Free runs pass straight through; a step consumes
// its one-statement budget; a paused engine parks here until the host
// resumes, steps or stops.
func (e *Engine) checkpoint() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.stopping {
			panic(errStopRun)
		}
		switch e.state {
		case StateRunning:
			return
		case StateStepping:
			if e.stepBudget > 0 {
				e.stepBudget--
				return
			}
			e.setStateLocked(StatePaused)
		case StatePaused:
			e.cond.Wait()
		default:
			invariant.Invariant(false, "evaluator at checkpoint in state %s", e.state)
		}
	}
}

// awaitHostValue emits a request command and suspends until the host
// answers or stops. The pre-suspension state is recorded first and the
// state flips to WAITING_FOR_RESPONSE before the command is delivered,
// so a host answering from inside its OnCommand callback sees a
// consistent engine.
func (e *Engine) awaitHostValue(build func(id string) command.Command) value.Value {
	e.mu.Lock()
	invariant.Invariant(e.pending == "", "request issued while %q is outstanding", e.pending)
	id := e.ids.Next()
	e.pending = id
	e.prior = e.state
	e.setStateLocked(StateWaitingForResponse)
	e.mu.Unlock()

	e.record("request", id)
	e.emit(build(id))

	e.mu.Lock()
	defer e.mu.Unlock()
	for e.response == nil && !e.stopping {
		e.cond.Wait()
	}
	if e.stopping {
		panic(errStopRun)
	}
	v := *e.response
	e.response = nil
	return v
}

func (e *Engine) emit(cmd command.Command) {
	if e.config.Verbose {
		e.record("command", cmd.Type)
	}
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		panic(errStopRun)
	}
	cb := e.onCommand
	e.inCallback = true
	e.mu.Unlock()
	if cb != nil {
		cb(cmd)
	}
	e.mu.Lock()
	e.inCallback = false
	e.mu.Unlock()
}

func (e *Engine) emitAll(cmds []command.Command) {
	for _, c := range cmds {
		e.emit(c)
	}
}

func (e *Engine) record(event, detail string) {
	if !e.config.Verbose {
		return
	}
	e.mu.Lock()
	e.recordLocked(event, detail)
	e.mu.Unlock()
}

func (e *Engine) recordLocked(event, detail string) {
	e.debugEvents = append(e.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		Detail:    detail,
	})
}
