// Package library implements the hardware-library object registry the
// engine consumes. The engine never inlines library behavior: object
// construction and every method call go through the Registry
// interface, and every instance call may produce host-visible effect
// commands. That keeps the engine decoupled from the emulated library
// catalog, which is maintained separately.
package library

import (
	"fmt"
	"sort"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/core/invariant"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// Result is what an instance or static call produces: a return value
// plus any effect commands the call generated, in order.
type Result struct {
	Value    value.Value
	Commands []command.Command
}

// Registry resolves library types, object construction and method
// dispatch for the engine. Implementations must be deterministic:
// identical call sequences produce identical results and commands.
type Registry interface {
	// HasType reports whether name is a constructible library type.
	HasType(name string) bool

	// Construct builds an object. The engine emits the
	// LibraryObjectInstantiation command itself; Construct may append
	// further effects.
	Construct(typeName, objectName string, args []value.Value) (value.ObjectHandle, []command.Command, error)

	// HasStaticMethod reports whether typeName.method exists without an
	// instance (Serial.begin, EEPROM.read, ...).
	HasStaticMethod(typeName, method string) bool

	// CallStatic dispatches a static method.
	CallStatic(typeName, method string, args []value.Value) (Result, error)

	// CallInstance dispatches a method on a constructed object.
	CallInstance(handle value.ObjectHandle, method string, args []value.Value) (Result, error)

	// Types lists registered type names, sorted. Used for unknown-type
	// suggestions.
	Types() []string
}

// MethodFunc implements one library method against an object's state.
type MethodFunc func(obj *Object, args []value.Value) (Result, error)

// StaticFunc implements one static method against the registry-owned
// type state.
type StaticFunc func(state *TypeState, args []value.Value) (Result, error)

// TypeEntry describes one registered library type.
type TypeEntry struct {
	Name      string
	Construct func(obj *Object, args []value.Value) ([]command.Command, error)
	Methods   map[string]MethodFunc
	Statics   map[string]StaticFunc
}

// TypeState is per-registry mutable state for a type's statics
// (EEPROM contents, Serial configuration). Each engine instance owns
// its own registry, so nothing leaks between runs.
type TypeState struct {
	Fields map[string]value.Value
	Bytes  []byte
}

// Object is a constructed library object. It implements
// value.ObjectHandle; per-object state lives in State.
type Object struct {
	typeName string
	name     string
	State    map[string]value.Value
}

func (o *Object) TypeName() string   { return o.typeName }
func (o *Object) ObjectName() string { return o.name }

// Builtin is the standard catalog implementation of Registry.
// Construction state and static state are instance-owned; a fresh
// Builtin starts every run.
type Builtin struct {
	entries map[string]*TypeEntry
	states  map[string]*TypeState
}

// NewBuiltin creates a registry with the standard catalog (Servo,
// LiquidCrystal, Serial, EEPROM) registered.
func NewBuiltin() *Builtin {
	b := &Builtin{
		entries: make(map[string]*TypeEntry),
		states:  make(map[string]*TypeState),
	}
	b.register(servoEntry())
	b.register(liquidCrystalEntry())
	b.register(serialEntry())
	b.register(eepromEntry())
	return b
}

func (b *Builtin) register(entry *TypeEntry) {
	invariant.Precondition(entry.Name != "", "type entry must be named")
	invariant.Precondition(b.entries[entry.Name] == nil, "duplicate type %s", entry.Name)
	b.entries[entry.Name] = entry
}

func (b *Builtin) state(typeName string) *TypeState {
	st, ok := b.states[typeName]
	if !ok {
		st = &TypeState{Fields: make(map[string]value.Value)}
		b.states[typeName] = st
	}
	return st
}

// HasType reports whether name can be constructed (it has a
// constructor; statics-only types like Serial are not constructible).
func (b *Builtin) HasType(name string) bool {
	entry, ok := b.entries[name]
	return ok && entry.Construct != nil
}

func (b *Builtin) Construct(typeName, objectName string, args []value.Value) (value.ObjectHandle, []command.Command, error) {
	entry, ok := b.entries[typeName]
	if !ok || entry.Construct == nil {
		return nil, nil, fmt.Errorf("unknown library type %q", typeName)
	}
	obj := &Object{
		typeName: typeName,
		name:     objectName,
		State:    make(map[string]value.Value),
	}
	cmds, err := entry.Construct(obj, args)
	if err != nil {
		return nil, nil, fmt.Errorf("construct %s %s: %w", typeName, objectName, err)
	}
	return obj, cmds, nil
}

func (b *Builtin) HasStaticMethod(typeName, method string) bool {
	entry, ok := b.entries[typeName]
	if !ok {
		return false
	}
	_, ok = entry.Statics[method]
	return ok
}

func (b *Builtin) CallStatic(typeName, method string, args []value.Value) (Result, error) {
	entry, ok := b.entries[typeName]
	if !ok {
		return Result{}, fmt.Errorf("unknown library type %q", typeName)
	}
	fn, ok := entry.Statics[method]
	if !ok {
		return Result{}, fmt.Errorf("%s has no method %q", typeName, method)
	}
	return fn(b.state(typeName), args)
}

func (b *Builtin) CallInstance(handle value.ObjectHandle, method string, args []value.Value) (Result, error) {
	obj, ok := handle.(*Object)
	if !ok {
		return Result{}, fmt.Errorf("foreign object handle %T", handle)
	}
	entry, ok := b.entries[obj.typeName]
	if !ok {
		return Result{}, fmt.Errorf("unknown library type %q", obj.typeName)
	}
	fn, ok := entry.Methods[method]
	if !ok {
		return Result{}, fmt.Errorf("%s has no method %q", obj.typeName, method)
	}
	return fn(obj, args)
}

func (b *Builtin) Types() []string {
	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// methodCall is the shared effect-command shape for object methods.
func methodCall(obj *Object, method string, args []value.Value) command.Command {
	return command.LibraryMethodCall(obj.ObjectName(), method, commandArgs(args))
}

func commandArgs(args []value.Value) []command.Value {
	out := make([]command.Value, len(args))
	for i, a := range args {
		switch a.Kind {
		case value.Bool:
			out[i] = command.Bool(a.B)
		case value.Float64:
			out[i] = command.Float(a.F)
		case value.String:
			out[i] = command.Str(a.S)
		default:
			out[i] = command.Int(a.AsInt64())
		}
	}
	return out
}

// argInt extracts args[i] as an integer, with a defaulting bound check.
func argInt(args []value.Value, i int, def int64) int64 {
	if i >= len(args) {
		return def
	}
	return args[i].AsInt64()
}
