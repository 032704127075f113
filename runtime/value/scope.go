package value

import (
	"fmt"
	"sort"

	"github.com/breadboard-sim/breadboard/core/invariant"
)

// Scope is one lexical level: a mapping from identifier to a value
// slot. Slots are pointers so statics can bind the same storage across
// calls.
type Scope struct {
	vars   map[string]*Value
	parent *Scope
}

// Store is the engine's scope stack. Lookup walks from the current
// scope outward to the global scope; shadowing is allowed. Function
// frames root at the global scope (no closures over the caller).
// Block and function scopes die on exit; statics and globals persist.
type Store struct {
	global  *Scope
	current *Scope
	frames  []*Scope          // scopes to restore on PopFrame
	statics map[string]*Value // "func.name" -> persistent slot
}

// NewStore creates a store with an empty global scope.
func NewStore() *Store {
	global := &Scope{vars: make(map[string]*Value)}
	return &Store{
		global:  global,
		current: global,
		statics: make(map[string]*Value),
	}
}

// EnterScope opens a block scope nested in the current one.
func (s *Store) EnterScope() {
	s.current = &Scope{vars: make(map[string]*Value), parent: s.current}
}

// ExitScope closes the current block scope, destroying its bindings.
func (s *Store) ExitScope() {
	invariant.Precondition(s.current != s.global, "cannot exit the global scope")
	s.current = s.current.parent
}

// PushFrame opens a function scope rooted at the global scope. The
// caller's locals are not visible inside the frame.
func (s *Store) PushFrame() {
	s.frames = append(s.frames, s.current)
	s.current = &Scope{vars: make(map[string]*Value), parent: s.global}
}

// PopFrame discards the function scope and everything declared in it.
func (s *Store) PopFrame() {
	invariant.Precondition(len(s.frames) > 0, "no frame to pop")
	s.current = s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
}

// Declare binds name in the current scope. Redeclaring a name already
// bound in the same scope is an error; shadowing an outer binding is
// not.
func (s *Store) Declare(name string, v Value) error {
	if _, exists := s.current.vars[name]; exists {
		return fmt.Errorf("redeclaration of %q", name)
	}
	slot := v
	s.current.vars[name] = &slot
	return nil
}

// DeclareStatic binds a function-local static. The persistent slot is
// keyed by owner (the declaring function); init is evaluated only the
// first time the declaration executes, matching C static semantics.
func (s *Store) DeclareStatic(owner, name string, init func() (Value, error)) error {
	if _, exists := s.current.vars[name]; exists {
		return fmt.Errorf("redeclaration of %q", name)
	}
	key := owner + "." + name
	slot, ok := s.statics[key]
	if !ok {
		v, err := init()
		if err != nil {
			return err
		}
		slot = &v
		s.statics[key] = slot
	}
	s.current.vars[name] = slot
	return nil
}

// Get resolves name, walking from the current scope outward.
func (s *Store) Get(name string) (Value, bool) {
	for scope := s.current; scope != nil; scope = scope.parent {
		if slot, ok := scope.vars[name]; ok {
			return *slot, true
		}
	}
	return Value{}, false
}

// Set assigns to an existing binding, walking outward like Get.
func (s *Store) Set(name string, v Value) error {
	for scope := s.current; scope != nil; scope = scope.parent {
		if slot, ok := scope.vars[name]; ok {
			*slot = v
			return nil
		}
	}
	return fmt.Errorf("undefined identifier %q", name)
}

// VisibleNames returns every identifier resolvable from the current
// scope, sorted. Used for "did you mean" suggestions.
func (s *Store) VisibleNames() []string {
	seen := make(map[string]bool)
	for scope := s.current; scope != nil; scope = scope.parent {
		for name := range scope.vars {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
