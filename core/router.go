// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package core

import (
	"fmt"
	"sort"
	"sync"

	log "github.com/ChainSafe/log15"
	"github.com/huandu/xstrings"
)

type TargetKind int

const (
	TargetNotFound TargetKind = iota
	TargetFunction
	TargetModule
	TargetRemote
)

func (k TargetKind) String() string {
	switch k {
	case TargetFunction:
		return "function"
	case TargetModule:
		return "module"
	case TargetRemote:
		return "remote"
	default:
		return "not_found"
	}
}

// Target is the outcome of resolving the first command-line word.
type Target struct {
	Kind     TargetKind
	Name     string
	Function string // set for TargetFunction and TargetModule
	Address  string // set for TargetRemote
	Args     []string
}

// Tables is the state Resolve consults, in resolution order.
type Tables struct {
	Shortcuts map[string]string
	Functions map[string]bool
	Modules   map[string]map[string]bool
	Namespace map[string]string
}

// Resolve maps args onto a Target: shortcut expansion, then a root
// function, then a module (whose function is the next word), then a
// remote module from the namespace.
func Resolve(args []string, t Tables) Target {
	if len(args) == 0 {
		return Target{Kind: TargetNotFound}
	}
	word := Normalize(args[0])
	if full, ok := t.Shortcuts[word]; ok {
		word = full
	}
	rest := args[1:]

	if t.Functions[word] {
		return Target{Kind: TargetFunction, Name: word, Function: word, Args: rest}
	}
	if fns, ok := t.Modules[word]; ok {
		target := Target{Kind: TargetModule, Name: word, Args: rest}
		if len(rest) > 0 {
			fn := Normalize(rest[0])
			if fns[fn] {
				target.Function = fn
				target.Args = rest[1:]
			}
		}
		return target
	}
	// remote names are registered verbatim
	if addr, ok := t.Namespace[args[0]]; ok {
		return Target{Kind: TargetRemote, Name: args[0], Address: addr, Args: rest}
	}
	return Target{Kind: TargetNotFound, Name: args[0], Args: rest}
}

// Normalize turns setWeights / set-weights into set_weights.
func Normalize(name string) string {
	return xstrings.ToSnakeCase(name)
}

type Handler func(args []string) (interface{}, error)

// Router forwards a command line to the function or module that owns it
type Router struct {
	shortcuts map[string]string
	functions map[string]Handler
	modules   map[string]map[string]Handler
	namespace func() (map[string]string, error)
	lock      *sync.RWMutex
	log       log.Logger
}

func NewRouter(log log.Logger) *Router {
	return &Router{
		shortcuts: make(map[string]string),
		functions: make(map[string]Handler),
		modules:   make(map[string]map[string]Handler),
		lock:      &sync.RWMutex{},
		log:       log,
	}
}

func (r *Router) Handle(name string, h Handler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.functions[Normalize(name)] = h
}

func (r *Router) HandleModule(module string, fns map[string]Handler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	m := make(map[string]Handler, len(fns))
	for name, h := range fns {
		m[Normalize(name)] = h
	}
	r.log.Debug("Registering module in router", "module", module, "functions", len(m))
	r.modules[Normalize(module)] = m
}

func (r *Router) Shortcut(alias, name string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.shortcuts[Normalize(alias)] = Normalize(name)
}

// SetNamespace installs the lookup used for remote module names.
func (r *Router) SetNamespace(fn func() (map[string]string, error)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.namespace = fn
}

func (r *Router) tables() (Tables, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	t := Tables{
		Shortcuts: r.shortcuts,
		Functions: make(map[string]bool, len(r.functions)),
		Modules:   make(map[string]map[string]bool, len(r.modules)),
	}
	for name := range r.functions {
		t.Functions[name] = true
	}
	for module, fns := range r.modules {
		set := make(map[string]bool, len(fns))
		for name := range fns {
			set[name] = true
		}
		t.Modules[module] = set
	}
	if r.namespace != nil {
		ns, err := r.namespace()
		if err != nil {
			return t, err
		}
		t.Namespace = ns
	}
	return t, nil
}

// Functions lists the root functions, sorted.
func (r *Router) Functions() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) Resolve(args []string) (Target, error) {
	t, err := r.tables()
	if err != nil {
		r.log.Warn("namespace unavailable, remote names not resolved", "err", err)
	}
	return Resolve(args, t), nil
}

// Dispatch resolves args and runs the handler they name.
func (r *Router) Dispatch(args []string) (interface{}, error) {
	target, err := r.Resolve(args)
	if err != nil {
		return nil, err
	}
	r.log.Trace("Dispatch", "kind", target.Kind, "name", target.Name, "function", target.Function)

	r.lock.RLock()
	var h Handler
	switch target.Kind {
	case TargetFunction:
		h = r.functions[target.Function]
	case TargetModule:
		if target.Function == "" {
			fns := make([]string, 0, len(r.modules[target.Name]))
			for name := range r.modules[target.Name] {
				fns = append(fns, name)
			}
			r.lock.RUnlock()
			sort.Strings(fns)
			return fns, nil
		}
		h = r.modules[target.Name][target.Function]
	}
	r.lock.RUnlock()

	switch target.Kind {
	case TargetFunction, TargetModule:
		return h(target.Args)
	case TargetRemote:
		return map[string]string{"name": target.Name, "address": target.Address}, nil
	default:
		return nil, fmt.Errorf("no module, function or server found for %s", target.Name)
	}
}
