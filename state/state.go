package state

import (
	"fmt"

	"github.com/kperifds/wasmtaint/errs"
	"github.com/kperifds/wasmtaint/internal/counter"
	"github.com/kperifds/wasmtaint/ir"
)

// factKey interns a Fact by its identity-defining fields, so that
// CacheFact/AddStatement/InitFunction never materialize the same
// (function, variable, pc, next_pc) fact twice (spec.md §3 Invariant 5
// depends on this for path-edge dedup to be meaningful).
type factKey struct {
	function string
	variable string
	pc       int
	nextPC   int
}

// State is the per-analysis-invocation owner of the fact store, the ordered
// variable lists, and the function registry (spec.md §4.1). It is never
// shared across invocations (spec.md §5).
type State struct {
	vars      map[string][]Variable
	functions map[string]FunctionMeta

	facts      []Fact
	factIndex  map[factKey]FactID
	byFunction map[string][]FactID

	initFacts map[string][]FactID

	factCounter counter.Counter
}

// New creates an empty State.
func New() *State {
	return &State{
		vars:       make(map[string][]Variable),
		functions:  make(map[string]FunctionMeta),
		factIndex:  make(map[factKey]FactID),
		byFunction: make(map[string][]FactID),
		initFacts:  make(map[string][]FactID),
	}
}

// IsFunctionDefined reports whether name has been registered via InitFunction.
func (s *State) IsFunctionDefined(name string) bool {
	_, ok := s.functions[name]

	return ok
}

// Fact resolves a FactID to its value. Panics on an id this State never
// produced — that is always a programming error within the engine, not a
// condition callers need to recover from.
func (s *State) Fact(id FactID) Fact {
	return s.facts[id]
}

// CacheFact interns fact, returning the id of the canonical copy: if a fact
// with the same (function, variable, pc, next_pc) already exists, its id is
// returned unchanged and no new Fact is appended (spec.md §3, "Facts are
// interned: once cached the same identity is reused").
func (s *State) CacheFact(function string, fact Fact) FactID {
	key := factKey{function: function, variable: fact.BelongsToVar, pc: fact.PC, nextPC: fact.NextPC}
	if id, ok := s.factIndex[key]; ok {
		return id
	}

	fact.ID = FactID(s.factCounter.Get())
	s.facts = append(s.facts, fact)
	s.factIndex[key] = fact.ID
	s.byFunction[function] = append(s.byFunction[function], fact.ID)

	return fact.ID
}

// Taut builds the (uninterned) value of the tautological fact for function
// at pc; callers typically pass it straight to CacheFact.
func (s *State) Taut(function string, pc int) Fact {
	return Fact{
		BelongsToVar: ir.TautName,
		Function:     function,
		PC:           pc,
		NextPC:       pc,
		Track:        0,
		IsTaut:       true,
	}
}

// AddMemoryVar interns the memory pseudo-variable "mem@<offset>" for
// function, registering it in the function's variable list if absent
// (spec.md §4.1's add_memory_var: idempotent).
func (s *State) AddMemoryVar(function string, offset float64) Variable {
	name := ir.MemoryCellName(offset)

	for _, v := range s.vars[function] {
		if v.Name == name {
			return v
		}
	}

	v := Variable{
		Name:         name,
		Function:     function,
		IsMemory:     true,
		MemoryOffset: offset,
	}
	s.vars[function] = append(s.vars[function], v)

	return v
}

// InitFunction registers fn's variables (taut first, then Definitions in
// declaration order) and materializes one fact per variable at pc, caching
// the result in init_facts. Idempotent: re-entry at a pc no smaller than the
// smallest pc already observed for fn returns the cached vector unchanged;
// re-entry at a strictly smaller pc reinitializes (supporting self-recursive
// analysis that starts below the prior entry point), per spec.md §4.1 and
// the ground truth in original_source/ifds/src/icfg/graph.rs.
func (s *State) InitFunction(fn *ir.Function, pc int) ([]FactID, error) {
	if _, ok := s.functions[fn.Name]; ok {
		minPC := s.minObservedPC(fn.Name)
		if minPC <= pc {
			cached, ok := s.initFacts[fn.Name]
			if !ok {
				return nil, errs.New(errs.KindInvariant, "state.InitFunction", fmt.Errorf("function %s has no cached init facts", fn.Name))
			}

			return cached, nil
		}
		// else fall through and reinitialize.
	}

	s.functions[fn.Name] = FunctionMeta{
		Name:        fn.Name,
		Definitions: len(fn.Definitions),
		ReturnCount: fn.ResultsLen,
	}

	variables := make([]Variable, 0, len(fn.Definitions)+1)
	variables = append(variables, Variable{Name: ir.TautName, Function: fn.Name, IsTaut: true})

	for _, reg := range fn.Definitions {
		r, err := ir.ParseRegister(reg)
		if err != nil {
			return nil, errs.Wrap("state.InitFunction", err)
		}

		variables = append(variables, Variable{
			Name:     reg,
			Function: fn.Name,
			IsGlobal: r.IsGlobal,
		})
	}

	s.vars[fn.Name] = variables

	facts := make([]FactID, 0, len(variables))
	for track, v := range variables {
		id := s.CacheFact(fn.Name, Fact{
			BelongsToVar: v.Name,
			Function:     fn.Name,
			PC:           pc,
			NextPC:       pc,
			Track:        track,
			IsTaut:       v.IsTaut,
			IsGlobal:     v.IsGlobal,
			IsMemory:     v.IsMemory,
			MemoryOffset: v.MemoryOffset,
		})
		facts = append(facts, id)
	}

	s.initFacts[fn.Name] = facts

	return facts, nil
}

// minObservedPC returns the smallest PC of any fact cached for function,
// used by InitFunction to detect the self-recursion-below-entry edge case.
func (s *State) minObservedPC(function string) int {
	min := -1
	for _, id := range s.byFunction[function] {
		f := s.facts[id]
		if min == -1 || f.PC < min {
			min = f.PC
		}
	}

	return min
}

// GetFactsAt returns the ids of every fact belonging to function whose
// NextPC equals pc (spec.md §4.1's get_facts_at).
func (s *State) GetFactsAt(function string, pc int) []FactID {
	var out []FactID
	for _, id := range s.byFunction[function] {
		if s.facts[id].NextPC == pc {
			out = append(out, id)
		}
	}

	return out
}

// GetTrack returns the track (column index) of variable within function, if
// known.
func (s *State) GetTrack(function, variable string) (int, bool) {
	for i, v := range s.vars[function] {
		if v.Name == variable {
			return i, true
		}
	}

	return 0, false
}

// GetVar returns the Variable named variable within function, if registered.
func (s *State) GetVar(function, variable string) (Variable, bool) {
	for _, v := range s.vars[function] {
		if v.Name == variable {
			return v, true
		}
	}

	return Variable{}, false
}

// Vars returns the ordered variable list for function (taut first).
func (s *State) Vars(function string) []Variable {
	return s.vars[function]
}

// FunctionMeta returns the registered metadata for function, if any.
func (s *State) FunctionMeta(function string) (FunctionMeta, bool) {
	fm, ok := s.functions[function]

	return fm, ok
}

// GetTaut returns the id of function's interned taut fact at its smallest
// observed pc. Fails with errs.KindInvariant if function was never
// initialized.
func (s *State) GetTaut(function string) (FactID, error) {
	best := FactID(0)
	found := false

	for _, id := range s.byFunction[function] {
		f := s.facts[id]
		if !f.IsTaut {
			continue
		}
		if !found || f.PC < s.facts[best].PC {
			best = id
			found = true
		}
	}

	if !found {
		return 0, errs.New(errs.KindInvariant, "state.GetTaut", fmt.Errorf("no taut fact cached for function %s", function))
	}

	return best, nil
}

// AddStatement returns the (possibly newly created) facts associated with
// variable at pc within fn, per spec.md §4.1's add_statement. When variable
// names a registered Variable, exactly one Fact is created/returned, tracked
// at that Variable's column.
func (s *State) AddStatement(fn *ir.Function, pc int, variable string) ([]FactID, error) {
	track, ok := s.GetTrack(fn.Name, variable)
	if !ok {
		return nil, errs.New(errs.KindInvariant, "state.AddStatement", fmt.Errorf("variable %s not registered for function %s", variable, fn.Name))
	}

	v, _ := s.GetVar(fn.Name, variable)

	id := s.CacheFact(fn.Name, Fact{
		BelongsToVar: v.Name,
		Function:     fn.Name,
		PC:           pc,
		NextPC:       pc,
		Track:        track,
		IsTaut:       v.IsTaut,
		IsGlobal:     v.IsGlobal,
		IsMemory:     v.IsMemory,
		MemoryOffset: v.MemoryOffset,
	})

	return []FactID{id}, nil
}
