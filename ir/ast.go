// Package ir defines the textual intermediate representation consumed by
// the tabulation engine: a tagged union of instructions, function records,
// and a program record, per spec.md §3 (Data Model) and §6 (the grammar).
//
// The IR is produced externally by a Wasm-to-IR lifter (out of scope, per
// spec.md §1); this package only defines the grammar's target shape and
// parses its textual form.
package ir

import "fmt"

// ValueType is one of Wasm's four primitive numeric types. spec.md §3 notes
// that IR constants carry a single f64 encoding any of the four and that the
// analysis is type-agnostic at this layer; ValueType is retained on Const
// purely for fidelity with the source IR and is never branched on by a flow
// function (spec.md §9, Open Questions).
type ValueType int

const (
	I32 ValueType = iota
	I64
	F32
	F64
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// Instruction is the tagged union of IR instructions (spec.md §3). Each
// variant below is a distinct Go type implementing the marker method, the
// idiomatic stand-in for a Rust enum with exhaustive matching (spec.md §9,
// "Tagged unions for instructions and edges").
type Instruction interface {
	isInstruction()
	// String renders a readable form of the instruction modeled on the
	// textual grammar (spec.md §6). List operands print in Go slice notation
	// and Unknown prints as "dest = UNKNOWN", so the result is not always accepted by
	// Parse.
	String() string
}

// Block marks the start of a basic block addressed by Label.
type Block struct{ Label string }

// Unop assigns Src's unary-op result to Dest.
type Unop struct{ Dest, Src string }

// BinOp assigns the binary-op result of A and B to Dest.
type BinOp struct{ Dest, A, B string }

// Const assigns a literal value to Dest. Type is retained for fidelity only.
type Const struct {
	Dest  string
	Value float64
	Type  ValueType
}

// Assign copies Src into Dest.
type Assign struct{ Dest, Src string }

// Jump transfers control unconditionally to Target.
type Jump struct{ Target string }

// Call invokes Callee with Params, binding results into Dests.
type Call struct {
	Callee string
	Params []string
	Dests  []string
}

// CallIndirect invokes one of Callees (a disjunction of candidates, per
// spec.md §4.4) with Params, binding results into Dests.
type CallIndirect struct {
	Callees []string
	Params  []string
	Dests   []string
}

// Kill clears Dest from the live set.
type Kill struct{ Dest string }

// Conditional branches to one of Targets based on Src; the first target is
// the "then" branch, the (optional) second is "else".
type Conditional struct {
	Src     string
	Targets []string
}

// Return exits the function, producing Regs as the returned values.
type Return struct{ Regs []string }

// Table is a multi-way branch: the last target is the default ("else").
type Table struct{ Targets []string }

// Phi merges A and B into Dest at a confluence point.
type Phi struct{ Dest, A, B string }

// Unknown assigns a statically-unknown value to Dest.
type Unknown struct{ Dest string }

// Store writes Src into linear memory at the cell addressed by Offset+Index.
type Store struct {
	Src    string
	Offset float64
	Index  string
	Align  int
	Width  int
}

// Load reads the memory cell addressed by Offset+Index into Dest.
type Load struct {
	Dest   string
	Offset float64
	Index  string
	Align  int
}

func (Block) isInstruction()        {}
func (Unop) isInstruction()         {}
func (BinOp) isInstruction()        {}
func (Const) isInstruction()        {}
func (Assign) isInstruction()       {}
func (Jump) isInstruction()         {}
func (Call) isInstruction()         {}
func (CallIndirect) isInstruction() {}
func (Kill) isInstruction()         {}
func (Conditional) isInstruction()  {}
func (Return) isInstruction()       {}
func (Table) isInstruction()        {}
func (Phi) isInstruction()          {}
func (Unknown) isInstruction()      {}
func (Store) isInstruction()        {}
func (Load) isInstruction()         {}

func (i Block) String() string  { return fmt.Sprintf("BLOCK %s", i.Label) }
func (i Unop) String() string   { return fmt.Sprintf("%s = op %s", i.Dest, i.Src) }
func (i BinOp) String() string  { return fmt.Sprintf("%s = %s op %s", i.Dest, i.A, i.B) }
func (i Const) String() string  { return fmt.Sprintf("%s = %g", i.Dest, i.Value) }
func (i Assign) String() string { return fmt.Sprintf("%s = %s", i.Dest, i.Src) }
func (i Jump) String() string   { return fmt.Sprintf("GOTO %s", i.Target) }
func (i Call) String() string {
	return fmt.Sprintf("%v <- CALL %s(%v)", i.Dests, i.Callee, i.Params)
}
func (i CallIndirect) String() string {
	return fmt.Sprintf("%v <- CALL INDIRECT %v(%v)", i.Dests, i.Callees, i.Params)
}
func (i Kill) String() string { return fmt.Sprintf("KILL %s", i.Dest) }
func (i Conditional) String() string {
	return fmt.Sprintf("IF %s THEN GOTO %v", i.Src, i.Targets)
}
func (i Return) String() string { return fmt.Sprintf("RETURN %v;", i.Regs) }
func (i Table) String() string  { return fmt.Sprintf("TABLE GOTO %v", i.Targets) }
func (i Phi) String() string    { return fmt.Sprintf("%s = phi %s %s", i.Dest, i.A, i.B) }
func (i Unknown) String() string { return fmt.Sprintf("%s = UNKNOWN", i.Dest) }
func (i Store) String() string {
	return fmt.Sprintf("STORE %s AT %g + %s ALIGN %d %d", i.Src, i.Offset, i.Index, i.Align, i.Width)
}
func (i Load) String() string {
	return fmt.Sprintf("%s = LOAD %s OFFSET %g ALIGN %d", i.Dest, i.Index, i.Offset, i.Align)
}

// Function is an IR function record (spec.md §3). Definitions enumerates
// every register the function touches (locals and globals); Params is a
// prefix of Definitions.
type Function struct {
	Name         string
	Params       []string
	Definitions  []string
	ResultsLen   int
	Instructions []Instruction
}

// NumDefinitions returns the number of tracked registers, for meta reporting.
func (f *Function) NumDefinitions() int { return len(f.Definitions) }

// NumInstructions returns the instruction count, for meta reporting.
func (f *Function) NumInstructions() int { return len(f.Instructions) }

// Program is the full IR module: a flat list of functions, uniquely named.
type Program struct {
	Functions []Function
}

// FindFunction returns a pointer to the function named name, or nil.
func (p *Program) FindFunction(name string) *Function {
	for i := range p.Functions {
		if p.Functions[i].Name == name {
			return &p.Functions[i]
		}
	}

	return nil
}
