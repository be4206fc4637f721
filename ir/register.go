package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kperifds/wasmtaint/errs"
)

// TautName is the reserved name of the tautological fact (spec.md §3).
const TautName = "taut"

// Reg classifies a parsed register name, mirroring original_source/ifds/src
// /symbol_table.rs's Reg::Normal/Reg::Global split: the sign of the integer
// suffix is the sole marker of a global variable.
type Reg struct {
	// Value is the signed register index (e.g. 2 for "%2", -1 for "%-1").
	Value int
	// IsGlobal is true when Value < 0.
	IsGlobal bool
}

// ParseRegister parses a register name of the form "%n" (n a signed decimal
// integer), per spec.md §3. It fails (KindShape) if name doesn't start with
// "%" or the suffix isn't a valid signed integer.
func ParseRegister(name string) (Reg, error) {
	if !strings.HasPrefix(name, "%") {
		return Reg{}, errs.New(errs.KindShape, "ir.ParseRegister", fmt.Errorf("register %q must start with %%", name))
	}

	n, err := strconv.Atoi(name[1:])
	if err != nil {
		return Reg{}, errs.New(errs.KindShape, "ir.ParseRegister", fmt.Errorf("register %q: %w", name, err))
	}

	return Reg{Value: n, IsGlobal: n < 0}, nil
}

// IsMemoryCell reports whether name has the reserved "<var>@<offset>" shape
// of a memory pseudo-variable (spec.md §3), returning the parsed offset.
func IsMemoryCell(name string) (base string, offset float64, ok bool) {
	idx := strings.LastIndexByte(name, '@')
	if idx < 0 {
		return "", 0, false
	}

	off, err := strconv.ParseFloat(name[idx+1:], 64)
	if err != nil {
		return "", 0, false
	}

	return name[:idx], off, true
}

// MemoryCellName formats the reserved name for the memory cell at offset,
// matching original_source/ifds/src/icfg/graph.rs's add_memory_var: always
// rooted at "mem", per spec.md §4.1's add_memory_var contract.
func MemoryCellName(offset float64) string {
	return fmt.Sprintf("mem@%g", offset)
}
