package analysis

import (
	"fmt"
	"sync"

	"stackscope/internal/classfile"
	"stackscope/internal/logging"
)

var (
	debugMu sync.Mutex
	debugLg *logging.LoggerCloser
)

// debugLogger returns the shared debug logger, opening it on first use.
// Callers check logging.IsDebug first.
func debugLogger() *logging.LoggerCloser {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugLg == nil {
		debugLg = logging.NewLogger()
	}
	return debugLg
}

// CloseDebugLog closes the debug trace log. A later trace opens a new one.
func CloseDebugLog() error {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugLg == nil {
		return nil
	}
	err := debugLg.Close()
	debugLg = nil
	return err
}

// LocalVariable is one declared variable of a method.
type LocalVariable struct {
	ID        int // row in the LocalVariableTable
	Method    string
	Name      string
	Type      *Type
	Parameter bool
	Start     int
	Length    int
	Slot      int
}

// Range returns the validity range. Lookups treat end as inclusive.
func (v *LocalVariable) Range() (start, end int) {
	return v.Start, v.Start + v.Length
}

func (v *LocalVariable) String() string {
	start, end := v.Range()
	return fmt.Sprintf("%s (%s) [%d -> %d] between [%d,%d]", v.Name, v.Type, v.ID, v.Slot, start, end)
}

// LocalVariables is the immutable variable table of one method.
type LocalVariables struct {
	vars   []*LocalVariable
	bySlot map[int][]*LocalVariable
}

// NewLocalVariables decodes a LocalVariableTable. params is the number of
// declared parameters; a static method's parameters are rows [0, params),
// an instance method's are rows [1, params] after "this".
func NewLocalVariables(method string, static bool, params int, entries []classfile.LocalVariableEntry) (*LocalVariables, error) {
	lv := &LocalVariables{bySlot: make(map[int][]*LocalVariable)}
	for i, e := range entries {
		typ, err := ParseType(e.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("local variable %s: %w", e.Name, err)
		}
		v := &LocalVariable{
			ID:        i,
			Method:    method,
			Name:      e.Name,
			Type:      typ,
			Parameter: isParameter(static, i, params),
			Start:     e.Start,
			Length:    e.Length,
			Slot:      e.Slot,
		}
		lv.vars = append(lv.vars, v)
		lv.bySlot[v.Slot] = append(lv.bySlot[v.Slot], v)

		if logging.IsDebug() {
			debugLogger().Debug("found local variable", "method", method, "var", v.String())
		}
	}
	return lv, nil
}

func isParameter(static bool, index, params int) bool {
	if static {
		return index < params
	}
	return index > 0 && index <= params
}

// Len returns the number of declared variables.
func (lv *LocalVariables) Len() int {
	if lv == nil {
		return 0
	}
	return len(lv.vars)
}

// Get returns the variable with the given table row.
func (lv *LocalVariables) Get(id int) (*LocalVariable, bool) {
	if lv == nil || id < 0 || id >= len(lv.vars) {
		return nil, false
	}
	return lv.vars[id], true
}

// All returns the variables in table order.
func (lv *LocalVariables) All() []*LocalVariable {
	if lv == nil {
		return nil
	}
	return lv.vars
}

// Find returns the variable stored in slot at offset. A variable whose range
// covers offset wins; otherwise the one starting soonest after offset, the
// lowest table row on a tie. A slot reused by successive variables resolves
// to the one about to be stored when queried between their ranges.
func (lv *LocalVariables) Find(slot, offset int) (*LocalVariable, bool) {
	if lv == nil {
		return nil, false
	}
	var next *LocalVariable
	for _, v := range lv.bySlot[slot] {
		start, end := v.Range()
		if end < offset {
			continue
		}
		if start <= offset {
			if logging.IsDebug() {
				debugLogger().Debug("resolved local variable", "slot", slot, "offset", offset, "var", v.Name)
			}
			return v, true
		}
		if next == nil || start-offset < next.Start-offset {
			next = v
		}
	}
	if next != nil {
		if logging.IsDebug() {
			debugLogger().Debug("resolved local variable by distance", "slot", slot, "offset", offset, "var", next.Name)
		}
		return next, true
	}
	if logging.IsDebug() {
		debugLogger().Debug("local variable not found", "slot", slot, "offset", offset)
	}
	return nil, false
}
