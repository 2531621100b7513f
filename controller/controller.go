// Package controller implements the host command surface of spec §4.5/§6:
// it owns one processor instance, serializes every mutating command behind
// a single lock, and hands back snapshots to read-only queries. Every
// method, StepTimes included, holds that lock for its whole call. Grounded
// on the method set of the teacher's service.DebuggerService, rewritten
// against the new mode-banked vm.VM and the spec's exact command table.
package controller

import (
	"os"
	"strings"
	"sync"

	"github.com/armcore/arm7tdmi/config"
	"github.com/armcore/arm7tdmi/loader"
	"github.com/armcore/arm7tdmi/parser"
	"github.com/armcore/arm7tdmi/vm"
)

// Diagnostic is one assembly error, per §4.1's `{line_number, message}` shape.
type Diagnostic struct {
	LineNumber int    `json:"line_number"`
	Message    string `json:"message"`
}

// ProcessorInfo is the snapshot returned by processor_info.
type ProcessorInfo struct {
	File           string `json:"file"`
	State          string `json:"state"`
	ErrorMessage   string `json:"error,omitempty"`
	PreviousPC     uint32 `json:"previous_pc"`
	CurrentCond    string `json:"current_cond"`
	Steps          uint64 `json:"steps"`
	NonSeqCycles   uint64 `json:"nonseq_cycles"`
	SeqCycles      uint64 `json:"seq_cycles"`
	InternalCycles uint64 `json:"internal_cycles"`
	Output         string `json:"output"`
}

// LineAt is the response shape for line_at: the raw memory word, its
// disassembly (when it decodes to something printable), and an optional
// source comment recorded at that address.
type LineAt struct {
	Value   uint32  `json:"value"`
	Instr   *string `json:"instr,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// Controller owns one vm.VM and arbitrates every command the host issues
// against it (§5: "All mutating entry points run to completion under a
// single exclusive lock over the processor instance").
type Controller struct {
	mu sync.Mutex

	machine   *vm.VM
	program   *parser.Program
	file      string
	maxCycles uint64 // from config.Execution.MaxCycles; bounds a single StepTimes batch

	lines  map[int]uint32    // source line number -> emitted address
	byAddr map[uint32]string // address -> source comment, for line_at
}

// New returns a Controller over a freshly hard-reset VM, configured with
// config.DefaultConfig()'s execution limits.
func New() *Controller {
	return NewWithConfig(config.DefaultConfig())
}

// NewWithConfig returns a Controller honoring cfg's execution settings, the
// way the teacher's main.go threads a loaded *config.Config through to the
// debugger service. A zero or missing MaxCycles falls back to
// vm.DefaultMaxCycles.
func NewWithConfig(cfg *config.Config) *Controller {
	maxCycles := uint64(vm.DefaultMaxCycles)
	if cfg != nil && cfg.Execution.MaxCycles > 0 {
		maxCycles = cfg.Execution.MaxCycles
	}
	return &Controller{
		machine:   vm.NewVM(),
		maxCycles: maxCycles,
		lines:     make(map[int]uint32),
		byAddr:    make(map[uint32]string),
	}
}

// LoadProgramRequest carries exactly one of Path or Contents, per §6's
// `load_program` input (`{path}` or `{contents}`).
type LoadProgramRequest struct {
	Path     string
	Contents string
}

// LoadProgram assembles the given source, and on success replaces the
// current program and soft-resets the VM (§4.5). On any assembly error the
// VM is left exactly as it was, and the full diagnostic list is returned.
func (c *Controller) LoadProgram(req LoadProgramRequest) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()

	source := req.Contents
	filename := "contents"
	if req.Path != "" {
		filename = req.Path
		data, err := os.ReadFile(req.Path) // #nosec G304 -- host-supplied assembly file path
		if err != nil {
			return []Diagnostic{{LineNumber: 0, Message: err.Error()}}
		}
		source = string(data)
	}

	p := parser.NewParser(source, filename)
	program, err := p.Parse()
	if err != nil {
		return diagnosticsFromError(err)
	}

	machine := vm.NewVM()
	if _, err := loader.LoadProgramIntoVM(machine, program); err != nil {
		return []Diagnostic{{LineNumber: 0, Message: err.Error()}}
	}

	c.machine = machine
	c.program = program
	c.file = filename
	// §4.5: load_program soft-resets on success; §3 pins PC to 0 on soft
	// reset, so assembled programs are expected to originate at address 0.
	c.machine.SoftReset()

	c.lines = make(map[int]uint32)
	c.byAddr = make(map[uint32]string)
	for _, inst := range program.Instructions {
		c.lines[inst.Pos.Line] = inst.Address
		if inst.Comment != "" {
			c.byAddr[inst.Address] = inst.Comment
		}
	}
	for _, dir := range program.Directives {
		c.lines[dir.Pos.Line] = dir.Address
		if dir.Comment != "" {
			c.byAddr[dir.Address] = dir.Comment
		}
	}

	return nil
}

// diagnosticsFromError converts a parser.ErrorList (or any other error) into
// the host-visible diagnostic list.
func diagnosticsFromError(err error) []Diagnostic {
	if el, ok := err.(*parser.ErrorList); ok {
		out := make([]Diagnostic, 0, len(el.Errors))
		for _, e := range el.Errors {
			out = append(out, Diagnostic{LineNumber: e.Pos.Line, Message: e.Message})
		}
		return out
	}
	return []Diagnostic{{LineNumber: 0, Message: err.Error()}}
}

// Reset performs a soft or hard reset per §3's lifecycle rules.
func (c *Controller) Reset(hard bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hard {
		c.machine.HardReset()
		c.program = nil
		c.file = ""
		c.lines = make(map[int]uint32)
		c.byAddr = make(map[uint32]string)
		return
	}
	c.machine.SoftReset()
}

// StepTimes executes at most n instructions, stopping early on halt, error,
// breakpoint, or the configured max_cycles limit on the number of steps in
// this call (a runaway guard against a misconfigured host, not a spec-level
// stop condition). No SWI requests input, so it never stops to wait for
// input. It returns the new terminal echo (the bytes
// appended to Output during this call) whenever the VM produced any,
// matching `Option<String>`.
func (c *Controller) StepTimes(n uint32) (newOutput string, hasOutput bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := len(c.machine.Output)
	for i := uint32(0); i < n; i++ {
		if c.machine.State != vm.RunRunning {
			break
		}
		if uint64(i) >= c.maxCycles {
			break
		}
		if err := c.machine.Step(); err != nil {
			break
		}
	}

	if len(c.machine.Output) > start {
		return string(c.machine.Output[start:]), true
	}
	return "", false
}

// ProcessorInfo returns a snapshot of the run state, cycle counters, and
// accumulated terminal output.
func (c *Controller) ProcessorInfo() ProcessorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := ProcessorInfo{
		File:           c.file,
		State:          c.machine.State.String(),
		PreviousPC:     c.machine.PreviousPC,
		CurrentCond:    c.machine.CurrentCond.String(),
		Steps:          c.machine.StepCount,
		NonSeqCycles:   c.machine.NonSeqCycles,
		SeqCycles:      c.machine.SeqCycles,
		InternalCycles: c.machine.InternalCycles,
		Output:         string(c.machine.Output),
	}
	if c.machine.State == vm.RunErrorState {
		info.ErrorMessage = c.machine.ErrMsg
	}
	return info
}

// Registers returns the flat 37-slot register view of §6.
func (c *Controller) Registers() [37]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.CPU.Snapshot37()
}

// LineAt returns the memory word at addr, its disassembly, and any recorded
// source comment, without mutating state.
func (c *Controller) LineAt(addr uint32) LineAt {
	c.mu.Lock()
	defer c.mu.Unlock()

	value := c.machine.Memory.ReadWord(addr)
	instr := vm.Disassemble(value).String()
	result := LineAt{Value: value, Instr: &instr}

	if comment, ok := c.byAddr[addr]; ok {
		trimmed := strings.TrimSpace(comment)
		result.Comment = &trimmed
	}
	return result
}

// Breakpoint toggles a breakpoint at addr.
func (c *Controller) Breakpoint(addr uint32, set bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machine.SetBreakpoint(addr, set)
}

// HitBreakpoint acknowledges the breakpoint the VM is currently stopped at
// so that resuming execution does not immediately re-stop (one-shot
// suppression, §4.4).
func (c *Controller) HitBreakpoint() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machine.AckBreakpoint()
	if c.machine.State == vm.RunStopped {
		c.machine.State = vm.RunRunning
	}
}

// SetUserInput replaces the VM's input buffer. The buffer is only stored:
// no SWI reads it.
func (c *Controller) SetUserInput(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machine.InputBuffer = s
}

// LineNumberToAddress exposes the assembler's line-number -> address map
// (§3's Program metadata) for hosts that want to set a breakpoint from a
// source line rather than a raw address.
func (c *Controller) LineNumberToAddress(line int) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.lines[line]
	return addr, ok
}

// Symbols returns the label -> address symbol table of the loaded program,
// or nil if no program is loaded.
func (c *Controller) Symbols() map[string]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.program == nil {
		return nil
	}
	out := make(map[string]uint32)
	for name, sym := range c.program.SymbolTable.GetAllSymbols() {
		if sym.Type == parser.SymbolLabel {
			out[name] = sym.Value
		}
	}
	return out
}
