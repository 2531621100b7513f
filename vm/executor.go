package vm

import "fmt"

// RunState is the processor's run state per spec §3: Running, Stopped, or Error(message).
type RunState int

const (
	RunRunning RunState = iota
	RunStopped
	RunErrorState
)

func (s RunState) String() string {
	switch s {
	case RunRunning:
		return "Running"
	case RunStopped:
		return "Stopped"
	case RunErrorState:
		return "Error"
	default:
		return "?"
	}
}

// InstructionType is the decoded ARM v4 instruction class.
type InstructionType int

const (
	InstUnknown InstructionType = iota
	InstDataProcessing
	InstMultiply
	InstLoadStore
	InstHalfwordTransfer
	InstLoadStoreMultiple
	InstSwap
	InstBranch
	InstSWI
	InstPSRTransfer
)

// Instruction is a decoded instruction word ready for dispatch.
type Instruction struct {
	Address   uint32
	Opcode    uint32
	Type      InstructionType
	Condition ConditionCode
	SetFlags  bool
}

// VM is the processor core: registers, memory, and run state, mutated only
// through Step (and the reset/load operations the Controller drives).
type VM struct {
	CPU    *CPU
	Memory *Memory

	State  RunState
	ErrMsg string

	Breakpoints map[uint32]bool
	bpAckPC     uint32
	bpAckValid  bool // one-shot suppression: true once hit_breakpoint() has acked bpAckPC

	StepCount      uint64
	NonSeqCycles   uint64
	SeqCycles      uint64
	InternalCycles uint64

	PreviousPC  uint32
	CurrentCond ConditionCode

	Output      []byte // terminal output accumulated by SWI 0/4
	InputBuffer string // host-supplied input; stored only, no SWI reads it
}

// NewVM returns a VM in hard-reset state.
func NewVM() *VM {
	return &VM{
		CPU:         NewCPU(),
		Memory:      NewMemory(),
		State:       RunStopped,
		Breakpoints: make(map[uint32]bool),
	}
}

// HardReset clears memory, registers, CPSR, breakpoints, and counters.
func (vm *VM) HardReset() {
	vm.CPU.Reset()
	vm.Memory.Reset()
	vm.State = RunStopped
	vm.ErrMsg = ""
	vm.Breakpoints = make(map[uint32]bool)
	vm.bpAckValid = false
	vm.StepCount = 0
	vm.NonSeqCycles, vm.SeqCycles, vm.InternalCycles = 0, 0, 0
	vm.PreviousPC = 0
	vm.Output = nil
	vm.InputBuffer = ""
}

// SoftReset sets PC to 0 and run state to Running; memory and general
// registers are preserved, matching §3's lifecycle rules.
func (vm *VM) SoftReset() {
	vm.CPU.SetPC(0)
	vm.State = RunRunning
	vm.ErrMsg = ""
	vm.bpAckValid = false
}

// estimatedMicros implements §4.4's (2*nonseq + seq + internal) / 100 ratio.
func (vm *VM) estimatedMicros() uint64 {
	return (2*vm.NonSeqCycles + vm.SeqCycles + vm.InternalCycles) / 100
}

// SetBreakpoint toggles a breakpoint at addr.
func (vm *VM) SetBreakpoint(addr uint32, set bool) {
	if set {
		vm.Breakpoints[addr] = true
	} else {
		delete(vm.Breakpoints, addr)
		if vm.bpAckValid && vm.bpAckPC == addr {
			vm.bpAckValid = false
		}
	}
}

// AckBreakpoint acknowledges the breakpoint the VM is currently stopped at,
// so the next Step does not immediately re-stop (one-shot suppression).
func (vm *VM) AckBreakpoint() {
	vm.bpAckPC = vm.CPU.PC()
	vm.bpAckValid = true
}

// fault transitions the run state to Error(msg), per §7: runtime faults are
// captured into the run state; the faulting step is not counted as retired.
func (vm *VM) fault(format string, args ...any) error {
	vm.ErrMsg = fmt.Sprintf(format, args...)
	vm.State = RunErrorState
	return fmt.Errorf("%s", vm.ErrMsg)
}

// Step executes exactly one instruction, implementing the pipeline of §4.4.
// It is a no-op returning nil if the run state is not Running.
func (vm *VM) Step() error {
	if vm.State != RunRunning {
		return nil
	}

	pc := vm.CPU.PC()
	vm.PreviousPC = pc

	// Breakpoint check happens after the fetch address is known but before
	// the instruction retires, with one-shot suppression for an acked hit.
	if vm.Breakpoints[pc] && !(vm.bpAckValid && vm.bpAckPC == pc) {
		vm.State = RunStopped
		return nil
	}
	vm.bpAckValid = false

	word := vm.Memory.ReadWord(pc)
	vm.CurrentCond = ConditionCode((word >> ConditionShift) & Mask4Bit)

	// Advance R15 by 4 before executing, so in-instruction R15 reads observe pc+8.
	vm.CPU.SetPC(pc + ARMInstructionSize)

	cpsr := vm.CPU.CPSR()
	if !cpsr.EvaluateCondition(vm.CurrentCond) {
		vm.InternalCycles++
		vm.StepCount++
		return nil
	}

	inst := vm.decode(pc, word)

	var err error
	switch inst.Type {
	case InstDataProcessing:
		err = vm.executeDataProcessing(inst)
	case InstMultiply:
		err = vm.executeMultiply(inst)
	case InstLoadStore:
		err = vm.executeSingleDataTransfer(inst)
	case InstHalfwordTransfer:
		err = vm.executeHalfwordTransfer(inst)
	case InstLoadStoreMultiple:
		err = vm.executeBlockTransfer(inst)
	case InstSwap:
		err = vm.executeSwap(inst)
	case InstBranch:
		err = vm.executeBranch(inst)
	case InstSWI:
		err = vm.executeSWI(inst)
	case InstPSRTransfer:
		err = vm.executePSRTransfer(inst)
	default:
		return vm.fault("undefined instruction")
	}
	if err != nil {
		if vm.State == RunRunning {
			vm.ErrMsg = err.Error()
			vm.State = RunErrorState
		}
		return err
	}

	vm.StepCount++
	return nil
}

// decode classifies a fetched instruction word into one of the ARM v4
// instruction classes by bit-field pattern, per §4.4.
func (vm *VM) decode(addr, word uint32) *Instruction {
	inst := &Instruction{
		Address:   addr,
		Opcode:    word,
		Condition: ConditionCode((word >> ConditionShift) & Mask4Bit),
		SetFlags:  word&(1<<SBitShift) != 0,
	}

	bits2726 := (word >> Bits27_26Shift) & Mask2Bit

	switch bits2726 {
	case 0:
		switch {
		case word&BXPatternMask == BXEncodingBase:
			inst.Type = InstBranch
		case word&SWPMask == SWPPattern:
			inst.Type = InstSwap
		case word&LongMultiplyMask == LongMultiplyPattern:
			inst.Type = InstMultiply
		case word&MultiplyMask == MultiplyPattern:
			inst.Type = InstMultiply
		case word&MRSMask == MRSPattern:
			inst.Type = InstPSRTransfer
		case word&MSRRegMask == MSRRegPattern:
			inst.Type = InstPSRTransfer
		case word&MSRImmMask == MSRImmPattern:
			inst.Type = InstPSRTransfer
		case word&HalfwordTransferMask == HalfwordTransferPattern:
			inst.Type = InstHalfwordTransfer
		default:
			inst.Type = InstDataProcessing
		}

	case 1:
		inst.Type = InstLoadStore

	case 2:
		if word&(1<<IBitShift) != 0 {
			inst.Type = InstBranch
		} else {
			inst.Type = InstLoadStoreMultiple
		}

	case 3:
		if word&SWIDetectMask == SWIPattern {
			inst.Type = InstSWI
		} else {
			inst.Type = InstUnknown
		}
	}

	return inst
}
