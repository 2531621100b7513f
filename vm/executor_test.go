package vm_test

import (
	"testing"

	"github.com/armcore/arm7tdmi/vm"
)

func TestStepIsNoOpWhenNotRunning(t *testing.T) {
	v := vm.NewVM()
	if v.State != vm.RunStopped {
		t.Fatalf("NewVM state = %s, want Stopped", v.State)
	}
	if err := v.Step(); err != nil {
		t.Fatalf("Step on a stopped VM returned an error: %v", err)
	}
	if v.StepCount != 0 {
		t.Errorf("StepCount = %d, want 0", v.StepCount)
	}
}

func TestStepMovImmediate(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.Memory.WriteWord(0, 0xE3A0002A) // MOV R0, #42

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got := v.CPU.GetRegister(0, vm.ModeUSR); got != 42 {
		t.Errorf("R0 = %d, want 42", got)
	}
	if v.CPU.PC() != 4 {
		t.Errorf("PC = %d, want 4", v.CPU.PC())
	}
	if v.StepCount != 1 {
		t.Errorf("StepCount = %d, want 1", v.StepCount)
	}
}

func TestStepStopsAtBreakpointBeforeExecuting(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.Memory.WriteWord(0, 0xE3A0002A) // MOV R0, #42
	v.SetBreakpoint(0, true)

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if v.State != vm.RunStopped {
		t.Fatalf("state = %s, want Stopped", v.State)
	}
	if got := v.CPU.GetRegister(0, vm.ModeUSR); got != 0 {
		t.Errorf("R0 = %d, want 0 (instruction at the breakpoint must not retire)", got)
	}
}

func TestHitBreakpointSuppressesImmediateReStop(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.Memory.WriteWord(0, 0xE3A0002A) // MOV R0, #42
	v.SetBreakpoint(0, true)

	v.Step() // stops at the breakpoint without executing
	v.AckBreakpoint()
	v.State = vm.RunRunning

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got := v.CPU.GetRegister(0, vm.ModeUSR); got != 42 {
		t.Errorf("R0 = %d, want 42 (the acked breakpoint must not re-stop)", got)
	}
}

func TestSWIHaltStopsTheVM(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.Memory.WriteWord(0, 0xEF000002) // SWI 2 (halt)

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if v.State != vm.RunStopped {
		t.Errorf("state = %s, want Stopped", v.State)
	}
}

func TestSWIWriteCharAppendsOutput(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.CPU.SetRegister(0, vm.ModeUSR, 'A')
	v.Memory.WriteWord(0, 0xEF000000) // SWI 0 (write char)

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if string(v.Output) != "A" {
		t.Errorf("Output = %q, want %q", v.Output, "A")
	}
}

func TestSWIWriteIntAppendsSignedDecimal(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.CPU.SetRegister(0, vm.ModeUSR, 123)
	v.Memory.WriteWord(0, 0xEF000004) // SWI 4 (write decimal)

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if string(v.Output) != "123" {
		t.Errorf("Output = %q, want %q", v.Output, "123")
	}
}

// TestBlockTransferStoreBaseFirstStoresOriginalValue is §8 scenario 3: for
// STMFD with the base register as the lowest-numbered register in the list,
// the *original* base value is stored, not the writeback value.
func TestBlockTransferStoreBaseFirstStoresOriginalValue(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.CPU.SetRegister(0, vm.ModeUSR, 0x1000) // base, also in the list
	v.CPU.SetRegister(1, vm.ModeUSR, 0xAAAA)

	// STMFD R0!, {R0,R1} == STMDB R0!, {R0,R1}: cond=AL, 100 1 0 0 1 0 0000 rlist
	// P=1,U=0,S=0,W=1,L=0, Rn=0, rlist = bit0|bit1
	opcode := uint32(0xE9200003) // STMDB r0!, {r0, r1}
	v.Memory.WriteWord(0, opcode)

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// Pre-indexed, down: addresses are base-8, base-4 for r0, r1.
	if got := v.Memory.ReadWord(0x1000 - 8); got != 0x1000 {
		t.Errorf("stored R0 = 0x%X, want original base 0x1000", got)
	}
	if got := v.Memory.ReadWord(0x1000 - 4); got != 0xAAAA {
		t.Errorf("stored R1 = 0x%X, want 0xAAAA", got)
	}
	if got := v.CPU.GetRegister(0, vm.ModeUSR); got != 0x1000-8 {
		t.Errorf("R0 after writeback = 0x%X, want 0x%X", got, 0x1000-8)
	}
}

// TestBlockTransferEmptyRlistAdvancesBaseBy0x40 is §8 scenario 2's base
// arithmetic half: an empty register list still advances the base by 0x40.
func TestBlockTransferEmptyRlistAdvancesBaseBy0x40(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.CPU.SetRegister(0, vm.ModeUSR, 0x2000)

	opcode := uint32(0xE8A00000) // STMIA r0!, {}
	v.Memory.WriteWord(0, opcode)

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := v.CPU.GetRegister(0, vm.ModeUSR); got != 0x2000+0x40 {
		t.Errorf("R0 after empty-rlist STM = 0x%X, want 0x%X", got, 0x2000+0x40)
	}
}

// TestBlockTransferStoreWithSBitAndPCUsesUserBankForOtherRegs covers the
// STM^ + PC-in-list combination: the S bit always forces a user-bank store
// (there is no PSR restore on a store to undo it), even when PC is also
// being stored, so R8 here must come from the USR bank, not the active
// FIQ bank.
func TestBlockTransferStoreWithSBitAndPCUsesUserBankForOtherRegs(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	if err := v.CPU.SetCPSR(vm.PSR{Mode: vm.ModeFIQ}); err != nil {
		t.Fatalf("SetCPSR(FIQ): %v", err)
	}

	v.CPU.SetRegister(0, vm.ModeFIQ, 0x1000) // base register, unbanked
	v.CPU.SetRegister(8, vm.ModeUSR, 0x11111111)
	v.CPU.SetRegister(8, vm.ModeFIQ, 0x22222222)

	// STM r0, {r8,pc}^ : cond=AL, 100, P=0,U=1,S=1,W=0,L=0, Rn=0, rlist={r8,pc}
	opcode := uint32(0xE8C08100)
	v.Memory.WriteWord(0, opcode)

	if err := v.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got := v.Memory.ReadWord(0x1000); got != 0x11111111 {
		t.Errorf("stored R8 = 0x%X, want the USR-bank value 0x11111111", got)
	}
	if got := v.Memory.ReadWord(0x1004); got != 12 {
		t.Errorf("stored PC = 0x%X, want 12 (pc+12)", got)
	}
}

func TestUndefinedSWIFaults(t *testing.T) {
	v := vm.NewVM()
	v.State = vm.RunRunning
	v.Memory.WriteWord(0, 0xEF0000FF) // SWI 255, not a recognized number

	if err := v.Step(); err == nil {
		t.Fatal("expected an error for an undefined SWI number")
	}
	if v.State != vm.RunErrorState {
		t.Errorf("state = %s, want Error", v.State)
	}
}
