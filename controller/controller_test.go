package controller_test

import (
	"testing"

	"github.com/armcore/arm7tdmi/controller"
	"github.com/armcore/arm7tdmi/vm"
)

func TestLoadProgramThenStep(t *testing.T) {
	c := controller.New()

	diags := c.LoadProgram(controller.LoadProgramRequest{Contents: "mov r0, #5\nmov r1, #7\n"})
	if diags != nil {
		t.Fatalf("LoadProgram diagnostics: %+v", diags)
	}

	if _, ok := c.StepTimes(1); ok {
		t.Fatal("first step of mov r0 should not produce output")
	}

	regs := c.Registers()
	if regs[0] != 5 {
		t.Errorf("R0 = %d, want 5", regs[0])
	}

	c.StepTimes(1)
	regs = c.Registers()
	if regs[1] != 7 {
		t.Errorf("R1 = %d, want 7", regs[1])
	}
}

func TestLoadProgramSyntaxErrorLeavesPriorStateIntact(t *testing.T) {
	c := controller.New()

	if diags := c.LoadProgram(controller.LoadProgramRequest{Contents: "mov r0, #1\n"}); diags != nil {
		t.Fatalf("first LoadProgram diagnostics: %+v", diags)
	}
	c.StepTimes(1)

	before := c.Registers()

	diags := c.LoadProgram(controller.LoadProgramRequest{Contents: "not a real instruction\n"})
	if diags == nil {
		t.Fatal("expected diagnostics for invalid source")
	}

	after := c.Registers()
	if before != after {
		t.Error("failed LoadProgram should not mutate the running VM")
	}
}

func TestResetSoftVsHard(t *testing.T) {
	c := controller.New()
	c.LoadProgram(controller.LoadProgramRequest{Contents: "mov r0, #9\n"})
	c.StepTimes(1)

	c.Reset(false) // soft reset: PC returns to 0, registers untouched
	if pc := c.Registers()[15]; pc != 0 {
		t.Errorf("PC after soft reset = %d, want 0", pc)
	}
	if r0 := c.Registers()[0]; r0 != 9 {
		t.Errorf("R0 after soft reset = %d, want 9 (registers preserved)", r0)
	}

	c.Reset(true) // hard reset: everything clears
	if r0 := c.Registers()[0]; r0 != 0 {
		t.Errorf("R0 after hard reset = %d, want 0", r0)
	}
}

func TestBreakpointStopsExecution(t *testing.T) {
	c := controller.New()
	c.LoadProgram(controller.LoadProgramRequest{Contents: "mov r0, #1\nmov r1, #2\nmov r2, #3\n"})
	c.Breakpoint(4, true) // second instruction

	c.StepTimes(10)

	info := c.ProcessorInfo()
	if info.State != vm.RunStopped.String() {
		t.Fatalf("state = %s, want %s", info.State, vm.RunStopped.String())
	}
	if got := c.Registers()[2]; got != 0 {
		t.Errorf("R2 = %d, want 0 (execution should have stopped at the breakpoint)", got)
	}

	c.HitBreakpoint()
	c.StepTimes(10)

	if got := c.Registers()[2]; got != 3 {
		t.Errorf("R2 = %d, want 3 after resuming past the breakpoint", got)
	}
}

func TestLineAtReturnsDisassembly(t *testing.T) {
	c := controller.New()
	c.LoadProgram(controller.LoadProgramRequest{Contents: "mov r0, #1\n"})

	line := c.LineAt(0)
	if line.Value == 0 {
		t.Error("expected a non-zero encoded word at address 0")
	}
	if line.Instr == nil || *line.Instr == "" {
		t.Error("expected a non-empty disassembly string")
	}
}

func TestSetUserInputAcceptsInput(t *testing.T) {
	c := controller.New()
	c.SetUserInput("hello")
	// SetUserInput has no getter on Controller; this exercises the call path
	// without panicking and without requiring a loaded program.
}

// TestConditionalBranchFollowsMSRFlags is §8 scenario 1: writing CPSR flags
// via msr cpsr_flg makes the matching conditional branch taken.
func TestConditionalBranchFollowsMSRFlags(t *testing.T) {
	c := controller.New()
	src := `
		msr cpsr_flg, #0x40000000 ; set Z
		beq target
		mov r0, #1
		b done
target:
		mov r0, #2
done:
		swi 2
	`
	if diags := c.LoadProgram(controller.LoadProgramRequest{Contents: src}); diags != nil {
		t.Fatalf("LoadProgram diagnostics: %+v", diags)
	}

	c.StepTimes(10)

	info := c.ProcessorInfo()
	if info.State != "Stopped" {
		t.Fatalf("state = %s, want Stopped", info.State)
	}
	if got := c.Registers()[0]; got != 2 {
		t.Errorf("R0 = %d, want 2 (beq should have been taken)", got)
	}
}

// TestSWITerminalWritesCharAndDecimal is §8 scenario 6.
func TestSWITerminalWritesCharAndDecimal(t *testing.T) {
	c := controller.New()
	src := `
		mov r0, #65
		swi 0
		mov r0, #123
		swi 4
		swi 2
	`
	if diags := c.LoadProgram(controller.LoadProgramRequest{Contents: src}); diags != nil {
		t.Fatalf("LoadProgram diagnostics: %+v", diags)
	}

	out, _ := c.StepTimes(10)
	if out != "A123" {
		t.Errorf("accumulated output = %q, want %q", out, "A123")
	}
}
