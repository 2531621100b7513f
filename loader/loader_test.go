package loader_test

import (
	"testing"

	"github.com/armcore/arm7tdmi/loader"
	"github.com/armcore/arm7tdmi/parser"
	"github.com/armcore/arm7tdmi/vm"
)

func assemble(t *testing.T, source string) *parser.Program {
	t.Helper()
	p := parser.NewParser(source, "test.s")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return program
}

func TestLoadProgramIntoVMEncodesInstructions(t *testing.T) {
	program := assemble(t, "mov r0, #42\n")
	machine := vm.NewVM()

	if _, err := loader.LoadProgramIntoVM(machine, program); err != nil {
		t.Fatalf("LoadProgramIntoVM: %v", err)
	}

	opcode := machine.Memory.ReadWord(0)
	if opcode == 0 {
		t.Error("expected a non-zero encoded instruction at address 0")
	}
}

func TestLoadProgramIntoVMWritesWordDirective(t *testing.T) {
	program := assemble(t, ".word 0x11223344\n")
	machine := vm.NewVM()

	if _, err := loader.LoadProgramIntoVM(machine, program); err != nil {
		t.Fatalf("LoadProgramIntoVM: %v", err)
	}

	if got := machine.Memory.ReadWord(0); got != 0x11223344 {
		t.Errorf("memory[0] = 0x%X, want 0x11223344", got)
	}
}

func TestLoadProgramIntoVMWritesAsciz(t *testing.T) {
	program := assemble(t, ".asciz \"hi\"\n")
	machine := vm.NewVM()

	if _, err := loader.LoadProgramIntoVM(machine, program); err != nil {
		t.Fatalf("LoadProgramIntoVM: %v", err)
	}

	if got := machine.Memory.ReadByte(0); got != 'h' {
		t.Errorf("memory[0] = %q, want 'h'", got)
	}
	if got := machine.Memory.ReadByte(1); got != 'i' {
		t.Errorf("memory[1] = %q, want 'i'", got)
	}
	if got := machine.Memory.ReadByte(2); got != 0 {
		t.Errorf("memory[2] = %q, want the trailing NUL", got)
	}
}

func TestLoadProgramIntoVMOrigin(t *testing.T) {
	program := assemble(t, ".org 0x100\nmov r0, #1\n")
	machine := vm.NewVM()

	entry, err := loader.LoadProgramIntoVM(machine, program)
	if err != nil {
		t.Fatalf("LoadProgramIntoVM: %v", err)
	}
	if entry != 0x100 {
		t.Errorf("entry = 0x%X, want 0x100", entry)
	}
	if got := machine.Memory.ReadWord(0x100); got == 0 {
		t.Error("expected a non-zero encoded instruction at the .org address")
	}
}
