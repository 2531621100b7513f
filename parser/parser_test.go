package parser_test

import (
	"testing"

	"github.com/armcore/arm7tdmi/parser"
)

func TestParseSimpleInstruction(t *testing.T) {
	p := parser.NewParser("mov r0, #1\n", "test.s")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(program.Instructions) != 1 {
		t.Fatalf("got %d instructions, want 1", len(program.Instructions))
	}
	if program.Instructions[0].Mnemonic != "MOV" {
		t.Errorf("mnemonic = %q, want %q", program.Instructions[0].Mnemonic, "MOV")
	}
}

func TestParseAssignsSequentialAddresses(t *testing.T) {
	p := parser.NewParser("mov r0, #1\nmov r1, #2\n", "test.s")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if program.Instructions[0].Address != 0 {
		t.Errorf("first instruction address = %d, want 0", program.Instructions[0].Address)
	}
	if program.Instructions[1].Address != 4 {
		t.Errorf("second instruction address = %d, want 4", program.Instructions[1].Address)
	}
}

func TestParseOrgDirectiveShiftsAddress(t *testing.T) {
	p := parser.NewParser(".org 0x100\nmov r0, #1\n", "test.s")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if program.Instructions[0].Address != 0x100 {
		t.Errorf("address = 0x%X, want 0x100", program.Instructions[0].Address)
	}
}

func TestParseLabelResolution(t *testing.T) {
	p := parser.NewParser("loop:\nmov r0, #1\nb loop\n", "test.s")
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := program.SymbolTable.Get("loop"); err != nil {
		t.Errorf("expected label %q to resolve: %v", "loop", err)
	}
}

func TestParseReportsSyntaxErrors(t *testing.T) {
	p := parser.NewParser("bogus_mnemonic r0, r1\n", "test.s")
	_, err := p.Parse()
	if err == nil {
		t.Fatal("expected a parse error for an unknown mnemonic")
	}
}
