// Package loader places an assembled parser.Program into a vm.VM's flat
// memory image, resolving directive data and instruction encodings into
// concrete bytes. It is the bridge between the Assembler (§4.1) and the
// Memory (§4.2) component described in the spec.
package loader

import (
	"fmt"

	"github.com/armcore/arm7tdmi/parser"
	"github.com/armcore/arm7tdmi/vm"
)

// LoadProgramIntoVM encodes every instruction and directive in program into
// machine's memory and returns the entry point (the program's assembly
// origin, §3's "initial memory image"). It never mutates registers or run
// state; callers soft-reset the VM separately.
func LoadProgramIntoVM(machine *vm.VM, program *parser.Program) (uint32, error) {
	enc := parser.NewEncoder(program.SymbolTable)

	maxAddr := program.Origin

	for _, inst := range program.Instructions {
		if end := inst.Address + 4; end > maxAddr {
			maxAddr = end
		}
	}
	for _, dir := range program.Directives {
		if end, ok := directiveEnd(dir); ok && end > maxAddr {
			maxAddr = end
		}
	}

	// Literal pools (from the LDR `=value` pseudo) are placed after the highest
	// address already claimed by code and data, 4-byte aligned.
	enc.LiteralPoolStart = (maxAddr + 3) &^ 3

	for _, inst := range program.Instructions {
		opcode, err := enc.EncodeInstruction(inst, inst.Address)
		if err != nil {
			return 0, fmt.Errorf("failed to encode instruction at 0x%08X (%s): %w", inst.Address, inst.Mnemonic, err)
		}
		machine.Memory.WriteWord(inst.Address, opcode)
	}

	for addr, value := range enc.LiteralPool {
		machine.Memory.WriteWord(addr, value)
	}

	for _, dir := range program.Directives {
		if err := writeDirective(machine, program, dir); err != nil {
			return 0, err
		}
	}

	return program.Origin, nil
}

// directiveEnd returns the address one past the last byte a data directive
// occupies, so the caller can size the literal pool past it. Address-only
// bookkeeping directives (.org, .equ, .align, ...) report ok=false.
func directiveEnd(d *parser.Directive) (uint32, bool) {
	switch d.Name {
	case ".word":
		return d.Address + uint32(len(d.Args))*4, true
	case ".half":
		return d.Address + uint32(len(d.Args))*2, true
	case ".byte":
		return d.Address + uint32(len(d.Args)), true
	case ".ascii":
		return d.Address + uint32(len(directiveString(d))), true
	case ".asciz", ".string":
		return d.Address + uint32(len(directiveString(d))) + 1, true
	case ".space", ".skip":
		if len(d.Args) == 0 {
			return d.Address, true
		}
		size, err := parser.ParseNumber(d.Args[0])
		if err != nil {
			return d.Address, true
		}
		return d.Address + size, true
	default:
		return 0, false
	}
}

func directiveString(d *parser.Directive) string {
	if len(d.Args) == 0 {
		return ""
	}
	s := d.Args[0]
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		s = s[1 : len(s)-1]
	}
	return parser.ProcessEscapeSequences(s)
}

// writeDirective writes the bytes a data-emitting directive contributes to
// the memory image. Address-bookkeeping directives (.org, .text, .data,
// .global, .equ, .set, .align, .balign, .ltorg) contribute no bytes of their
// own — the parser's first pass already folded their effect into every
// subsequent Address field.
func writeDirective(machine *vm.VM, program *parser.Program, d *parser.Directive) error {
	addr := d.Address

	switch d.Name {
	case ".word":
		for _, arg := range d.Args {
			value, err := resolveWordArg(program, arg)
			if err != nil {
				return fmt.Errorf("invalid .word value %q: %w", arg, err)
			}
			machine.Memory.WriteWord(addr, value)
			addr += 4
		}

	case ".half":
		for _, arg := range d.Args {
			value, err := resolveWordArg(program, arg)
			if err != nil {
				return fmt.Errorf("invalid .half value %q: %w", arg, err)
			}
			machine.Memory.WriteHalfword(addr, uint16(value))
			addr += 2
		}

	case ".byte":
		for _, arg := range d.Args {
			value, err := resolveByteArg(arg)
			if err != nil {
				return fmt.Errorf("invalid .byte value %q: %w", arg, err)
			}
			machine.Memory.WriteByte(addr, value)
			addr++
		}

	case ".ascii":
		for _, b := range []byte(directiveString(d)) {
			machine.Memory.WriteByte(addr, b)
			addr++
		}

	case ".asciz", ".string":
		for _, b := range []byte(directiveString(d)) {
			machine.Memory.WriteByte(addr, b)
			addr++
		}
		machine.Memory.WriteByte(addr, 0)

	case ".space", ".skip":
		// Reserved but not written; the flat sparse Memory already reads
		// never-written addresses as 0.
	}

	return nil
}

// resolveWordArg parses a .word/.half argument as a number, falling back to
// a symbol-table lookup (label or `equ` constant).
func resolveWordArg(program *parser.Program, arg string) (uint32, error) {
	if v, err := parser.ParseNumber(arg); err == nil {
		return v, nil
	}
	return program.SymbolTable.Get(arg)
}

// resolveByteArg parses a .byte argument as a character literal (including
// escapes) or a number.
func resolveByteArg(arg string) (byte, error) {
	if len(arg) >= 3 && arg[0] == '\'' && arg[len(arg)-1] == '\'' {
		content := arg[1 : len(arg)-1]
		if len(content) == 1 {
			return content[0], nil
		}
		if len(content) >= 2 && content[0] == '\\' {
			b, _, err := parser.ParseEscapeChar(content)
			return b, err
		}
		return 0, fmt.Errorf("invalid character literal: %s", arg)
	}
	v, err := parser.ParseNumber(arg)
	return byte(v), err
}
