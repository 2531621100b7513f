package vm

import "fmt"

// ArgKind is the tagged-union discriminant for a PrettyInstr argument, per §6.
type ArgKind int

const (
	ArgRegister ArgKind = iota
	ArgPsr
	ArgShift
	ArgConstant
	ArgRegisterSet
)

// ConstantStyle hints how a Constant argument should be rendered.
type ConstantStyle int

const (
	StyleAddress ConstantStyle = iota
	StyleUnsignedDecimal
	StyleUnknown
)

// RegisterArg is the Register{index, negative, write_back} variant.
type RegisterArg struct {
	Index     int
	Negative  bool
	WriteBack bool
}

// PsrArg is the Psr{name, flag_only} variant.
type PsrArg struct {
	Name     string // "CPSR" or "SPSR"
	FlagOnly bool
}

// ShiftArg is the Shift{type, amount} variant. Amount is either a constant
// or a register, per the tagged Constant|Register sub-union in §6.
type ShiftArg struct {
	Type             ShiftType
	AmountIsRegister bool
	AmountConstant   int
	AmountRegister   int
}

// ConstantArg is the Constant{value, style} variant.
type ConstantArg struct {
	Value uint32
	Style ConstantStyle
}

// RegisterSetArg is the RegisterSet{registers, caret} variant, used by LDM/STM.
type RegisterSetArg struct {
	Registers []int
	Caret     bool
}

// Arg is one disassembly argument; exactly one of the pointer fields
// matching Kind is populated.
type Arg struct {
	Kind        ArgKind
	Register    *RegisterArg
	Psr         *PsrArg
	Shift       *ShiftArg
	Constant    *ConstantArg
	RegisterSet *RegisterSetArg
}

func regArg(i int) Arg { return Arg{Kind: ArgRegister, Register: &RegisterArg{Index: i}} }

func constArg(v uint32, style ConstantStyle) Arg {
	return Arg{Kind: ArgConstant, Constant: &ConstantArg{Value: v, Style: style}}
}

// PrettyInstr is the disassembly payload for line_at, per §6.
type PrettyInstr struct {
	OpcodePrefix string
	Cond         string
	OpcodeSuffix string
	Args         []Arg
}

var dataProcMnemonics = [16]string{
	"AND", "EOR", "SUB", "RSB", "ADD", "ADC", "SBC", "RSC",
	"TST", "TEQ", "CMP", "CMN", "ORR", "MOV", "BIC", "MVN",
}

var regNames = [16]string{
	"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7",
	"R8", "R9", "R10", "R11", "R12", "SP", "LR", "PC",
}

// Disassemble decodes a raw instruction word into a PrettyInstr, grounded on
// the same bit-field classification used by (*VM).decode.
func Disassemble(word uint32) *PrettyInstr {
	cond := ConditionCode((word >> ConditionShift) & Mask4Bit).String()

	switch {
	case word&BXPatternMask == BXEncodingBase:
		return &PrettyInstr{
			OpcodePrefix: "BX", Cond: cond,
			Args: []Arg{regArg(int(word & Mask4Bit))},
		}

	case word&SWPMask == SWPPattern:
		suffix := ""
		if word&(1<<BBitShift) != 0 {
			suffix = "B"
		}
		rd := int((word >> RdShift) & Mask4Bit)
		rm := int(word & Mask4Bit)
		rn := int((word >> RnShift) & Mask4Bit)
		return &PrettyInstr{
			OpcodePrefix: "SWP", Cond: cond, OpcodeSuffix: suffix,
			Args: []Arg{regArg(rd), regArg(rm), regArg(rn)},
		}

	case word&LongMultiplyMask == LongMultiplyPattern:
		signed := word&(1<<BBitShift) != 0
		accumulate := word&(1<<MultiplyAShift) != 0
		name := "UMULL"
		switch {
		case signed && accumulate:
			name = "SMLAL"
		case signed:
			name = "SMULL"
		case accumulate:
			name = "UMLAL"
		}
		rdLo := int((word >> RdShift) & Mask4Bit)
		rdHi := int((word >> RnShift) & Mask4Bit)
		rs := int((word >> RsShift) & Mask4Bit)
		rm := int(word & Mask4Bit)
		return &PrettyInstr{
			OpcodePrefix: name, Cond: cond,
			Args: []Arg{regArg(rdLo), regArg(rdHi), regArg(rm), regArg(rs)},
		}

	case word&MultiplyMask == MultiplyPattern:
		name := "MUL"
		if word&(1<<MultiplyAShift) != 0 {
			name = "MLA"
		}
		rd := int((word >> RnShift) & Mask4Bit)
		rn := int((word >> RdShift) & Mask4Bit)
		rs := int((word >> RsShift) & Mask4Bit)
		rm := int(word & Mask4Bit)
		args := []Arg{regArg(rd), regArg(rm), regArg(rs)}
		if name == "MLA" {
			args = append(args, regArg(rn))
		}
		return &PrettyInstr{OpcodePrefix: name, Cond: cond, Args: args}

	case word&MRSMask == MRSPattern:
		rd := int((word >> RdShift) & Mask4Bit)
		name := "CPSR"
		if word&(1<<BBitShift) != 0 {
			name = "SPSR"
		}
		return &PrettyInstr{
			OpcodePrefix: "MRS", Cond: cond,
			Args: []Arg{regArg(rd), {Kind: ArgPsr, Psr: &PsrArg{Name: name}}},
		}

	case word&MSRRegMask == MSRRegPattern || word&MSRImmMask == MSRImmPattern:
		name := "CPSR"
		if word&(1<<BBitShift) != 0 {
			name = "SPSR"
		}
		flagOnly := (word>>19)&1 == 1 && (word>>16)&1 == 0
		psrArg := Arg{Kind: ArgPsr, Psr: &PsrArg{Name: name, FlagOnly: flagOnly}}
		var src Arg
		if word&(1<<IBitShift) != 0 {
			imm := word & ImmediateValueMask
			rot := ((word >> RotationShift) & RotationMask) * RotationMultiplier
			src = constArg(rotateRight32(imm, rot), StyleUnknown)
		} else {
			src = regArg(int(word & Mask4Bit))
		}
		return &PrettyInstr{OpcodePrefix: "MSR", Cond: cond, Args: []Arg{psrArg, src}}

	case word&HalfwordTransferMask == HalfwordTransferPattern:
		return disasmHalfword(word, cond)

	case (word>>Bits27_26Shift)&Mask2Bit == 1:
		return disasmSingleTransfer(word, cond)

	case (word>>Bits27_26Shift)&Mask2Bit == 2 && word&(1<<IBitShift) != 0:
		return disasmBranch(word, cond)

	case (word>>Bits27_26Shift)&Mask2Bit == 2:
		return disasmBlockTransfer(word, cond)

	case word&SWIDetectMask == SWIPattern:
		return &PrettyInstr{
			OpcodePrefix: "SWI", Cond: cond,
			Args: []Arg{constArg(word&Mask24Bit, StyleUnsignedDecimal)},
		}

	case (word>>Bits27_26Shift)&Mask2Bit == 0:
		return disasmDataProcessing(word, cond)

	default:
		return &PrettyInstr{OpcodePrefix: "DW", Args: []Arg{constArg(word, StyleUnknown)}}
	}
}

func disasmDataProcessing(word uint32, cond string) *PrettyInstr {
	opcode := (word >> OpcodeShift) & Mask4Bit
	mnemonic := dataProcMnemonics[opcode]
	setFlags := word&(1<<SBitShift) != 0
	suffix := ""
	if setFlags {
		suffix = "S"
	}
	rd := int((word >> RdShift) & Mask4Bit)
	rn := int((word >> RnShift) & Mask4Bit)

	noRd := opcode == OpTST || opcode == OpTEQ || opcode == OpCMP || opcode == OpCMN
	noRn := opcode == OpMOV || opcode == OpMVN

	var args []Arg
	if !noRd {
		args = append(args, regArg(rd))
	}
	if !noRn {
		args = append(args, regArg(rn))
	}

	if word&(1<<IBitShift) != 0 {
		imm := word & ImmediateValueMask
		rot := ((word >> RotationShift) & RotationMask) * RotationMultiplier
		args = append(args, constArg(rotateRight32(imm, rot), StyleUnknown))
	} else {
		rm := int(word & Mask4Bit)
		args = append(args, regArg(rm))
		shiftType := ShiftType((word >> ShiftTypePos) & Mask2Bit)
		if word&(1<<Bit4Pos) != 0 {
			rs := int((word >> RsShift) & Mask4Bit)
			args = append(args, Arg{Kind: ArgShift, Shift: &ShiftArg{Type: shiftType, AmountIsRegister: true, AmountRegister: rs}})
		} else {
			amount := int((word >> ShiftAmountPos) & Mask5Bit)
			args = append(args, Arg{Kind: ArgShift, Shift: &ShiftArg{Type: shiftType, AmountConstant: amount}})
		}
	}

	return &PrettyInstr{OpcodePrefix: mnemonic, Cond: cond, OpcodeSuffix: suffix, Args: args}
}

func disasmSingleTransfer(word uint32, cond string) *PrettyInstr {
	load := word&(1<<LBitShift) != 0
	byteT := word&(1<<BBitShift) != 0
	name, suffix := "STR", ""
	if load {
		name = "LDR"
	}
	if byteT {
		suffix = "B"
	}
	rd := int((word >> RdShift) & Mask4Bit)
	rn := int((word >> RnShift) & Mask4Bit)
	writeBack := word&(1<<WBitShift) != 0
	negative := word&(1<<UBitShift) == 0

	args := []Arg{regArg(rd), {Kind: ArgRegister, Register: &RegisterArg{Index: rn, Negative: negative, WriteBack: writeBack}}}
	if word&(1<<IBitShift) != 0 {
		rm := int(word & Mask4Bit)
		args = append(args, regArg(rm))
	} else {
		args = append(args, constArg(word&Offset12BitMask, StyleAddress))
	}
	return &PrettyInstr{OpcodePrefix: name, Cond: cond, OpcodeSuffix: suffix, Args: args}
}

func disasmHalfword(word uint32, cond string) *PrettyInstr {
	load := word&(1<<LBitShift) != 0
	sh := (word >> ShiftTypePos) & Mask2Bit
	name := map[bool]string{true: "LDR", false: "STR"}[load]
	suffix := "H"
	if load {
		switch sh {
		case 0b10:
			suffix = "SB"
		case 0b11:
			suffix = "SH"
		}
	}
	rd := int((word >> RdShift) & Mask4Bit)
	rn := int((word >> RnShift) & Mask4Bit)
	return &PrettyInstr{
		OpcodePrefix: name, Cond: cond, OpcodeSuffix: suffix,
		Args: []Arg{regArg(rd), regArg(rn)},
	}
}

func disasmBranch(word uint32, cond string) *PrettyInstr {
	name := "B"
	if word&(1<<BranchLinkShift) != 0 {
		name = "BL"
	}
	offset := word & Offset24BitMask
	if offset&Offset24BitSignBit != 0 {
		offset |= Offset24BitSignExt
	}
	target := (offset << WordToByteShift) + PCBranchBase
	return &PrettyInstr{OpcodePrefix: name, Cond: cond, Args: []Arg{constArg(target, StyleAddress)}}
}

func disasmBlockTransfer(word uint32, cond string) *PrettyInstr {
	load := word&(1<<LBitShift) != 0
	name := map[bool]string{true: "LDM", false: "STM"}[load]
	rn := int((word >> RnShift) & Mask4Bit)
	writeBack := word&(1<<WBitShift) != 0
	caret := word&(1<<BBitShift) != 0

	var regs []int
	for i := 0; i < 16; i++ {
		if word&(1<<uint(i)) != 0 {
			regs = append(regs, i)
		}
	}

	return &PrettyInstr{
		OpcodePrefix: name, Cond: cond,
		Args: []Arg{
			{Kind: ArgRegister, Register: &RegisterArg{Index: rn, WriteBack: writeBack}},
			{Kind: ArgRegisterSet, RegisterSet: &RegisterSetArg{Registers: regs, Caret: caret}},
		},
	}
}

// String renders a PrettyInstr as assembly text, used by the CLI and
// line_at's textual fallback when a richer host UI isn't listening.
func (p *PrettyInstr) String() string {
	s := p.OpcodePrefix + p.Cond + p.OpcodeSuffix
	for i, a := range p.Args {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		s += a.String()
	}
	return s
}

func (a Arg) String() string {
	switch a.Kind {
	case ArgRegister:
		name := regNames[a.Register.Index]
		s := name
		if a.Register.Negative {
			s = "[" + name + ", -]"
		}
		if a.Register.WriteBack {
			s += "!"
		}
		return s
	case ArgPsr:
		if a.Psr.FlagOnly {
			return a.Psr.Name + "_flg"
		}
		return a.Psr.Name
	case ArgShift:
		if a.Shift.AmountIsRegister {
			return fmt.Sprintf("%s %s", shiftName(a.Shift.Type), regNames[a.Shift.AmountRegister])
		}
		return fmt.Sprintf("%s #%d", shiftName(a.Shift.Type), a.Shift.AmountConstant)
	case ArgConstant:
		return fmt.Sprintf("#0x%X", a.Constant.Value)
	case ArgRegisterSet:
		s := "{"
		for i, r := range a.RegisterSet.Registers {
			if i > 0 {
				s += ", "
			}
			s += regNames[r]
		}
		s += "}"
		if a.RegisterSet.Caret {
			s += "^"
		}
		return s
	default:
		return "?"
	}
}

func shiftName(t ShiftType) string {
	switch t {
	case ShiftLSL:
		return "LSL"
	case ShiftLSR:
		return "LSR"
	case ShiftASR:
		return "ASR"
	case ShiftROR:
		return "ROR"
	case ShiftRRX:
		return "RRX"
	default:
		return "?"
	}
}
