package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/armcore/arm7tdmi/vm"
)

// Encoder is the Assembler's second pass: it turns parsed Instructions into
// ARM v4T machine code words, resolving symbols and literal pools along the
// way. Kept inside the parser package rather than split out, since the
// Assembler is a single component producing one output tuple.
type Encoder struct {
	symbolTable       *SymbolTable
	currentAddr       uint32
	LiteralPool       map[uint32]uint32
	LiteralPoolStart  uint32
	LiteralPoolLocs   []uint32
	LiteralPoolCounts []int
	pendingLiterals   map[uint32]uint32
	PoolWarnings      []string
}

// NewEncoder creates an Encoder bound to a symbol table populated by the
// first pass.
func NewEncoder(symbolTable *SymbolTable) *Encoder {
	return &Encoder{
		symbolTable:       symbolTable,
		LiteralPool:       make(map[uint32]uint32),
		LiteralPoolLocs:   make([]uint32, 0),
		LiteralPoolCounts: make([]int, 0),
		pendingLiterals:   make(map[uint32]uint32),
	}
}

// EncodeInstruction encodes one parsed instruction at address, dispatching
// by mnemonic to the instruction-class encoder.
func (e *Encoder) EncodeInstruction(inst *Instruction, address uint32) (uint32, error) {
	e.currentAddr = address
	cond := e.encodeCondition(inst.Condition)
	mnemonic := strings.ToUpper(inst.Mnemonic)

	switch mnemonic {
	case "MOV", "MVN":
		return e.encodeDataProcessingMove(inst, cond)
	case "ADD", "ADC", "SUB", "SBC", "RSB", "RSC":
		return e.encodeDataProcessingArithmetic(inst, cond)
	case "AND", "ORR", "EOR", "BIC":
		return e.encodeDataProcessingLogical(inst, cond)
	case "CMP", "CMN", "TST", "TEQ":
		return e.encodeDataProcessingCompare(inst, cond)

	case "LDR", "STR", "LDRB", "STRB", "LDRH", "STRH", "LDRSB", "LDRSH":
		return e.encodeMemory(inst, cond)

	case "B", "BL", "BX":
		return e.encodeBranch(inst, cond)

	case "MUL", "MLA":
		return e.encodeMultiply(inst, cond)
	case "UMULL", "UMLAL", "SMULL", "SMLAL":
		return e.encodeLongMultiply(inst, cond)

	case "SWP", "SWPB":
		return e.encodeSwap(inst, cond)

	case "MRS":
		return e.encodeMRS(inst, cond)
	case "MSR":
		return e.encodeMSR(inst, cond)

	case "LDM", "LDMIA", "LDMIB", "LDMDA", "LDMDB":
		return e.encodeLoadStoreMultiple(inst, cond, false)
	case "STM", "STMIA", "STMIB", "STMDA", "STMDB":
		return e.encodeLoadStoreMultiple(inst, cond, true)
	case "LDMFD", "LDMFA", "LDMEA", "LDMED":
		return e.encodeLoadStoreMultiple(inst, cond, false)
	case "STMFD", "STMFA", "STMEA", "STMED":
		return e.encodeLoadStoreMultiple(inst, cond, true)
	case "PUSH":
		return e.encodePush(inst, cond)
	case "POP":
		return e.encodePop(inst, cond)
	case "NOP":
		return e.encodeNOP(cond), nil

	case "SWI", "SVC":
		return e.encodeSWI(inst, cond)

	case "ADR":
		return e.encodeADR(inst, cond)

	case "DW":
		return e.encodeDW(inst)

	default:
		return 0, fmt.Errorf("unknown instruction: %s", mnemonic)
	}
}

func (e *Encoder) encodeCondition(cond string) uint32 {
	c, ok := vm.ParseConditionCode(cond)
	if !ok {
		return uint32(vm.CondAL)
	}
	return uint32(c)
}

func (e *Encoder) parseRegister(reg string) (uint32, error) {
	reg = strings.ToUpper(strings.TrimSpace(reg))
	switch reg {
	case "SP", "R13":
		return 13, nil
	case "LR", "R14":
		return 14, nil
	case "PC", "R15":
		return 15, nil
	}
	if strings.HasPrefix(reg, "R") {
		num, err := strconv.ParseUint(reg[1:], 10, 32)
		if err != nil || num > 15 {
			return 0, fmt.Errorf("invalid register: %s", reg)
		}
		return uint32(num), nil
	}
	return 0, fmt.Errorf("invalid register: %s", reg)
}

func (e *Encoder) parseImmediate(imm string) (uint32, error) {
	imm = strings.TrimSpace(imm)
	if imm == "" {
		return 0, fmt.Errorf("empty immediate value")
	}
	imm = strings.TrimPrefix(imm, "#")

	if strings.HasPrefix(imm, "'") && strings.HasSuffix(imm, "'") && len(imm) >= 3 {
		charLiteral := imm[1 : len(imm)-1]
		if strings.HasPrefix(charLiteral, "\\") {
			b, consumed, err := ParseEscapeChar(charLiteral)
			if err != nil || consumed != len(charLiteral) {
				return 0, fmt.Errorf("invalid character literal: %s", imm)
			}
			return uint32(b), nil
		}
		if len(charLiteral) != 1 {
			return 0, fmt.Errorf("character literal must contain exactly one character: %s", imm)
		}
		return uint32(charLiteral[0]), nil
	}

	negative := false
	if strings.HasPrefix(imm, "-") {
		negative = true
		imm = imm[1:]
	}

	if !strings.HasPrefix(imm, "0x") && !strings.HasPrefix(imm, "0X") {
		if sym, exists := e.symbolTable.Lookup(imm); exists && sym.Defined {
			return sym.Value, nil
		}
	}

	var value uint64
	var err error
	switch {
	case strings.HasPrefix(imm, "0x") || strings.HasPrefix(imm, "0X"):
		value, err = strconv.ParseUint(imm[2:], 16, 32)
	case strings.HasPrefix(imm, "0b") || strings.HasPrefix(imm, "0B"):
		value, err = strconv.ParseUint(imm[2:], 2, 32)
	case strings.HasPrefix(imm, "0o") || strings.HasPrefix(imm, "0O"):
		value, err = strconv.ParseUint(imm[2:], 8, 32)
	default:
		value, err = strconv.ParseUint(imm, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid immediate value: %s", imm)
	}

	result := uint32(value)
	if negative {
		if result < 1 || result > uint32(math.MaxInt32)+1 {
			return 0, fmt.Errorf("immediate value out of valid signed 32-bit range: %s", imm)
		}
		result = uint32(-int32(result)) // #nosec G115 -- bounds checked above
	}
	return result, nil
}

func (e *Encoder) encodeImmediate(value uint32) (uint32, bool) {
	for rotate := uint32(0); rotate < 32; rotate += 2 {
		rotated := (value >> rotate) | (value << (32 - rotate))
		if rotated <= 0xFF {
			decodeRotate := (32 - rotate) % 32
			return ((decodeRotate / 2) << 8) | rotated, true
		}
	}
	return 0, false
}

func (e *Encoder) parseShift(shift string) (shiftType, shiftAmount uint32, shiftReg int32, err error) {
	shift = strings.TrimSpace(shift)
	if shift == "" {
		return 0, 0, -1, nil
	}
	parts := strings.Fields(shift)
	if len(parts) < 2 {
		return 0, 0, -1, fmt.Errorf("invalid shift: %s", shift)
	}
	switch strings.ToUpper(parts[0]) {
	case "LSL":
		shiftType = 0
	case "LSR":
		shiftType = 1
	case "ASR":
		shiftType = 2
	case "ROR":
		shiftType = 3
	case "RRX":
		return 3, 0, -1, nil
	default:
		return 0, 0, -1, fmt.Errorf("unknown shift type: %s", parts[0])
	}
	if strings.HasPrefix(parts[1], "#") {
		amount, err := e.parseImmediate(parts[1])
		if err != nil {
			return 0, 0, -1, err
		}
		return shiftType, amount, -1, nil
	}
	reg, err := e.parseRegister(parts[1])
	if err != nil {
		return 0, 0, -1, err
	}
	return shiftType, 0, int32(reg), nil // #nosec G115 -- register is 0-15
}

func (e *Encoder) evaluateExpression(expr string) (uint32, error) {
	expr = strings.TrimSpace(expr)
	for i := 1; i < len(expr); i++ {
		if expr[i] == '+' || expr[i] == '-' {
			left := strings.TrimSpace(expr[:i])
			right := strings.TrimSpace(expr[i+1:])
			leftVal, err := e.evaluateTerm(left)
			if err != nil {
				return 0, err
			}
			rightVal, err := e.evaluateTerm(right)
			if err != nil {
				return 0, err
			}
			if expr[i] == '+' {
				return leftVal + rightVal, nil
			}
			return leftVal - rightVal, nil
		}
	}
	return e.evaluateTerm(expr)
}

func (e *Encoder) evaluateTerm(term string) (uint32, error) {
	term = strings.TrimSpace(term)
	if sym, exists := e.symbolTable.Lookup(term); exists && sym.Defined {
		return sym.Value, nil
	}
	return e.parseImmediate(term)
}

func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	s = strings.TrimPrefix(s, "-")
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") ||
		strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B") ||
		(s[0] >= '0' && s[0] <= '9')
}

// ---- Data processing ----

var dataProcOpcodes = map[string]uint32{
	"AND": 0x0, "EOR": 0x1, "SUB": 0x2, "RSB": 0x3,
	"ADD": 0x4, "ADC": 0x5, "SBC": 0x6, "RSC": 0x7,
	"TST": 0x8, "TEQ": 0x9, "CMP": 0xA, "CMN": 0xB,
	"ORR": 0xC, "MOV": 0xD, "BIC": 0xE, "MVN": 0xF,
}

func (e *Encoder) encodeDataProcessingMove(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 2 {
		return 0, fmt.Errorf("%s requires 2 operands, got %d", inst.Mnemonic, len(inst.Operands))
	}
	rd, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	opcode := dataProcOpcodes[strings.ToUpper(inst.Mnemonic)]
	sBit := uint32(0)
	if inst.SetFlags {
		sBit = 1
	}
	return e.encodeOperand2(cond, opcode, 0, rd, sBit, inst.Operands[1])
}

func (e *Encoder) encodeDataProcessingArithmetic(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 3 {
		return 0, fmt.Errorf("%s requires 3 operands, got %d", inst.Mnemonic, len(inst.Operands))
	}
	rd, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	rn, err := e.parseRegister(inst.Operands[1])
	if err != nil {
		return 0, err
	}
	opcode := dataProcOpcodes[strings.ToUpper(inst.Mnemonic)]
	sBit := uint32(0)
	if inst.SetFlags {
		sBit = 1
	}
	return e.encodeOperand2(cond, opcode, rn, rd, sBit, inst.Operands[2])
}

func (e *Encoder) encodeDataProcessingLogical(inst *Instruction, cond uint32) (uint32, error) {
	return e.encodeDataProcessingArithmetic(inst, cond)
}

func (e *Encoder) encodeDataProcessingCompare(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 2 {
		return 0, fmt.Errorf("%s requires 2 operands, got %d", inst.Mnemonic, len(inst.Operands))
	}
	rn, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	opcode := dataProcOpcodes[strings.ToUpper(inst.Mnemonic)]
	return e.encodeOperand2(cond, opcode, rn, 0, 1, inst.Operands[1])
}

func (e *Encoder) encodeOperand2(cond, opcode, rn, rd, sBit uint32, operand string) (uint32, error) {
	operand = strings.TrimSpace(operand)

	if strings.HasPrefix(operand, "#") || isNumeric(operand) {
		value, err := e.parseImmediate(operand)
		if err != nil {
			return 0, err
		}
		encoded, ok := e.encodeImmediate(value)
		if !ok {
			switch opcode {
			case dataProcOpcodes["MOV"]:
				if inv, ok := e.encodeImmediate(^value); ok {
					opcode, encoded = dataProcOpcodes["MVN"], inv
				} else {
					return 0, fmt.Errorf("immediate value 0x%08X cannot be encoded as ARM immediate", value)
				}
			case dataProcOpcodes["MVN"]:
				if inv, ok := e.encodeImmediate(^value); ok {
					opcode, encoded = dataProcOpcodes["MOV"], inv
				} else {
					return 0, fmt.Errorf("immediate value 0x%08X cannot be encoded as ARM immediate", value)
				}
			case dataProcOpcodes["CMP"]:
				if neg, ok := e.encodeImmediate(uint32(-int32(value))); ok { // #nosec G115 -- intentional two's complement
					opcode, encoded = dataProcOpcodes["CMN"], neg
				} else {
					return 0, fmt.Errorf("immediate value 0x%08X cannot be encoded as ARM immediate", value)
				}
			case dataProcOpcodes["CMN"]:
				if neg, ok := e.encodeImmediate(uint32(-int32(value))); ok { // #nosec G115 -- intentional two's complement
					opcode, encoded = dataProcOpcodes["CMP"], neg
				} else {
					return 0, fmt.Errorf("immediate value 0x%08X cannot be encoded as ARM immediate", value)
				}
			default:
				return 0, fmt.Errorf("immediate value 0x%08X cannot be encoded as ARM immediate", value)
			}
		}
		instruction := (cond << vm.ConditionShift) | (1 << vm.IBitShift) | (opcode << vm.OpcodeShift) |
			(sBit << vm.SBitShift) | (rn << vm.RnShift) | (rd << vm.RdShift) | encoded
		return instruction, nil
	}

	parts := strings.Split(operand, ",")
	rm, err := e.parseRegister(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, err
	}

	var shiftField uint32
	if len(parts) > 1 {
		shiftStr := strings.TrimSpace(strings.Join(parts[1:], ","))
		shiftType, shiftAmount, shiftReg, err := e.parseShift(shiftStr)
		if err != nil {
			return 0, err
		}
		if shiftReg >= 0 {
			shiftField = (uint32(shiftReg) << vm.RsShift) | (shiftType << vm.ShiftTypePos) | (1 << vm.Bit4Pos) | rm
		} else {
			shiftField = (shiftAmount << vm.ShiftAmountPos) | (shiftType << vm.ShiftTypePos) | rm
		}
	} else {
		shiftField = rm
	}

	instruction := (cond << vm.ConditionShift) | (opcode << vm.OpcodeShift) | (sBit << vm.SBitShift) |
		(rn << vm.RnShift) | (rd << vm.RdShift) | shiftField
	return instruction, nil
}

func (e *Encoder) encodeADR(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) != 2 {
		return 0, fmt.Errorf("ADR requires 2 operands (Rd, label), got %d", len(inst.Operands))
	}
	rd, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	labelStr := strings.TrimSpace(inst.Operands[1])
	targetAddr, err := e.symbolTable.Get(labelStr)
	if err != nil {
		return 0, fmt.Errorf("ADR: label %s not found: %w", labelStr, err)
	}

	pcValue := e.currentAddr + vm.PCBranchBase
	offset := int32(targetAddr) - int32(pcValue)

	opcode := dataProcOpcodes["ADD"]
	absOffset := uint32(offset)
	if offset < 0 {
		opcode = dataProcOpcodes["SUB"]
		absOffset = uint32(-offset)
	}
	rotated, ok := e.encodeImmediate(absOffset)
	if !ok {
		return 0, fmt.Errorf("ADR: offset %d cannot be encoded as ARM immediate", offset)
	}
	instruction := (cond << vm.ConditionShift) | (1 << vm.IBitShift) | (opcode << vm.OpcodeShift) |
		(uint32(vm.ARMRegisterPC) << vm.RnShift) | (rd << vm.RdShift) | rotated
	return instruction, nil
}

func (e *Encoder) encodeDW(inst *Instruction) (uint32, error) {
	if len(inst.Operands) != 1 {
		return 0, fmt.Errorf("dw requires exactly 1 operand, got %d", len(inst.Operands))
	}
	return e.evaluateExpression(strings.TrimPrefix(inst.Operands[0], "#"))
}

// ---- Memory ----

func (e *Encoder) encodeMemory(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 2 {
		return 0, fmt.Errorf("%s requires at least 2 operands, got %d", inst.Mnemonic, len(inst.Operands))
	}
	mnemonic := strings.ToUpper(inst.Mnemonic)

	rd, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}

	if strings.HasPrefix(inst.Operands[1], "=") {
		return e.encodeLDRPseudo(inst, cond, rd)
	}

	addrMode := inst.Operands[1]
	if len(inst.Operands) > 2 && strings.HasSuffix(addrMode, "]") && !strings.HasSuffix(addrMode, "]!") {
		addrMode = addrMode + "," + inst.Operands[2]
	}

	lBit := uint32(0)
	if strings.HasPrefix(mnemonic, "LDR") {
		lBit = 1
	}
	bBit := uint32(0)
	if strings.HasSuffix(mnemonic, "B") && mnemonic != "SWPB" {
		bBit = 1
	}

	switch {
	case mnemonic == "LDRSB":
		return e.encodeMemoryHalfword(inst, cond, rd, 1, 0b10)
	case mnemonic == "LDRSH":
		return e.encodeMemoryHalfword(inst, cond, rd, 1, 0b11)
	case strings.HasSuffix(mnemonic, "H"):
		return e.encodeMemoryHalfword(inst, cond, rd, lBit, 0b01)
	}

	return e.encodeAddressingMode(cond, lBit, bBit, rd, addrMode)
}

func (e *Encoder) encodeAddressingMode(cond, lBit, bBit, rd uint32, addrMode string) (uint32, error) {
	addrMode = strings.TrimSpace(addrMode)
	if !strings.HasPrefix(addrMode, "[") {
		return 0, fmt.Errorf("invalid addressing mode: %s", addrMode)
	}

	postIndexed := strings.Contains(addrMode, "],")
	writeBack := strings.HasSuffix(addrMode, "]!")
	if writeBack {
		addrMode = strings.TrimSuffix(addrMode, "!")
	}

	var parts []string
	if postIndexed {
		addrMode = strings.TrimPrefix(addrMode, "[")
		parts = strings.Split(addrMode, "],")
	} else {
		addrMode = strings.TrimPrefix(addrMode, "[")
		addrMode = strings.TrimSuffix(addrMode, "]")
		parts = strings.Split(addrMode, ",")
	}
	rn, err := e.parseRegister(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, err
	}

	pBit := uint32(1)
	if postIndexed {
		pBit = 0
	}
	wBit := uint32(0)
	if writeBack || postIndexed {
		wBit = 1
	}

	var iBit, uBit, offsetField uint32 = 0, 1, 0
	if len(parts) > 1 {
		offsetStr := strings.TrimSpace(strings.Join(parts[1:], ","))
		uBit = 1
		if strings.HasPrefix(offsetStr, "-") {
			uBit = 0
			offsetStr = strings.TrimPrefix(offsetStr, "-")
		} else {
			offsetStr = strings.TrimPrefix(offsetStr, "+")
		}
		offsetStr = strings.TrimSpace(offsetStr)

		if strings.HasPrefix(offsetStr, "#") || isNumeric(offsetStr) {
			iBit = 0
			offset, err := e.parseImmediate(offsetStr)
			if err != nil {
				return 0, err
			}
			if offset > 0xFFF {
				return 0, fmt.Errorf("offset too large: %d (max 4095)", offset)
			}
			offsetField = offset
		} else {
			iBit = 1
			regParts := strings.Split(offsetStr, ",")
			rm, err := e.parseRegister(strings.TrimSpace(regParts[0]))
			if err != nil {
				return 0, err
			}
			if len(regParts) > 1 {
				shiftStr := strings.TrimSpace(strings.Join(regParts[1:], ","))
				shiftType, shiftAmount, _, err := e.parseShift(shiftStr)
				if err != nil {
					return 0, err
				}
				offsetField = (shiftAmount << vm.ShiftAmountPos) | (shiftType << vm.ShiftTypePos) | rm
			} else {
				offsetField = rm
			}
		}
	}

	instruction := (cond << vm.ConditionShift) | (1 << vm.Bits27_26Shift) | (iBit << vm.IBitShift) | (pBit << vm.PBitShift) |
		(uBit << vm.UBitShift) | (bBit << vm.BBitShift) | (wBit << vm.WBitShift) | (lBit << vm.LBitShift) |
		(rn << vm.RnShift) | (rd << vm.RdShift) | offsetField
	return instruction, nil
}

func (e *Encoder) encodeLDRPseudo(inst *Instruction, cond, rd uint32) (uint32, error) {
	operand := strings.TrimSpace(inst.Operands[1])
	valueStr := strings.TrimSpace(strings.TrimPrefix(operand, "="))
	if valueStr == "" {
		return 0, fmt.Errorf("empty pseudo-instruction value in operand: '%s'", inst.Operands[1])
	}

	value, err := e.evaluateExpression(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid pseudo-instruction value '%s': %w", valueStr, err)
	}

	if encoded, ok := e.encodeImmediate(value); ok {
		return (cond << vm.ConditionShift) | (1 << vm.IBitShift) | (dataProcOpcodes["MOV"] << vm.OpcodeShift) |
			(rd << vm.RdShift) | encoded, nil
	}
	if encoded, ok := e.encodeImmediate(^value); ok {
		return (cond << vm.ConditionShift) | (1 << vm.IBitShift) | (dataProcOpcodes["MVN"] << vm.OpcodeShift) |
			(rd << vm.RdShift) | encoded, nil
	}

	var literalAddr uint32
	var found bool
	for addr, val := range e.LiteralPool {
		if val == value {
			literalAddr, found = addr, true
			break
		}
	}
	if !found {
		pc := e.currentAddr + vm.PCBranchBase
		literalAddr = e.findNearestLiteralPoolLocation(pc, value)
		if literalAddr == 0 {
			base := (e.currentAddr &^ 0xFFF) + 0x1000
			if e.LiteralPoolStart != 0 {
				base = e.LiteralPoolStart
			}
			literalAddr = base + uint32(len(e.LiteralPool)*4)
		}
		e.LiteralPool[literalAddr] = value
		e.pendingLiterals[value] = literalAddr
	}

	pc := e.currentAddr + vm.PCBranchBase
	offset := int32(literalAddr) - int32(pc)
	absOffset := offset
	if absOffset < 0 {
		absOffset = -absOffset
	}
	if absOffset > 4095 {
		return 0, fmt.Errorf("literal pool offset too large: %d bytes (max 4095)", absOffset)
	}

	uBit := uint32(1)
	if offset < 0 {
		uBit = 0
		offset = -offset
	}
	return (cond << vm.ConditionShift) | (1 << vm.Bits27_26Shift) | (1 << vm.PBitShift) | (uBit << vm.UBitShift) |
		(1 << vm.LBitShift) | (uint32(vm.ARMRegisterPC) << vm.RnShift) | (rd << vm.RdShift) | uint32(offset), nil
}

func (e *Encoder) findNearestLiteralPoolLocation(pc, value uint32) uint32 {
	if len(e.LiteralPoolLocs) == 0 {
		return 0
	}
	if addr, ok := e.pendingLiterals[value]; ok {
		if (addr > pc && addr-pc <= 4095) || (addr <= pc && pc-addr <= 4095) {
			return addr
		}
		delete(e.pendingLiterals, value)
	}

	var bestAddr uint32
	var bestDistance uint32 = 0xFFFFFFFF
	for _, poolLoc := range e.LiteralPoolLocs {
		count := 0
		for addr := range e.LiteralPool {
			if addr >= poolLoc && addr < poolLoc+LiteralPoolRangeBytes {
				count++
			}
		}
		candidate := poolLoc + uint32(count*4)
		var distance uint32
		if candidate > pc {
			distance = candidate - pc
		} else {
			distance = pc - candidate
		}
		if distance <= 4095 && distance < bestDistance {
			bestAddr, bestDistance = candidate, distance
		}
	}
	return bestAddr
}

// encodeMemoryHalfword covers LDRH/STRH/LDRSB/LDRSH, selected by (s,h) per §4.4.
func (e *Encoder) encodeMemoryHalfword(inst *Instruction, cond, rd, lBit, sh uint32) (uint32, error) {
	if len(inst.Operands) < 2 {
		return 0, fmt.Errorf("halfword instruction requires at least 2 operands")
	}
	addrMode := inst.Operands[1]
	if len(inst.Operands) > 2 && strings.HasSuffix(addrMode, "]") && !strings.HasSuffix(addrMode, "]!") {
		addrMode = addrMode + "," + inst.Operands[2]
	}
	addrMode = strings.TrimSpace(addrMode)

	postIndexed := strings.Contains(addrMode, "],")
	writeBack := strings.HasSuffix(addrMode, "]!")
	if writeBack {
		addrMode = strings.TrimSuffix(addrMode, "!")
	}
	if !strings.HasPrefix(addrMode, "[") {
		return 0, fmt.Errorf("invalid addressing mode for halfword: %s", addrMode)
	}
	addrMode = strings.TrimPrefix(addrMode, "[")
	addrMode = strings.TrimSuffix(addrMode, "]")

	var parts []string
	if postIndexed {
		parts = strings.Split(addrMode, "],")
	} else {
		parts = strings.Split(addrMode, ",")
	}
	rn, err := e.parseRegister(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, err
	}

	var offset uint32
	uBit := uint32(1)
	isRegOffset := false
	if len(parts) > 1 {
		offsetStr := strings.TrimSpace(parts[1])
		if strings.HasPrefix(offsetStr, "-") {
			uBit = 0
			offsetStr = strings.TrimPrefix(offsetStr, "-")
		}
		if strings.HasPrefix(offsetStr, "#") || isNumeric(offsetStr) {
			offset, err = e.parseImmediate(offsetStr)
		} else {
			offset, err = e.parseRegister(offsetStr)
			isRegOffset = true
		}
		if err != nil {
			return 0, err
		}
	}

	pBit := uint32(1)
	if postIndexed {
		pBit = 0
	}
	wBit := uint32(0)
	if writeBack {
		wBit = 1
	}

	base := (cond << vm.ConditionShift) | (pBit << vm.PBitShift) | (uBit << vm.UBitShift) |
		(wBit << vm.WBitShift) | (lBit << vm.LBitShift) | (rn << vm.RnShift) | (rd << vm.RdShift) |
		(1 << vm.Bit7Pos) | (sh << vm.ShiftTypePos) | (1 << vm.Bit4Pos)

	if isRegOffset {
		return base | offset, nil
	}
	if offset > 0xFF {
		return 0, fmt.Errorf("halfword immediate offset too large: %d (max 255)", offset)
	}
	return base | (1 << vm.BBitShift) | ((offset >> 4) << vm.RsShift) | (offset & 0xF), nil
}

// ---- Branch ----

func (e *Encoder) encodeBranch(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 1 {
		return 0, fmt.Errorf("%s requires 1 operand, got %d", inst.Mnemonic, len(inst.Operands))
	}
	mnemonic := strings.ToUpper(inst.Mnemonic)
	if mnemonic == "BX" {
		rm, err := e.parseRegister(inst.Operands[0])
		if err != nil {
			return 0, err
		}
		return (cond << vm.ConditionShift) | vm.BXEncodingBase | rm, nil
	}

	target := strings.TrimSpace(inst.Operands[0])
	var targetAddr uint32
	var err error
	if sym, exists := e.symbolTable.Lookup(target); exists && sym.Defined {
		targetAddr = sym.Value
	} else if targetAddr, err = e.parseImmediate(target); err != nil {
		return 0, fmt.Errorf("undefined label or invalid address: %s", target)
	}

	pc := e.currentAddr + vm.PCBranchBase
	offset := int32(targetAddr) - int32(pc)
	if offset&0x3 != 0 {
		return 0, fmt.Errorf("branch target not word-aligned: offset=%d", offset)
	}
	wordOffset := offset / 4
	if wordOffset < -0x800000 || wordOffset > 0x7FFFFF {
		return 0, fmt.Errorf("branch offset out of range: %d", offset)
	}
	encodedOffset := uint32(wordOffset) & vm.Mask24Bit // #nosec G115 -- bounds checked above

	lBit := uint32(0)
	if mnemonic == "BL" {
		lBit = 1
	}
	return (cond << vm.ConditionShift) | (5 << vm.Bits27_25Shift) | (lBit << vm.BranchLinkShift) | encodedOffset, nil
}

// ---- Multiply ----

func (e *Encoder) encodeMultiply(inst *Instruction, cond uint32) (uint32, error) {
	mnemonic := strings.ToUpper(inst.Mnemonic)
	sBit := uint32(0)
	if inst.SetFlags {
		sBit = 1
	}

	if mnemonic == "MUL" {
		if len(inst.Operands) < 3 {
			return 0, fmt.Errorf("MUL requires 3 operands, got %d", len(inst.Operands))
		}
		rd, err := e.parseRegister(inst.Operands[0])
		if err != nil {
			return 0, err
		}
		rm, err := e.parseRegister(inst.Operands[1])
		if err != nil {
			return 0, err
		}
		rs, err := e.parseRegister(inst.Operands[2])
		if err != nil {
			return 0, err
		}
		return (cond << vm.ConditionShift) | (sBit << vm.SBitShift) | (rd << vm.RnShift) |
			(rs << vm.RsShift) | vm.MultiplyPattern | rm, nil
	}

	if len(inst.Operands) < 4 {
		return 0, fmt.Errorf("MLA requires 4 operands, got %d", len(inst.Operands))
	}
	rd, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	rm, err := e.parseRegister(inst.Operands[1])
	if err != nil {
		return 0, err
	}
	rs, err := e.parseRegister(inst.Operands[2])
	if err != nil {
		return 0, err
	}
	rn, err := e.parseRegister(inst.Operands[3])
	if err != nil {
		return 0, err
	}
	return (cond << vm.ConditionShift) | (1 << vm.MultiplyAShift) | (sBit << vm.SBitShift) | (rd << vm.RnShift) |
		(rn << vm.RdShift) | (rs << vm.RsShift) | vm.MultiplyPattern | rm, nil
}

func (e *Encoder) encodeLongMultiply(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 4 {
		return 0, fmt.Errorf("%s requires 4 operands, got %d", inst.Mnemonic, len(inst.Operands))
	}
	rdLo, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	rdHi, err := e.parseRegister(inst.Operands[1])
	if err != nil {
		return 0, err
	}
	rm, err := e.parseRegister(inst.Operands[2])
	if err != nil {
		return 0, err
	}
	rs, err := e.parseRegister(inst.Operands[3])
	if err != nil {
		return 0, err
	}

	mnemonic := strings.ToUpper(inst.Mnemonic)
	signedBit := uint32(0)
	if mnemonic == "SMULL" || mnemonic == "SMLAL" {
		signedBit = 1
	}
	accBit := uint32(0)
	if mnemonic == "UMLAL" || mnemonic == "SMLAL" {
		accBit = 1
	}
	sBit := uint32(0)
	if inst.SetFlags {
		sBit = 1
	}

	return (cond << vm.ConditionShift) | vm.LongMultiplyPattern | (signedBit << vm.BBitShift) |
		(accBit << vm.MultiplyAShift) | (sBit << vm.SBitShift) | (rdHi << vm.RnShift) | (rdLo << vm.RdShift) |
		(rs << vm.RsShift) | rm, nil
}

// ---- Swap ----

func (e *Encoder) encodeSwap(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 3 {
		return 0, fmt.Errorf("%s requires 3 operands, got %d", inst.Mnemonic, len(inst.Operands))
	}
	rd, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	rm, err := e.parseRegister(inst.Operands[1])
	if err != nil {
		return 0, err
	}
	addr := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(inst.Operands[2]), "["), "]")
	rn, err := e.parseRegister(addr)
	if err != nil {
		return 0, err
	}
	bBit := uint32(0)
	if strings.ToUpper(inst.Mnemonic) == "SWPB" {
		bBit = 1
	}
	return (cond << vm.ConditionShift) | vm.SWPPattern | (bBit << vm.BBitShift) | (rn << vm.RnShift) | (rd << vm.RdShift) | rm, nil
}

// ---- PSR transfer ----

func (e *Encoder) encodeMRS(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 2 {
		return 0, fmt.Errorf("MRS requires 2 operands, got %d", len(inst.Operands))
	}
	rd, err := e.parseRegister(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	rBit := uint32(0)
	if strings.EqualFold(strings.TrimSpace(inst.Operands[1]), "SPSR") {
		rBit = 1
	}
	return (cond << vm.ConditionShift) | vm.MRSPattern | (rBit << vm.BBitShift) | (rd << vm.RdShift), nil
}

func (e *Encoder) encodeMSR(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 2 {
		return 0, fmt.Errorf("MSR requires 2 operands, got %d", len(inst.Operands))
	}
	dest := strings.ToUpper(strings.TrimSpace(inst.Operands[0]))
	rBit := uint32(0)
	fieldMask := uint32(0xF)
	if strings.HasPrefix(dest, "SPSR") {
		rBit = 1
	}
	if strings.HasSuffix(dest, "_FLG") {
		fieldMask = 0x8
	}

	source := strings.TrimSpace(inst.Operands[1])
	if strings.HasPrefix(source, "#") || isNumeric(source) {
		imm, err := e.parseImmediate(source)
		if err != nil {
			return 0, err
		}
		encoded, ok := e.encodeImmediate(imm)
		if !ok {
			return 0, fmt.Errorf("MSR: immediate value 0x%08X cannot be encoded as ARM immediate", imm)
		}
		return (cond << vm.ConditionShift) | vm.MSRImmPattern | (rBit << vm.BBitShift) | (fieldMask << vm.RnShift) | encoded, nil
	}

	rm, err := e.parseRegister(source)
	if err != nil {
		return 0, err
	}
	return (cond << vm.ConditionShift) | vm.MSRRegPattern | (rBit << vm.BBitShift) | (fieldMask << vm.RnShift) | rm, nil
}

// ---- Block transfer ----

func (e *Encoder) encodeLoadStoreMultiple(inst *Instruction, cond uint32, isStore bool) (uint32, error) {
	if len(inst.Operands) < 2 {
		return 0, fmt.Errorf("%s requires at least 2 operands, got %d", inst.Mnemonic, len(inst.Operands))
	}
	baseReg := inst.Operands[0]
	writeBack := strings.HasSuffix(baseReg, "!")
	if writeBack {
		baseReg = strings.TrimSuffix(baseReg, "!")
	}
	rn, err := e.parseRegister(baseReg)
	if err != nil {
		return 0, err
	}
	regMask, err := e.parseRegisterList(inst.Operands[1])
	if err != nil {
		return 0, err
	}

	mnemonic := strings.ToUpper(inst.Mnemonic)
	var pBit, uBit uint32
	switch {
	case strings.Contains(mnemonic, "IA"):
		pBit, uBit = 0, 1
	case strings.Contains(mnemonic, "IB"):
		pBit, uBit = 1, 1
	case strings.Contains(mnemonic, "DA"):
		pBit, uBit = 0, 0
	case strings.Contains(mnemonic, "DB"):
		pBit, uBit = 1, 0
	case strings.Contains(mnemonic, "FD"):
		if isStore {
			pBit, uBit = 1, 0
		} else {
			pBit, uBit = 0, 1
		}
	case strings.Contains(mnemonic, "ED"):
		if isStore {
			pBit, uBit = 0, 0
		} else {
			pBit, uBit = 1, 1
		}
	case strings.Contains(mnemonic, "FA"):
		if isStore {
			pBit, uBit = 1, 1
		} else {
			pBit, uBit = 0, 0
		}
	case strings.Contains(mnemonic, "EA"):
		if isStore {
			pBit, uBit = 0, 1
		} else {
			pBit, uBit = 1, 0
		}
	default:
		pBit, uBit = 0, 1
	}

	lBit := uint32(0)
	if !isStore {
		lBit = 1
	}
	wBit := uint32(0)
	if writeBack {
		wBit = 1
	}

	return (cond << vm.ConditionShift) | (1 << (vm.Bits27_26Shift + 1)) |
		(pBit << vm.PBitShift) | (uBit << vm.UBitShift) | (wBit << vm.WBitShift) | (lBit << vm.LBitShift) |
		(rn << vm.RnShift) | regMask, nil
}

func (e *Encoder) encodePush(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 1 {
		return 0, fmt.Errorf("PUSH requires 1 operand, got %d", len(inst.Operands))
	}
	regMask, err := e.parseRegisterList(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	return (cond << vm.ConditionShift) | (1 << (vm.Bits27_26Shift + 1)) |
		(1 << vm.PBitShift) | (1 << vm.WBitShift) | (uint32(vm.ARMRegisterSP) << vm.RnShift) | regMask, nil
}

func (e *Encoder) encodePop(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 1 {
		return 0, fmt.Errorf("POP requires 1 operand, got %d", len(inst.Operands))
	}
	regMask, err := e.parseRegisterList(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	return (cond << vm.ConditionShift) | (1 << (vm.Bits27_26Shift + 1)) |
		(1 << vm.UBitShift) | (1 << vm.WBitShift) | (1 << vm.LBitShift) | (uint32(vm.ARMRegisterSP) << vm.RnShift) | regMask, nil
}

func (e *Encoder) parseRegisterList(list string) (uint32, error) {
	list = strings.TrimSpace(list)
	list = strings.TrimPrefix(list, "{")
	list = strings.TrimSuffix(list, "}")

	var mask uint32
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return 0, fmt.Errorf("invalid register range: %s", part)
			}
			start, err := e.parseRegister(strings.TrimSpace(rangeParts[0]))
			if err != nil {
				return 0, err
			}
			end, err := e.parseRegister(strings.TrimSpace(rangeParts[1]))
			if err != nil {
				return 0, err
			}
			if start > end {
				return 0, fmt.Errorf("invalid register range: %s (start > end)", part)
			}
			for r := start; r <= end; r++ {
				mask |= 1 << r
			}
		} else {
			reg, err := e.parseRegister(part)
			if err != nil {
				return 0, err
			}
			mask |= 1 << reg
		}
	}
	return mask, nil
}

// ---- Misc ----

func (e *Encoder) encodeNOP(cond uint32) uint32 {
	return (cond << vm.ConditionShift) | (dataProcOpcodes["MOV"] << vm.OpcodeShift)
}

func (e *Encoder) encodeSWI(inst *Instruction, cond uint32) (uint32, error) {
	if len(inst.Operands) < 1 {
		return 0, fmt.Errorf("SWI requires 1 operand, got %d", len(inst.Operands))
	}
	imm, err := e.parseImmediate(inst.Operands[0])
	if err != nil {
		return 0, err
	}
	if imm > vm.Mask24Bit {
		return 0, fmt.Errorf("SWI immediate too large: 0x%X (max 0x%X)", imm, vm.Mask24Bit)
	}
	return (cond << vm.ConditionShift) | vm.SWIPattern | imm, nil
}
