package vm

import "fmt"

// Data processing opcodes (bits 24-21).
const (
	OpAND = 0x0
	OpEOR = 0x1
	OpSUB = 0x2
	OpRSB = 0x3
	OpADD = 0x4
	OpADC = 0x5
	OpSBC = 0x6
	OpRSC = 0x7
	OpTST = 0x8
	OpTEQ = 0x9
	OpCMP = 0xA
	OpCMN = 0xB
	OpORR = 0xC
	OpMOV = 0xD
	OpBIC = 0xE
	OpMVN = 0xF
)

func (vm *VM) chargeSeq()      { vm.SeqCycles++ }
func (vm *VM) chargeNonSeq()   { vm.NonSeqCycles++ }
func (vm *VM) chargeInternal() { vm.InternalCycles++ }

// executeDataProcessing implements the 16 data-processing opcodes and the
// shifter-operand (operand2) computation, per §4.4.
func (vm *VM) executeDataProcessing(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode
	opcode := (inst.Opcode >> OpcodeShift) & Mask4Bit
	immediate := (inst.Opcode >> IBitShift) & Mask1Bit
	setFlags := inst.SetFlags

	rd := int((inst.Opcode >> RdShift) & Mask4Bit)
	rn := int((inst.Opcode >> RnShift) & Mask4Bit)

	op1 := vm.CPU.GetRegister(rn, mode)
	cpsr := vm.CPU.CPSR()

	var op2 uint32
	var shiftCarry bool

	if immediate == 1 {
		imm := inst.Opcode & ImmediateValueMask
		rotation := ((inst.Opcode >> RotationShift) & RotationMask) * RotationMultiplier
		if rotation == 0 {
			op2 = imm
			shiftCarry = cpsr.C
		} else {
			op2 = rotateRight32(imm, rotation)
			shiftCarry = op2&SignBitMask != 0
		}
	} else {
		rm := int(inst.Opcode & Mask4Bit)
		op2Value := vm.CPU.GetRegister(rm, mode)

		shiftType := ShiftType((inst.Opcode >> ShiftTypePos) & Mask2Bit)
		shiftByReg := (inst.Opcode >> Bit4Pos) & Mask1Bit

		var shiftAmount int
		if shiftByReg == 1 {
			rs := int((inst.Opcode >> RsShift) & Mask4Bit)
			shiftAmount = int(vm.CPU.GetRegister(rs, mode) & ByteValueMask)
			vm.chargeInternal() // register-specified shift costs an extra internal cycle
		} else {
			shiftAmount = int((inst.Opcode >> ShiftAmountPos) & Mask5Bit)
			if shiftType == ShiftROR && shiftAmount == 0 {
				shiftType = ShiftRRX
			}
		}

		shiftCarry = CalculateShiftCarry(op2Value, shiftAmount, shiftType, cpsr.C)
		op2 = PerformShift(op2Value, shiftAmount, shiftType, cpsr.C)
	}

	var result uint32
	var carry, overflow bool
	writeResult := true
	updateFlags := setFlags
	logical := false

	switch opcode {
	case OpAND:
		result = op1 & op2
		carry, logical = shiftCarry, true
	case OpEOR:
		result = op1 ^ op2
		carry, logical = shiftCarry, true
	case OpSUB:
		result = op1 - op2
		carry = CalculateSubCarry(op1, op2)
		overflow = CalculateSubOverflow(op1, op2, result)
	case OpRSB:
		result = op2 - op1
		carry = CalculateSubCarry(op2, op1)
		overflow = CalculateSubOverflow(op2, op1, result)
	case OpADD:
		result = op1 + op2
		carry = CalculateAddCarry(op1, op2, result)
		overflow = CalculateAddOverflow(op1, op2, result)
	case OpADC:
		carryIn := uint32(0)
		if cpsr.C {
			carryIn = 1
		}
		temp := op1 + op2
		result = temp + carryIn
		carry = CalculateAddCarry(op1, op2, temp) || CalculateAddCarry(temp, carryIn, result)
		overflow = CalculateAddOverflow(op1, op2, result)
	case OpSBC:
		carryIn := uint32(0)
		if cpsr.C {
			carryIn = 1
		}
		borrow := 1 - carryIn
		result = op1 - op2 - borrow
		carry = CalculateSubCarry(op1, op2+borrow)
		overflow = CalculateSubOverflow(op1, op2+borrow, result)
	case OpRSC:
		carryIn := uint32(0)
		if cpsr.C {
			carryIn = 1
		}
		borrow := 1 - carryIn
		result = op2 - op1 - borrow
		carry = CalculateSubCarry(op2, op1+borrow)
		overflow = CalculateSubOverflow(op2, op1+borrow, result)
	case OpTST:
		result = op1 & op2
		carry, logical = shiftCarry, true
		writeResult, updateFlags = false, true
	case OpTEQ:
		result = op1 ^ op2
		carry, logical = shiftCarry, true
		writeResult, updateFlags = false, true
	case OpCMP:
		result = op1 - op2
		carry = CalculateSubCarry(op1, op2)
		overflow = CalculateSubOverflow(op1, op2, result)
		writeResult, updateFlags = false, true
	case OpCMN:
		result = op1 + op2
		carry = CalculateAddCarry(op1, op2, result)
		overflow = CalculateAddOverflow(op1, op2, result)
		writeResult, updateFlags = false, true
	case OpORR:
		result = op1 | op2
		carry, logical = shiftCarry, true
	case OpMOV:
		result = op2
		carry, logical = shiftCarry, true
	case OpBIC:
		result = op1 &^ op2
		carry, logical = shiftCarry, true
	case OpMVN:
		result = ^op2
		carry, logical = shiftCarry, true
	default:
		return fmt.Errorf("unknown data processing opcode: 0x%X", opcode)
	}

	if writeResult {
		vm.CPU.SetRegister(rd, mode, result)
	}

	if updateFlags {
		if rd == 15 && writeResult {
			// §4.4: when S is set and Rd = PC, CPSR <- SPSR of current mode.
			if spsr, ok := vm.CPU.SPSR(); ok {
				_ = vm.CPU.SetCPSR(spsr)
			}
		} else if logical {
			vm.CPU.SetCPSRFlagsOnly(result&SignBitMask != 0, result == 0, carry, cpsr.V)
		} else {
			vm.CPU.SetCPSRFlagsOnly(result&SignBitMask != 0, result == 0, carry, overflow)
		}
	}

	vm.chargeSeq()
	return nil
}
