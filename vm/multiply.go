package vm

import "fmt"

// executeMultiply dispatches to the 32-bit (MUL/MLA) or 64-bit accumulate
// (UMULL/UMLAL/SMULL/SMLAL) multiply forms, per §4.4.
func (vm *VM) executeMultiply(inst *Instruction) error {
	if inst.Opcode&LongMultiplyMask == LongMultiplyPattern {
		return vm.executeLongMultiply(inst)
	}
	return vm.executeShortMultiply(inst)
}

// executeShortMultiply implements MUL/MLA.
func (vm *VM) executeShortMultiply(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode
	accumulate := (inst.Opcode >> MultiplyAShift) & Mask1Bit
	setFlags := inst.SetFlags

	rd := int((inst.Opcode >> RnShift) & Mask4Bit) // bits 19-16
	rn := int((inst.Opcode >> RdShift) & Mask4Bit) // bits 15-12, accumulate operand
	rs := int((inst.Opcode >> RsShift) & Mask4Bit)
	rm := int(inst.Opcode & Mask4Bit)

	if rd == rm {
		return fmt.Errorf("multiply: Rd and Rm must be different registers (Rd=%d, Rm=%d)", rd, rm)
	}
	if rd == 15 || rm == 15 || rs == 15 || (accumulate == 1 && rn == 15) {
		return fmt.Errorf("multiply: R15 cannot be used as an operand")
	}

	op1 := vm.CPU.GetRegister(rm, mode)
	op2 := vm.CPU.GetRegister(rs, mode)
	result := op1 * op2
	if accumulate == 1 {
		result += vm.CPU.GetRegister(rn, mode)
	}
	vm.CPU.SetRegister(rd, mode, result)

	if setFlags {
		cpsr := vm.CPU.CPSR()
		vm.CPU.SetCPSRFlagsOnly(result&SignBitMask != 0, result == 0, cpsr.C, cpsr.V)
	}

	vm.chargeInternal()
	return nil
}

// executeLongMultiply implements UMULL/UMLAL/SMULL/SMLAL with a 64-bit
// accumulate split across RdHi:RdLo.
func (vm *VM) executeLongMultiply(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode
	signed := (inst.Opcode>>BBitShift)&Mask1Bit != 0 // bit 22: U/S, 1 = signed
	accumulate := (inst.Opcode>>MultiplyAShift)&Mask1Bit != 0
	setFlags := inst.SetFlags

	rdHi := int((inst.Opcode >> RnShift) & Mask4Bit)
	rdLo := int((inst.Opcode >> RdShift) & Mask4Bit)
	rs := int((inst.Opcode >> RsShift) & Mask4Bit)
	rm := int(inst.Opcode & Mask4Bit)

	if rdHi == rdLo || rdHi == rm || rdLo == rm {
		return fmt.Errorf("long multiply: RdHi, RdLo, Rm must be distinct registers")
	}
	if rdHi == 15 || rdLo == 15 || rs == 15 || rm == 15 {
		return fmt.Errorf("long multiply: R15 cannot be used as an operand")
	}

	a := vm.CPU.GetRegister(rm, mode)
	b := vm.CPU.GetRegister(rs, mode)

	var result uint64
	if signed {
		result = uint64(int64(int32(a)) * int64(int32(b)))
	} else {
		result = uint64(a) * uint64(b)
	}
	if accumulate {
		acc := uint64(vm.CPU.GetRegister(rdHi, mode))<<32 | uint64(vm.CPU.GetRegister(rdLo, mode))
		result += acc
	}

	lo := uint32(result)
	hi := uint32(result >> 32)
	vm.CPU.SetRegister(rdLo, mode, lo)
	vm.CPU.SetRegister(rdHi, mode, hi)

	if setFlags {
		cpsr := vm.CPU.CPSR()
		vm.CPU.SetCPSRFlagsOnly(hi&SignBitMask != 0, result == 0, cpsr.C, cpsr.V)
	}

	vm.chargeInternal()
	return nil
}
