package vm

// executeBranch implements B, BL, and BX (detected by its distinct bit pattern
// during decode, all routed to InstBranch).
func (vm *VM) executeBranch(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode

	if inst.Opcode&BXPatternMask == BXEncodingBase {
		rm := int(inst.Opcode & Mask4Bit)
		target := vm.CPU.GetRegister(rm, mode)
		vm.CPU.SetPC(target &^ 1)
		vm.chargeNonSeq()
		return nil
	}

	link := (inst.Opcode >> BranchLinkShift) & Mask1Bit

	offset := inst.Opcode & Offset24BitMask
	if offset&Offset24BitSignBit != 0 {
		offset |= Offset24BitSignExt
	}

	target := inst.Address + PCBranchBase + (offset << WordToByteShift)

	if link == 1 {
		vm.CPU.SetRegister(ARMRegisterLR, mode, inst.Address+ARMInstructionSize)
	}
	vm.CPU.SetPC(target)

	vm.chargeNonSeq()
	return nil
}
