package vm

// executeSwap implements SWP/SWPB: an atomic read-modify-write exchanging a
// memory word or byte with a register. Absent from the teacher entirely; new
// per §4.1/§4.4.
func (vm *VM) executeSwap(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode

	byteSwap := (inst.Opcode >> BBitShift) & Mask1Bit

	rn := int((inst.Opcode >> RnShift) & Mask4Bit) // address register
	rd := int((inst.Opcode >> RdShift) & Mask4Bit) // destination register
	rm := int(inst.Opcode & Mask4Bit)              // source register

	addr := vm.CPU.GetRegister(rn, mode)
	source := vm.CPU.GetRegister(rm, mode)

	if byteSwap == 1 {
		old := vm.Memory.ReadByte(addr)
		vm.Memory.WriteByte(addr, byte(source&ByteValueMask))
		vm.CPU.SetRegister(rd, mode, uint32(old))
	} else {
		old := vm.Memory.ReadWord(addr) // misaligned reads rotate, same as LDR
		vm.Memory.WriteWord(addr, source)
		vm.CPU.SetRegister(rd, mode, old)
	}

	vm.chargeInternal()
	return nil
}
