package vm

// executeSingleDataTransfer implements LDR/STR/LDRB/STRB addressing and
// writeback, per §4.4. The ordering of writeback vs. register write follows
// §8 scenario 3 and §9's pinned-by-tests note: for STR with base==Rd the
// original base value is stored; for LDR with base==Rd the loaded value wins.
func (vm *VM) executeSingleDataTransfer(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode

	load := (inst.Opcode >> LBitShift) & Mask1Bit
	byteTransfer := (inst.Opcode >> BBitShift) & Mask1Bit
	writeBack := (inst.Opcode >> WBitShift) & Mask1Bit
	preIndexed := (inst.Opcode >> PBitShift) & Mask1Bit
	addOffset := (inst.Opcode >> UBitShift) & Mask1Bit

	rd := int((inst.Opcode >> RdShift) & Mask4Bit)
	rn := int((inst.Opcode >> RnShift) & Mask4Bit)

	baseAddr := vm.CPU.GetRegister(rn, mode)

	var offset uint32
	immediate := (inst.Opcode>>IBitShift)&Mask1Bit == 0
	if immediate {
		offset = inst.Opcode & Offset12BitMask
	} else {
		rm := int(inst.Opcode & Mask4Bit)
		offsetReg := vm.CPU.GetRegister(rm, mode)
		shiftType := ShiftType((inst.Opcode >> ShiftTypePos) & Mask2Bit)
		shiftAmount := int((inst.Opcode >> ShiftAmountPos) & Mask5Bit)
		offset = PerformShift(offsetReg, shiftAmount, shiftType, vm.CPU.CPSR().C)
	}

	var effectiveAddr uint32
	if addOffset == 1 {
		effectiveAddr = baseAddr + offset
	} else {
		effectiveAddr = baseAddr - offset
	}

	accessAddr := baseAddr
	if preIndexed == 1 {
		accessAddr = effectiveAddr
	}
	writesBack := (preIndexed == 1 && writeBack == 1) || preIndexed == 0

	if load == 1 {
		var value uint32
		if byteTransfer == 1 {
			value = uint32(vm.Memory.ReadByte(accessAddr))
		} else {
			value = vm.Memory.ReadWord(accessAddr)
		}
		if writesBack && rn != PCRegister {
			vm.CPU.SetRegister(rn, mode, effectiveAddr)
		}
		vm.CPU.SetRegister(rd, mode, value)
	} else {
		value := vm.CPU.GetRegister(rd, mode)
		if rd == PCRegister {
			value = inst.Address + PCStoreOffset
		}
		if byteTransfer == 1 {
			vm.Memory.WriteByte(accessAddr, byte(value&ByteValueMask))
		} else {
			vm.Memory.WriteWord(accessAddr, value)
		}
		if writesBack && rn != PCRegister {
			vm.CPU.SetRegister(rn, mode, effectiveAddr)
		}
	}

	vm.chargeNonSeq()
	return nil
}

// executeHalfwordTransfer implements LDRH/STRH/LDRSB/LDRSH, per §4.4.
func (vm *VM) executeHalfwordTransfer(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode

	load := (inst.Opcode >> LBitShift) & Mask1Bit
	writeBack := (inst.Opcode >> WBitShift) & Mask1Bit
	preIndexed := (inst.Opcode >> PBitShift) & Mask1Bit
	addOffset := (inst.Opcode >> UBitShift) & Mask1Bit
	immediate := (inst.Opcode >> BBitShift) & Mask1Bit // bit 22, I field for halfword form

	rd := int((inst.Opcode >> RdShift) & Mask4Bit)
	rn := int((inst.Opcode >> RnShift) & Mask4Bit)

	baseAddr := vm.CPU.GetRegister(rn, mode)

	var offset uint32
	if immediate == 1 {
		offsetHigh := (inst.Opcode >> HalfwordHighShift) & HalfwordOffsetHighMask
		offsetLow := inst.Opcode & HalfwordOffsetLowMask
		offset = (offsetHigh << HalfwordLowShift) | offsetLow
	} else {
		rm := int(inst.Opcode & Mask4Bit)
		offset = vm.CPU.GetRegister(rm, mode)
	}

	var effectiveAddr uint32
	if addOffset == 1 {
		effectiveAddr = baseAddr + offset
	} else {
		effectiveAddr = baseAddr - offset
	}

	accessAddr := baseAddr
	if preIndexed == 1 {
		accessAddr = effectiveAddr
	}
	writesBack := (preIndexed == 1 && writeBack == 1) || preIndexed == 0

	sh := (inst.Opcode >> ShiftTypePos) & Mask2Bit // bits 6-5: 01=H, 10=SB, 11=SH

	if load == 1 {
		var value uint32
		switch sh {
		case 0b01:
			value = uint32(vm.Memory.ReadHalfword(accessAddr))
		case 0b10:
			value = vm.Memory.ReadSignedByte(accessAddr)
		case 0b11:
			value = vm.Memory.ReadSignedHalfword(accessAddr)
		}
		if writesBack && rn != PCRegister {
			vm.CPU.SetRegister(rn, mode, effectiveAddr)
		}
		vm.CPU.SetRegister(rd, mode, value)
	} else {
		value := vm.CPU.GetRegister(rd, mode)
		vm.Memory.WriteHalfword(accessAddr, uint16(value&HalfwordValueMask))
		if writesBack && rn != PCRegister {
			vm.CPU.SetRegister(rn, mode, effectiveAddr)
		}
	}

	vm.chargeNonSeq()
	return nil
}
