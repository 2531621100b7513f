package vm

import "fmt"

// executePSRTransfer dispatches MRS/MSR, distinguished by bit 21.
func (vm *VM) executePSRTransfer(inst *Instruction) error {
	isMSR := (inst.Opcode >> MultiplyAShift) & Mask1Bit
	if isMSR == 0 {
		return vm.executeMRS(inst)
	}
	return vm.executeMSR(inst)
}

// executeMRS implements MRS Rd, {CPSR|SPSR}. Bit 22 selects the source PSR.
func (vm *VM) executeMRS(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode
	rd := int((inst.Opcode >> RdShift) & Mask4Bit)
	if rd == PCRegister {
		return fmt.Errorf("MRS: R15 cannot be used as destination register")
	}

	fromSPSR := (inst.Opcode >> BBitShift) & Mask1Bit // bit 22
	var value uint32
	if fromSPSR == 1 {
		spsr, ok := vm.CPU.SPSR()
		if !ok {
			return fmt.Errorf("MRS: no SPSR in mode %s", mode)
		}
		value = spsr.ToUint32()
	} else {
		value = vm.CPU.CPSR().ToUint32()
	}

	vm.CPU.SetRegister(rd, mode, value)
	vm.chargeSeq()
	return nil
}

// executeMSR implements MSR {CPSR|SPSR}{_flg}, Rm|#imm. The field mask in
// bits 19-16 determines whether only the flag byte (cpsr_flg) or the full
// word (cpsr, including mode) is written, per §4.4.
func (vm *VM) executeMSR(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode

	immediateBit := (inst.Opcode >> IBitShift) & Mask1Bit
	var sourceValue uint32
	if immediateBit == 1 {
		imm := inst.Opcode & ImmediateValueMask
		rotate := ((inst.Opcode >> RotationShift) & RotationMask) * RotationMultiplier
		sourceValue = rotateRight32(imm, rotate)
	} else {
		rm := int(inst.Opcode & Mask4Bit)
		if rm == PCRegister {
			return fmt.Errorf("MSR: R15 cannot be used as source register")
		}
		sourceValue = vm.CPU.GetRegister(rm, mode)
	}

	toSPSR := (inst.Opcode >> BBitShift) & Mask1Bit // bit 22
	flagsFieldOnly := (inst.Opcode>>19)&1 == 1 && (inst.Opcode>>16)&1 == 0

	if toSPSR == 1 {
		spsr, ok := vm.CPU.SPSR()
		if !ok {
			return fmt.Errorf("MSR: no SPSR in mode %s", mode)
		}
		if flagsFieldOnly {
			flags := psrFromUint32(sourceValue)
			spsr.N, spsr.Z, spsr.C, spsr.V = flags.N, flags.Z, flags.C, flags.V
		} else {
			spsr = psrFromUint32(sourceValue)
		}
		vm.CPU.SetSPSR(spsr)
		vm.chargeSeq()
		return nil
	}

	if flagsFieldOnly {
		flags := psrFromUint32(sourceValue)
		vm.CPU.SetCPSRFlagsOnly(flags.N, flags.Z, flags.C, flags.V)
		vm.chargeSeq()
		return nil
	}

	if err := vm.CPU.SetCPSR(psrFromUint32(sourceValue)); err != nil {
		return err
	}
	vm.chargeSeq()
	return nil
}
