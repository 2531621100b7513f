package vm

import "fmt"

// executeBlockTransfer implements LDM/STM with all four addressing modes,
// the empty-register-list quirk, store-base-in-list ordering, and the `^`
// user-bank/PSR-restore suffix, per §4.4.
func (vm *VM) executeBlockTransfer(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode

	load := (inst.Opcode >> LBitShift) & Mask1Bit
	writeBack := (inst.Opcode >> WBitShift) & Mask1Bit
	psr := (inst.Opcode >> BBitShift) & Mask1Bit // S bit, bit 22
	increment := (inst.Opcode >> UBitShift) & Mask1Bit
	preIndex := (inst.Opcode >> PBitShift) & Mask1Bit

	rn := int((inst.Opcode >> RnShift) & Mask4Bit)
	regList := inst.Opcode & RegisterListMask

	baseAddr := vm.CPU.GetRegister(rn, mode)

	emptyList := regList == 0

	numRegs := 0
	lowestReg := -1
	for i := 0; i < 16; i++ {
		if regList&(1<<uint(i)) != 0 {
			numRegs++
			if lowestReg == -1 {
				lowestReg = i
			}
		}
	}
	if emptyList {
		numRegs = 16 // §4.4: empty list still advances the base as if 16 words transferred
	}

	regOffset := uint32(numRegs) * MultiRegisterWordSize

	var addr uint32
	var newBase uint32
	if increment == 1 {
		newBase = baseAddr + regOffset
		if preIndex == 1 {
			addr = baseAddr + MultiRegisterWordSize
		} else {
			addr = baseAddr
		}
	} else {
		newBase = baseAddr - regOffset
		if preIndex == 1 {
			addr = baseAddr - regOffset
		} else {
			addr = baseAddr - regOffset + MultiRegisterWordSize
		}
	}

	// §4.4's S-bit rule has two cases. STM always transfers the user-bank
	// registers when S is set, PC or no PC, since there is no "restore on
	// completion" for a store. LDM only switches to the user bank when PC is
	// NOT in the list; when PC is loaded, registers load through the current
	// mode and CPSR is restored from SPSR below instead.
	userBank := psr == 1 && (load == 0 || regList&(1<<ARMRegisterPC) == 0)
	regMode := mode
	if userBank {
		regMode = ModeUSR
	}

	pcLoaded := false

	if emptyList {
		// Real hardware behavior for an empty list: only R15 is transferred,
		// at the single start address; the base still advances by 0x40.
		if load == 1 {
			vm.CPU.SetPC(vm.Memory.ReadWord(addr))
			pcLoaded = true
		} else {
			vm.Memory.WriteWord(addr, vm.CPU.PC()+PCStoreOffset)
		}
	} else {
		for i := 0; i < 16; i++ {
			if regList&(1<<uint(i)) == 0 {
				continue
			}
			if load == 1 {
				value := vm.Memory.ReadWord(addr)
				vm.CPU.SetRegister(i, regMode, value)
				if i == ARMRegisterPC {
					pcLoaded = true
				}
			} else {
				var value uint32
				switch {
				case i == ARMRegisterPC:
					value = inst.Address + PCStoreOffset
				case i == rn && i == lowestReg:
					value = baseAddr // original value, not yet written back
				case i == rn:
					value = newBase // updated value wins when Rn isn't the lowest-numbered register
				default:
					value = vm.CPU.GetRegister(i, regMode)
				}
				vm.Memory.WriteWord(addr, value)
			}
			addr += MultiRegisterWordSize
		}
	}

	if writeBack == 1 && rn != ARMRegisterPC && !(userBank) {
		vm.CPU.SetRegister(rn, mode, newBase)
	}

	if psr == 1 && load == 1 && pcLoaded {
		if spsr, ok := vm.CPU.SPSR(); ok {
			if err := vm.CPU.SetCPSR(spsr); err != nil {
				return fmt.Errorf("block transfer CPSR restore: %w", err)
			}
		}
	}

	vm.chargeNonSeq()
	return nil
}
