package vm

import "strconv"

// Recognized SWI numbers, per §4.4. Any other number while in USR/SYS
// transitions the run state to Error; this table is intentionally small —
// the terminal is the SWI boundary's only host-visible surface.
const (
	SWIWriteChar = 0
	SWIHalt      = 2
	SWIWriteInt  = 4
)

// executeSWI implements the software-interrupt terminal I/O boundary.
//
// VM integrity vs. expected outcomes: an unrecognized SWI number or an
// undefined instruction are both runtime faults (§7) — they transition the
// run state to Error rather than being silently ignored, since a guest
// program invoking them has stepped outside the contract this emulator
// enforces.
func (vm *VM) executeSWI(inst *Instruction) error {
	mode := vm.CPU.CPSR().Mode
	number := inst.Opcode & SWIMask

	switch number {
	case SWIWriteChar:
		r0 := vm.CPU.GetRegister(0, mode)
		vm.Output = append(vm.Output, byte(r0&ByteValueMask))
		vm.chargeNonSeq()
		return nil

	case SWIHalt:
		vm.State = RunStopped
		vm.chargeNonSeq()
		return nil

	case SWIWriteInt:
		r0 := vm.CPU.GetRegister(0, mode)
		vm.Output = append(vm.Output, []byte(strconv.Itoa(int(int32(r0))))...)
		vm.chargeNonSeq()
		return nil

	default:
		if mode == ModeUSR || mode == ModeSYS {
			return vm.fault("SWI %d", number)
		}
		// Privileged modes are not reachable by any instruction this
		// emulator executes (no exception entry is modeled), but the
		// spec only pins the USR/SYS case; treat others the same way.
		return vm.fault("SWI %d", number)
	}
}
