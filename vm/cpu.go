package vm

import "fmt"

// Mode identifies one of the seven recognized ARM processor modes.
type Mode uint32

const (
	ModeUSR Mode = 0b10000
	ModeFIQ Mode = 0b10001
	ModeIRQ Mode = 0b10010
	ModeSVC Mode = 0b10011
	ModeABT Mode = 0b10111
	ModeUND Mode = 0b11011
	ModeSYS Mode = 0b11111
)

func (m Mode) recognized() bool {
	switch m {
	case ModeUSR, ModeFIQ, ModeIRQ, ModeSVC, ModeABT, ModeUND, ModeSYS:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	switch m {
	case ModeUSR:
		return "USR"
	case ModeFIQ:
		return "FIQ"
	case ModeIRQ:
		return "IRQ"
	case ModeSVC:
		return "SVC"
	case ModeABT:
		return "ABT"
	case ModeUND:
		return "UND"
	case ModeSYS:
		return "SYS"
	default:
		return fmt.Sprintf("0x%02x", uint32(m))
	}
}

// highBank identifies the R13/R14 (and SPSR, where applicable) bank for a mode.
// USR and SYS share bank 0; the five privileged modes each get their own.
func (m Mode) highBank() int {
	switch m {
	case ModeFIQ:
		return 1
	case ModeIRQ:
		return 2
	case ModeSVC:
		return 3
	case ModeABT:
		return 4
	case ModeUND:
		return 5
	default: // USR, SYS
		return 0
	}
}

// spsrBank maps a mode to its SPSR slot (0-4); ok is false for USR/SYS, which have no SPSR.
func (m Mode) spsrBank() (bank int, ok bool) {
	switch m {
	case ModeFIQ:
		return 0, true
	case ModeIRQ:
		return 1, true
	case ModeSVC:
		return 2, true
	case ModeABT:
		return 3, true
	case ModeUND:
		return 4, true
	default:
		return 0, false
	}
}

// PSR is a program status register: condition flags, control bits, and mode.
type PSR struct {
	N, Z, C, V bool
	I, F       bool // interrupt disable bits; not enforced by this emulator, just storage
	Mode       Mode
}

func (p PSR) ToUint32() uint32 {
	var v uint32
	if p.N {
		v |= 1 << CPSRBitN
	}
	if p.Z {
		v |= 1 << CPSRBitZ
	}
	if p.C {
		v |= 1 << CPSRBitC
	}
	if p.V {
		v |= 1 << CPSRBitV
	}
	if p.I {
		v |= 1 << CPSRBitI
	}
	if p.F {
		v |= 1 << CPSRBitF
	}
	v |= uint32(p.Mode) & Mask5Bit
	return v
}

func psrFromUint32(v uint32) PSR {
	return PSR{
		N:    v&(1<<CPSRBitN) != 0,
		Z:    v&(1<<CPSRBitZ) != 0,
		C:    v&(1<<CPSRBitC) != 0,
		V:    v&(1<<CPSRBitV) != 0,
		I:    v&(1<<CPSRBitI) != 0,
		F:    v&(1<<CPSRBitF) != 0,
		Mode: Mode(v & Mask5Bit),
	}
}

// CPU holds the full ARM7TDMI register file: 16 logical registers per mode,
// routed through a small physical bank per the spec's banking table, plus
// CPSR and the five SPSRs.
type CPU struct {
	rLow [8]uint32    // R0-R7, shared across all modes
	rMid [2][5]uint32 // R8-R12; index 0 = all non-FIQ modes, index 1 = FIQ
	rHi  [6][2]uint32 // R13,R14 banked by highBank(); [bank][0]=R13 [bank][1]=R14
	pc   uint32

	cpsr PSR
	spsr [5]PSR // indexed by spsrBank()
}

// NewCPU returns a CPU with every register, CPSR, and SPSR at its zero value,
// matching §8's "after hard reset, all 37 registers are 0" property exactly.
// The zero Mode value is not one of the seven recognized modes; it decodes
// like USR/SYS for register banking purposes until the first CPSR write
// installs a real mode.
func NewCPU() *CPU {
	return &CPU{}
}

// GetRegister reads logical register r (0-15) as seen from mode. R15 reads
// return the instruction-context value, pc + 8, matching §4.3.
func (c *CPU) GetRegister(r int, mode Mode) uint32 {
	switch {
	case r < 8:
		return c.rLow[r]
	case r < 13:
		if mode == ModeFIQ {
			return c.rMid[1][r-8]
		}
		return c.rMid[0][r-8]
	case r == 13, r == 14:
		return c.rHi[mode.highBank()][r-13]
	default: // r == 15
		return c.pc + ARMPipelineOffset
	}
}

// SetRegister writes logical register r (0-15) as seen from mode. Writing R15
// flushes the prefetch: the next fetch comes from the written address.
func (c *CPU) SetRegister(r int, mode Mode, v uint32) {
	switch {
	case r < 8:
		c.rLow[r] = v
	case r < 13:
		if mode == ModeFIQ {
			c.rMid[1][r-8] = v
		} else {
			c.rMid[0][r-8] = v
		}
	case r == 13, r == 14:
		c.rHi[mode.highBank()][r-13] = v
	default: // r == 15
		c.pc = v
	}
}

// PC returns the raw program counter (no +8 offset), used by the fetch stage.
func (c *CPU) PC() uint32 { return c.pc }

// SetPC sets the raw program counter.
func (c *CPU) SetPC(v uint32) { c.pc = v }

// CPSR returns the current program status register.
func (c *CPU) CPSR() PSR { return c.cpsr }

// SetCPSR installs a full CPSR value. Writing an unrecognized mode is the
// resolved Open Question from spec §9: it is rejected by returning an error,
// and the run state transitions to Error via the caller.
func (c *CPU) SetCPSR(p PSR) error {
	if !p.Mode.recognized() {
		return fmt.Errorf("unrecognized mode 0x%02x", uint32(p.Mode))
	}
	c.cpsr = p
	return nil
}

// SetCPSRFlagsOnly updates only N,Z,C,V, leaving mode and control bits intact.
func (c *CPU) SetCPSRFlagsOnly(n, z, cf, v bool) {
	c.cpsr.N, c.cpsr.Z, c.cpsr.C, c.cpsr.V = n, z, cf, v
}

// SPSR returns the saved PSR for the current mode. ok is false in USR/SYS.
func (c *CPU) SPSR() (PSR, bool) {
	bank, ok := c.cpsr.Mode.spsrBank()
	if !ok {
		return PSR{}, false
	}
	return c.spsr[bank], true
}

// SetSPSR writes the saved PSR for the current mode. ok is false in USR/SYS.
func (c *CPU) SetSPSR(p PSR) bool {
	bank, ok := c.cpsr.Mode.spsrBank()
	if !ok {
		return false
	}
	c.spsr[bank] = p
	return true
}

// Snapshot37 returns the flat 37-slot register view of §6, in the index
// layout resolved in SPEC_FULL.md (index 31 pinned to CPSR).
func (c *CPU) Snapshot37() [37]uint32 {
	var out [37]uint32
	mode := c.cpsr.Mode
	for r := 0; r < 15; r++ {
		out[r] = c.GetRegister(r, mode)
	}
	out[15] = c.pc

	out[16] = c.rMid[1][0] // FIQ R8
	out[17] = c.rMid[1][1] // FIQ R9
	out[18] = c.rMid[1][2] // FIQ R10
	out[19] = c.rMid[1][3] // FIQ R11
	out[20] = c.rMid[1][4] // FIQ R12
	out[21] = c.rHi[ModeFIQ.highBank()][0]
	out[22] = c.rHi[ModeFIQ.highBank()][1]

	out[23] = c.rHi[ModeIRQ.highBank()][0]
	out[24] = c.rHi[ModeIRQ.highBank()][1]
	out[25] = c.rHi[ModeSVC.highBank()][0]
	out[26] = c.rHi[ModeSVC.highBank()][1]
	out[27] = c.rHi[ModeABT.highBank()][0]
	out[28] = c.rHi[ModeABT.highBank()][1]
	out[29] = c.rHi[ModeUND.highBank()][0]
	out[30] = c.rHi[ModeUND.highBank()][1]

	out[31] = c.cpsr.ToUint32()
	out[32] = c.spsr[0].ToUint32() // FIQ
	out[33] = c.spsr[1].ToUint32() // IRQ
	out[34] = c.spsr[2].ToUint32() // SVC
	out[35] = c.spsr[3].ToUint32() // ABT
	out[36] = c.spsr[4].ToUint32() // UND
	return out
}

// Reset clears every physical register, CPSR, and SPSR (hard-reset semantics):
// per §8, all 37 registers read back as 0 afterward, including CPSR.
func (c *CPU) Reset() {
	*c = CPU{}
}
