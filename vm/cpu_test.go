package vm_test

import (
	"testing"

	"github.com/armcore/arm7tdmi/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCPUStartsFullyZeroed(t *testing.T) {
	c := vm.NewCPU()
	assert.Equal(t, vm.Mode(0), c.CPSR().Mode, "mode is the zero value until the first CPSR write")
	for i, v := range c.Snapshot37() {
		assert.Equal(t, uint32(0), v, "register %d should be 0 on a fresh CPU", i)
	}
}

func TestLowRegistersSharedAcrossModes(t *testing.T) {
	c := vm.NewCPU()
	c.SetRegister(3, vm.ModeUSR, 0x1234)
	assert.Equal(t, uint32(0x1234), c.GetRegister(3, vm.ModeFIQ), "R0-R7 are not banked")
}

func TestR8ToR12BankedOnlyForFIQ(t *testing.T) {
	c := vm.NewCPU()
	c.SetRegister(9, vm.ModeUSR, 0x1111)
	c.SetRegister(9, vm.ModeFIQ, 0x2222)

	assert.Equal(t, uint32(0x1111), c.GetRegister(9, vm.ModeUSR))
	assert.Equal(t, uint32(0x1111), c.GetRegister(9, vm.ModeSVC), "shared with USR")
	assert.Equal(t, uint32(0x2222), c.GetRegister(9, vm.ModeFIQ))
}

func TestR13R14BankedPerPrivilegedMode(t *testing.T) {
	c := vm.NewCPU()
	c.SetRegister(13, vm.ModeSVC, 0xAAAA)
	c.SetRegister(13, vm.ModeIRQ, 0xBBBB)

	assert.Equal(t, uint32(0xAAAA), c.GetRegister(13, vm.ModeSVC))
	assert.Equal(t, uint32(0xBBBB), c.GetRegister(13, vm.ModeIRQ))
}

func TestPCReadsWithPipelineOffset(t *testing.T) {
	c := vm.NewCPU()
	c.SetPC(0x8000)
	assert.Equal(t, uint32(0x8008), c.GetRegister(15, vm.ModeUSR), "pc+8")
	assert.Equal(t, uint32(0x8000), c.PC(), "raw, no offset")
}

func TestSetCPSRRejectsUnrecognizedMode(t *testing.T) {
	c := vm.NewCPU()
	err := c.SetCPSR(vm.PSR{Mode: vm.Mode(0b00000)})
	require.Error(t, err, "expected an error for an unrecognized mode")
}

func TestSPSRUnavailableInUSRAndSYS(t *testing.T) {
	c := vm.NewCPU()
	require.NoError(t, c.SetCPSR(vm.PSR{Mode: vm.ModeSYS}))
	_, ok := c.SPSR()
	assert.False(t, ok, "SPSR() should be unavailable in SYS mode")
	assert.False(t, c.SetSPSR(vm.PSR{}), "SetSPSR() should fail in SYS mode")
}

func TestSPSRRoundTripsInPrivilegedMode(t *testing.T) {
	c := vm.NewCPU()
	require.NoError(t, c.SetCPSR(vm.PSR{Mode: vm.ModeSVC}))
	require.True(t, c.SetSPSR(vm.PSR{N: true, Mode: vm.ModeUSR}), "SetSPSR should succeed in SVC mode")

	got, ok := c.SPSR()
	require.True(t, ok)
	assert.True(t, got.N, "want N=true")
}

func TestSnapshot37PinsCPSRAtIndex31(t *testing.T) {
	c := vm.NewCPU()
	require.NoError(t, c.SetCPSR(vm.PSR{Z: true, Mode: vm.ModeSYS}))

	snap := c.Snapshot37()
	assert.Equal(t, c.CPSR().ToUint32(), snap[31])
}

func TestResetClearsAllRegistersIncludingCPSR(t *testing.T) {
	c := vm.NewCPU()
	c.SetRegister(4, vm.ModeUSR, 0xFFFFFFFF)
	c.SetPC(0x1000)
	_ = c.SetCPSR(vm.PSR{N: true, Mode: vm.ModeSVC})
	_ = c.SetSPSR(vm.PSR{Z: true})

	c.Reset()

	assert.Equal(t, uint32(0), c.GetRegister(4, vm.ModeUSR), "R4 should be cleared after Reset")
	assert.Equal(t, uint32(0), c.PC(), "PC should be 0 after Reset")
	assert.Equal(t, vm.Mode(0), c.CPSR().Mode, "mode clears along with the rest of CPSR")

	// §8: after hard reset, all 37 registers are 0.
	for i, v := range c.Snapshot37() {
		assert.Equal(t, uint32(0), v, "register %d should be 0 after Reset", i)
	}
}
