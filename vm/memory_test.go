package vm_test

import (
	"testing"

	"github.com/armcore/arm7tdmi/vm"
)

func TestMemoryWordRoundTrip(t *testing.T) {
	m := vm.NewMemory()
	m.WriteWord(0x1000, 0xDEADBEEF)

	if got := m.ReadWord(0x1000); got != 0xDEADBEEF {
		t.Errorf("ReadWord = 0x%X, want 0xDEADBEEF", got)
	}
}

func TestMemoryUnwrittenReadsZero(t *testing.T) {
	m := vm.NewMemory()
	if got := m.ReadByte(0x4242); got != 0 {
		t.Errorf("ReadByte on unwritten address = 0x%X, want 0", got)
	}
	if got := m.ReadWord(0x4242); got != 0 {
		t.Errorf("ReadWord on unwritten address = 0x%X, want 0", got)
	}
}

func TestMemoryWriteWordAligns(t *testing.T) {
	m := vm.NewMemory()
	m.WriteWord(0x1003, 0x11223344) // misaligned target address is masked down
	if got := m.ReadWord(0x1000); got != 0x11223344 {
		t.Errorf("ReadWord(0x1000) = 0x%X, want 0x11223344", got)
	}
}

func TestMemoryReadWordRotatesOnMisalignedRead(t *testing.T) {
	m := vm.NewMemory()
	m.WriteWord(0x1000, 0x11223344)

	got := m.ReadWord(0x1001)
	want := uint32(0x44112233) // rotated right by 8 bits
	if got != want {
		t.Errorf("ReadWord(0x1001) = 0x%X, want 0x%X", got, want)
	}
}

func TestMemoryHalfwordRoundTrip(t *testing.T) {
	m := vm.NewMemory()
	m.WriteHalfword(0x2000, 0xABCD)
	if got := m.ReadHalfword(0x2000); got != 0xABCD {
		t.Errorf("ReadHalfword = 0x%X, want 0xABCD", got)
	}
}

func TestMemoryReadHalfwordRotatesOnOddAddress(t *testing.T) {
	m := vm.NewMemory()
	m.WriteWord(0x4000, 0x0000FEDC) // low halfword 0xFEDC at 0x4000

	got := m.ReadHalfword(0x4001) // odd address: rotate the aligned halfword by 8
	want := uint16(0xDCFE)
	if got != want {
		t.Errorf("ReadHalfword(0x4001) = 0x%X, want 0x%X", got, want)
	}
}

func TestMemorySignExtension(t *testing.T) {
	m := vm.NewMemory()
	m.WriteByte(0x3000, 0xFF)
	if got := m.ReadSignedByte(0x3000); got != 0xFFFFFFFF {
		t.Errorf("ReadSignedByte(0xFF) = 0x%X, want 0xFFFFFFFF", got)
	}

	m.WriteHalfword(0x3010, 0x8000)
	if got := m.ReadSignedHalfword(0x3010); got != 0xFFFF8000 {
		t.Errorf("ReadSignedHalfword(0x8000) = 0x%X, want 0xFFFF8000", got)
	}
}

func TestMemoryZeroWriteStaysSparse(t *testing.T) {
	m := vm.NewMemory()
	m.WriteByte(0x5000, 0x7F)
	m.WriteByte(0x5000, 0) // writing zero should not leave a residual entry
	if got := m.ReadByte(0x5000); got != 0 {
		t.Errorf("ReadByte after zero-write = 0x%X, want 0", got)
	}
}

func TestMemoryReset(t *testing.T) {
	m := vm.NewMemory()
	m.WriteWord(0x6000, 0xCAFEBABE)
	m.Reset()
	if got := m.ReadWord(0x6000); got != 0 {
		t.Errorf("ReadWord after Reset = 0x%X, want 0", got)
	}
}

func TestMemoryLoadImage(t *testing.T) {
	m := vm.NewMemory()
	image := []byte{0x01, 0x02, 0x03, 0x04}
	m.LoadImage(0x8000, image)

	if got := m.ReadWord(0x8000); got != 0x04030201 {
		t.Errorf("ReadWord after LoadImage = 0x%X, want 0x04030201", got)
	}
}
