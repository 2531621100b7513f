package vm

// ============================================================================
// ARM7TDMI Architecture Constants
// ============================================================================

const (
	// Instruction encoding
	ARMInstructionSize = 4 // bytes
	ARMPipelineOffset  = 8 // PC reads as instruction address + 8

	// CPSR flag bit positions (bits 31-28)
	CPSRBitN = 31
	CPSRBitZ = 30
	CPSRBitC = 29
	CPSRBitV = 28

	// CPSR control bit positions
	CPSRBitI = 7 // IRQ disable
	CPSRBitF = 6 // FIQ disable
	CPSRBitT = 5 // Thumb (always 0 in this implementation)

	SignBitPos  = 31
	SignBitMask = 0x80000000

	Mask4Bit  = 0xF
	Mask8Bit  = 0xFF
	Mask12Bit = 0xFFF
	Mask16Bit = 0xFFFF
	Mask24Bit = 0xFFFFFF
	Mask32Bit = 0xFFFFFFFF

	ByteShift8  = 8
	ByteShift16 = 16
	ByteShift24 = 24

	AlignmentWord     = 4
	AlignmentHalfword = 2

	AlignMaskWord     = AlignmentWord - 1
	AlignMaskHalfword = AlignmentHalfword - 1

	Int24Max = 0x7FFFFF
	Int24Min = -0x800000
)

// Instruction field bit positions, shared by decoder and disassembler.
const (
	ConditionShift = 28
	OpcodeShift    = 21
	SBitShift      = 20
	RnShift        = 16
	RdShift        = 12
	RsShift        = 8

	PBitShift = 24 // pre/post indexing
	UBitShift = 23 // up/down
	BBitShift = 22 // byte/word
	WBitShift = 21 // writeback
	LBitShift = 20 // load/store

	BranchLinkShift = 24

	ShiftAmountPos = 7
	ShiftTypePos   = 5
	Bit4Pos        = 4
	Bit7Pos        = 7
	IBitShift      = 25

	MultiplyAShift = 21

	Bits27_26Shift = 26
	Bits27_25Shift = 25
	Bits27_23Shift = 23
)

// ARM register numbers.
const (
	ARMRegisterPC = 15
	ARMRegisterLR = 14
	ARMRegisterSP = 13

	PCRegister = ARMRegisterPC
	SPRegister = ARMRegisterSP
	LRRegister = ARMRegisterLR
)

const (
	Mask1Bit = 0x1
	Mask2Bit = 0x3
	Mask3Bit = 0x7
	Mask5Bit = 0x1F

	BXPatternMask     = 0x0FFFFFF0
	LongMultiplyMask5 = 0x1F

	Offset12BitMask    = 0xFFF
	Offset24BitMask    = 0xFFFFFF
	Offset24BitSignBit = 0x800000
	Offset24BitSignExt = 0xFF000000

	HalfwordOffsetHighMask = 0xF
	HalfwordOffsetLowMask  = 0xF
	HalfwordHighShift      = 8
	HalfwordLowShift       = 4

	RegisterListMask = 0xFFFF

	ImmediateValueMask = 0xFF
	RotationMask       = 0xF
	RotationShift      = 8

	ByteValueMask     = 0xFF
	HalfwordValueMask = 0xFFFF

	MultiplyBit2Mask = 0x3
)

const (
	PCStoreOffset = 12 // PC+12 when the PC is stored by STR/STM
	PCBranchBase  = 8

	WordToByteShift = 2

	RotationMultiplier = 2
	BitsInWord         = 32

	MultiplyBaseCycles = 2
	MultiplyMaxCycles  = 16
	MultiplyBitPairs   = 16
	MultiplyBitShift   = 2

	LongMultiplyBaseCycles       = 3
	LongMultiplyAccumulateCycles = 4

	MultiRegisterWordSize = 4
)

const (
	BXEncodingBase = 0x012FFF10 // BX instruction base pattern
	NOPEncoding    = 0xE1A00000 // MOV R0, R0
)

const (
	MultiplyPattern     = 0x00000090
	MultiplyMask        = 0x0FC000F0
	LongMultiplyPattern = 0x00800090
	LongMultiplyMask    = 0x0F8000F0

	MRSPattern    = 0x010F0000
	MRSMask       = 0x0FBF0FFF
	MSRRegPattern = 0x01200000
	MSRRegMask    = 0x0FB000F0
	MSRImmPattern = 0x03200000
	MSRImmMask    = 0x0FB00000

	SWPPattern = 0x01000090
	SWPMask    = 0x0FB00FF0

	HalfwordTransferPattern = 0x00000090
	HalfwordTransferMask    = 0x0E000090

	BranchLinkPattern = 0x0B000000
	BranchLinkMask    = 0x0F000000
	SWIDetectMask     = 0x0F000000
	SWIPattern        = 0x0F000000

	LRInitValue = 0xFFFFFFFF

	SWIMask = 0x00FFFFFF
)

// DefaultMaxCycles bounds runaway `step_times` batches driven by a misconfigured host;
// the Controller still honors a smaller explicit n.
const DefaultMaxCycles = 10_000_000

// ASCII printable range. No code in this module reads these constants; SWI 0
// writes the low byte of R0 whatever its value.
const (
	ASCIIPrintableMin = 32
	ASCIIPrintableMax = 126
)
