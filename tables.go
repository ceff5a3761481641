// tables.go - fixed ROM dispatch-table offsets

package main

// Dispatch tables, both 219 entries wide (one per command id).
const (
	HandlerTypeTable  = 0x5DEA
	HandlerParamTable = 0x5EC5
)

// Type 7 (polychip SFX) chain tables.
const (
	SFXOffsetTable   = 0x5FA8
	SFXPriorityTable = 0x6024
	SFXChannelTable  = 0x60DA
	SFXSeqPtrTable   = 0x6190 // indexed by offset*2
	SFXNextTable     = 0x62FC
)

// Type 11 (music/speech) tables.
const (
	MusicIndexTable   = 0x63B2
	MusicSeqPtrTable  = 0x8449 // indexed by index*2
	MusicSeqLenTable  = 0x85C3 // indexed by index*2
)

// Shared lookup tables used by the interpreter and the score/MIDI tools.
const (
	DurationTable = 0x5C5F // 16 entries, 16-bit LE
	NoteFreqTable = 0x5A35 // 128 entries, 16-bit LE
)

// MaxCommands is the number of externally addressable sound commands
// (0x00..0xDA inclusive).
const MaxCommands = 219

// MaxChainLen is the hard safety cap on a type-7 channel chain walk.
const MaxChainLen = 30

// HandlerTypeName maps a raw handler_type byte to its descriptive name,
// purely for disassembly/diagnostic output; it has no effect on resolution.
var HandlerTypeName = map[int]string{
	0:    "Parameter Shift",
	1:    "Set Variable",
	2:    "Add to Variable",
	3:    "Jump Table Dispatch",
	4:    "Kill by Status",
	5:    "Stop Sound",
	6:    "Stop Chain",
	7:    "POKEY SFX",
	8:    "Output Buffer Queue",
	9:    "Fade Out Sound",
	10:   "Fade Out by Status",
	11:   "YM2151 Music/Speech",
	12:   "Channel Control",
	13:   "Control Register",
	14:   "Null Handler",
	0xFF: "Invalid/Unused",
}
