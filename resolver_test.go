package main

import "testing"

func newBlankRomData() []byte {
	return make([]byte, RomSize)
}

func putU8(data []byte, addr int, v byte) {
	data[addr-RomBase] = v
}

func putU16(data []byte, addr int, v uint16) {
	data[addr-RomBase] = byte(v)
	data[addr-RomBase+1] = byte(v >> 8)
}

func TestResolveCommandOutOfRange(t *testing.T) {
	rom := NewROM(newBlankRomData())
	if _, err := ResolveCommand(rom, -1); err == nil {
		t.Error("expected error for negative command id")
	}
	if _, err := ResolveCommand(rom, MaxCommands); err == nil {
		t.Error("expected error for command id >= MaxCommands")
	}
}

// TestResolveCommandType7Chain builds a synthetic two-link type-7 chain
// (polychip SFX, e.g. Food Eaten's shape) and checks the resolver walks it
// end to end.
func TestResolveCommandType7Chain(t *testing.T) {
	data := newBlankRomData()
	const cmd = 13
	const param = 0x05

	putU8(data, HandlerTypeTable+cmd, 7)
	putU8(data, HandlerParamTable+cmd, param)
	putU8(data, SFXOffsetTable+param, 0x20) // chain entry point

	putU8(data, SFXPriorityTable+0x20, 3)
	putU8(data, SFXChannelTable+0x20, 0x01)
	putU16(data, SFXSeqPtrTable+0x20*2, 0x5000)
	putU8(data, SFXNextTable+0x20, 0x21)

	putU8(data, SFXPriorityTable+0x21, 1)
	putU8(data, SFXChannelTable+0x21, 0x04)
	putU16(data, SFXSeqPtrTable+0x21*2, 0x5010)
	putU8(data, SFXNextTable+0x21, 0) // terminate

	rom := NewROM(data)
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		t.Fatalf("ResolveCommand: %v", err)
	}
	if !info.Renderable || info.IsSpeech {
		t.Fatalf("expected renderable non-speech command, got %+v", info)
	}
	if len(info.Channels) != 2 {
		t.Fatalf("expected 2 chained channels, got %d", len(info.Channels))
	}
	if info.Channels[0].Channel != 0x01 || info.Channels[0].SeqPtr != 0x5000 {
		t.Errorf("unexpected first channel: %+v", info.Channels[0])
	}
	if info.Channels[1].Channel != 0x04 || info.Channels[1].SeqPtr != 0x5010 {
		t.Errorf("unexpected second channel: %+v", info.Channels[1])
	}
}

// TestResolveCommandType7ChainCycleGuard ensures a next-offset cycle stops
// instead of looping forever.
func TestResolveCommandType7ChainCycleGuard(t *testing.T) {
	data := newBlankRomData()
	const cmd = 20
	const param = 0x06

	putU8(data, HandlerTypeTable+cmd, 7)
	putU8(data, HandlerParamTable+cmd, param)
	putU8(data, SFXOffsetTable+param, 0x30)

	putU8(data, SFXPriorityTable+0x30, 1)
	putU8(data, SFXChannelTable+0x30, 0x00)
	putU16(data, SFXSeqPtrTable+0x30*2, 0x6000)
	putU8(data, SFXNextTable+0x30, 0x30) // self-cycle

	rom := NewROM(data)
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		t.Fatalf("ResolveCommand: %v", err)
	}
	if len(info.Channels) != 1 {
		t.Errorf("expected cycle guard to stop after 1 entry, got %d", len(info.Channels))
	}
}

// TestResolveCommandType11Speech builds a synthetic type-11 descriptor and
// checks the resolver surfaces it as a renderable speech command.
func TestResolveCommandType11Speech(t *testing.T) {
	data := newBlankRomData()
	const cmd = 90
	const param = 0x02
	const index = 7

	putU8(data, HandlerTypeTable+cmd, 11)
	putU8(data, HandlerParamTable+cmd, param)
	putU8(data, MusicIndexTable+param, index)
	putU16(data, MusicSeqPtrTable+index*2, 0x7000)
	putU16(data, MusicSeqLenTable+index*2, 128)

	rom := NewROM(data)
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		t.Fatalf("ResolveCommand: %v", err)
	}
	if !info.Renderable || !info.IsSpeech {
		t.Fatalf("expected renderable speech command, got %+v", info)
	}
	if info.SeqPtr != 0x7000 || info.SeqLen != 128 {
		t.Errorf("unexpected speech descriptor: %+v", info)
	}
}

func TestResolveCommandType11ZeroLengthNotRenderable(t *testing.T) {
	data := newBlankRomData()
	const cmd = 91
	const param = 0x03
	const index = 9

	putU8(data, HandlerTypeTable+cmd, 11)
	putU8(data, HandlerParamTable+cmd, param)
	putU8(data, MusicIndexTable+param, index)
	putU16(data, MusicSeqPtrTable+index*2, 0x7100)
	putU16(data, MusicSeqLenTable+index*2, 0)

	rom := NewROM(data)
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		t.Fatalf("ResolveCommand: %v", err)
	}
	if info.Renderable {
		t.Error("expected zero-length speech sequence to be non-renderable")
	}
}

func TestResolveCommandNonRenderableHandlerType(t *testing.T) {
	data := newBlankRomData()
	const cmd = 3
	putU8(data, HandlerTypeTable+cmd, 1) // "Set Variable", no resolution
	putU8(data, HandlerParamTable+cmd, 0x55)

	rom := NewROM(data)
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		t.Fatalf("ResolveCommand: %v", err)
	}
	if info.Renderable {
		t.Error("expected handler type 1 to be non-renderable")
	}
	if info.TypeName != "Set Variable" {
		t.Errorf("unexpected type name %q", info.TypeName)
	}
}

func TestClassifyHardwareChannel(t *testing.T) {
	cases := []struct {
		ch       byte
		wantKind HardwareChannelKind
		wantIdx  int
	}{
		{0x00, ChipPolychip, 0},
		{0x03, ChipPolychip, 3},
		{0x04, ChipFM, 0},
		{0x0B, ChipFM, 7},
		{0xFF, ChipFM, 7}, // clamped
	}
	for _, c := range cases {
		kind, idx := Classify(c.ch)
		if kind != c.wantKind || idx != c.wantIdx {
			t.Errorf("Classify(0x%02X) = (%v,%d), want (%v,%d)", c.ch, kind, idx, c.wantKind, c.wantIdx)
		}
	}
}
