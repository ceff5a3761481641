package main

import "testing"

func TestArgFormatArgLen(t *testing.T) {
	cases := []struct {
		f    ArgFormat
		want int
	}{
		{ArgNone, 0},
		{ArgByte, 1},
		{ArgWord, 2},
		{ArgByteByte, 2},
		{ArgByteWord, 3},
	}
	for _, c := range cases {
		if got := c.f.ArgLen(); got != c.want {
			t.Errorf("ArgLen(%v) = %d, want %d", c.f, got, c.want)
		}
	}
}

func TestIsEndByte(t *testing.T) {
	if IsEndByte(0xBA) {
		t.Error("0xBA is the last explicit opcode, not END")
	}
	if !IsEndByte(0xBB) {
		t.Error("0xBB should be the first END byte")
	}
	if !IsEndByte(0xFF) {
		t.Error("0xFF should be an END byte")
	}
}

func TestIsNoteByte(t *testing.T) {
	if !IsNoteByte(0x00) {
		t.Error("0x00 should be a note/rest/CHAIN byte")
	}
	if !IsNoteByte(0x7F) {
		t.Error("0x7F should be a note/rest/CHAIN byte")
	}
	if IsNoteByte(0x80) {
		t.Error("0x80 should not be a note byte")
	}
}

func TestOpcodesTableCoversExplicitRange(t *testing.T) {
	for op := 0x80; op <= 0xBA; op++ {
		if _, ok := Opcodes[byte(op)]; !ok {
			t.Errorf("opcode 0x%02X missing from Opcodes table", op)
		}
	}
}

func TestOpcodesTableNamesNonEmpty(t *testing.T) {
	for op, def := range Opcodes {
		if def.Name == "" {
			t.Errorf("opcode 0x%02X has an empty name", op)
		}
	}
}
