// disasm.go - plain-text disassembler (component H)

package main

import (
	"fmt"
	"strings"
)

const maxDisasmInstructions = 1024

type disasmLine struct {
	Addr   int
	Marker string // "", "entry", "return", "loop"
	Text   string
}

// DisassembleSequence walks the bytecode at startAddr and produces one
// disasmLine per instruction, following PUSH_SEQ/SET_SEQ_PTR control flow
// the same way the interpreter does, but recording text instead of
// synthesizing audio. Segment boundaries (call targets, return sites,
// loop bodies) are annotated with Marker so FormatDisassembly can print
// them as headers.
func DisassembleSequence(rom *ROM, startAddr int) []disasmLine {
	var lines []disasmLine
	visited := map[int]bool{}
	returnStack := []int{}
	addr := startAddr
	marker := "entry"
	count := 0

	for count < maxDisasmInstructions {
		count++
		if addr < RomBase || addr > RomEnd {
			lines = append(lines, disasmLine{Addr: addr, Text: "; out of range, stopping"})
			break
		}
		if visited[addr] {
			lines = append(lines, disasmLine{Addr: addr, Text: "; revisit, stopping"})
			break
		}
		visited[addr] = true

		byte0, err := rom.ReadU8(addr)
		if err != nil {
			lines = append(lines, disasmLine{Addr: addr, Text: "; read error: " + err.Error()})
			break
		}

		if IsEndByte(byte0) {
			lines = append(lines, disasmLine{Addr: addr, Marker: marker, Text: fmt.Sprintf("END (0x%02X)", byte0)})
			marker = ""
			if len(returnStack) == 0 {
				break
			}
			addr = returnStack[len(returnStack)-1]
			returnStack = returnStack[:len(returnStack)-1]
			marker = "return"
			continue
		}

		if IsNoteByte(byte0) {
			byte1, err := rom.ReadU8(addr + 1)
			if err != nil {
				lines = append(lines, disasmLine{Addr: addr, Text: "; truncated note"})
				break
			}
			lines = append(lines, disasmLine{Addr: addr, Marker: marker, Text: formatNote(byte0, byte1)})
			marker = ""
			if byte1 == 0x00 {
				if len(returnStack) == 0 {
					break
				}
				addr = returnStack[len(returnStack)-1]
				returnStack = returnStack[:len(returnStack)-1]
				marker = "return"
				continue
			}
			addr += 2
			continue
		}

		def, ok := Opcodes[byte0]
		if !ok {
			lines = append(lines, disasmLine{Addr: addr, Text: fmt.Sprintf("; unknown opcode 0x%02X", byte0)})
			addr += 2
			continue
		}
		argLen := def.Format.ArgLen()
		args := make([]byte, 0, argLen)
		truncated := false
		for i := 0; i < argLen; i++ {
			b, err := rom.ReadU8(addr + 1 + i)
			if err != nil {
				truncated = true
				break
			}
			args = append(args, b)
		}
		if truncated {
			lines = append(lines, disasmLine{Addr: addr, Text: fmt.Sprintf("; truncated %s", def.Name)})
			break
		}

		lines = append(lines, disasmLine{Addr: addr, Marker: marker, Text: formatOpcode(def, args)})
		marker = ""

		switch byte0 {
		case 0x8D: // PUSH_SEQ
			target := int(args[0]) | int(args[1])<<8
			ret := addr + 3
			if target >= RomBase && target <= RomEnd && len(returnStack) < MaxReturnDepth {
				returnStack = append(returnStack, ret)
				addr = target
				marker = "loop"
				continue
			}
			addr = ret
			continue
		case 0x99: // SET_SEQ_PTR
			target := int(args[0]) | int(args[1])<<8
			if target >= RomBase && target <= RomEnd {
				addr = target
				marker = "entry"
				continue
			}
		}
		addr += 1 + argLen
	}

	return lines
}

func formatNote(byte0, byte1 byte) string {
	if byte0 == 0x00 && byte1 == 0x00 {
		return "CHAIN (return)"
	}
	if byte0 == 0x00 {
		return fmt.Sprintf("REST  dur=0x%02X", byte1)
	}
	note := int(byte0) - 1
	names := [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	name := names[note%12]
	octave := note / 12
	flags := ""
	if byte1&0x40 != 0 {
		flags += " dotted"
	}
	if byte1&0x80 != 0 {
		flags += " sustain"
	}
	return fmt.Sprintf("NOTE  %s%d dur=0x%02X%s", name, octave, byte1&0x0F, flags)
}

func formatOpcode(def OpcodeDef, args []byte) string {
	switch def.Format {
	case ArgNone:
		return def.Name
	case ArgByte:
		return fmt.Sprintf("%-18s 0x%02X", def.Name, args[0])
	case ArgWord:
		addr := int(args[0]) | int(args[1])<<8
		return fmt.Sprintf("%-18s 0x%04X", def.Name, addr)
	case ArgByteByte:
		return fmt.Sprintf("%-18s 0x%02X, 0x%02X", def.Name, args[0], args[1])
	case ArgByteWord:
		addr := int(args[1]) | int(args[2])<<8
		return fmt.Sprintf("%-18s 0x%02X, 0x%04X", def.Name, args[0], addr)
	default:
		return def.Name
	}
}

// FormatDisassembly renders disasmLines as text, with a banner line above
// any line carrying a non-empty Marker.
func FormatDisassembly(lines []disasmLine) string {
	var b strings.Builder
	for _, l := range lines {
		if l.Marker != "" {
			fmt.Fprintf(&b, "; --- %s ---\n", l.Marker)
		}
		fmt.Fprintf(&b, "%04X: %s\n", l.Addr, l.Text)
	}
	return b.String()
}
