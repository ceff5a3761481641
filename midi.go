// midi.go - Standard MIDI File Type 1 writer (component H)

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

const ticksPerBeat = 480

// TimedNote is a note or rest with absolute timing, built from the same
// duration/tempo routine the interpreter uses (spec.md §3's TimedNote,
// §9's "Duration semantics" note about sharing the routine).
type TimedNote struct {
	StartSecs    float64
	DurationSecs float64
	MIDINote     int // -1 for rests
	IsRest       bool
	Sustain      bool
}

// BuildTimeline walks a voice's bytecode the same way the interpreter
// does, but only tracks tempo/duration/pitch — no hardware effects — to
// produce the TimedNote trace MIDI export and the score view share.
func BuildTimeline(rom *ROM, startAddr int) []TimedNote {
	var notes []TimedNote
	tempo := byte(0)
	cumFrames := 0.0

	returnStack := []int{}
	visitedAddrs := map[int]bool{}
	addr := startAddr
	steps := 0

	for steps < MaxInstructions {
		steps++
		if addr < RomBase || addr > RomEnd || visitedAddrs[addr] {
			break
		}
		visitedAddrs[addr] = true

		byte0, err := rom.ReadU8(addr)
		if err != nil || IsEndByte(byte0) {
			break
		}

		if IsNoteByte(byte0) {
			byte1, err := rom.ReadU8(addr + 1)
			if err != nil {
				break
			}
			if byte1 == 0x00 {
				if len(returnStack) == 0 {
					break
				}
				addr = returnStack[len(returnStack)-1]
				returnStack = returnStack[:len(returnStack)-1]
				continue
			}

			durIdx := int(byte1 & 0x0F)
			dotted := byte1&0x40 != 0
			sustain := byte1&0x80 != 0

			var base float64
			if durIdx != 0 {
				if word, err := rom.ReadU16LE(DurationTable + durIdx*2); err == nil {
					base = float64(word)
				}
			}
			if dotted {
				base *= 1.5
			}
			durFrames := 0.0
			if tempo > 0 && base > 0 {
				durFrames = base / float64(tempo)
			}

			midiNote := -1
			if byte0 != 0 {
				midiNote = int(byte0) - 1
			}
			notes = append(notes, TimedNote{
				StartSecs:    cumFrames / FramesPerSecond,
				DurationSecs: durFrames / FramesPerSecond,
				MIDINote:     midiNote,
				IsRest:       byte0 == 0,
				Sustain:      sustain,
			})
			cumFrames += durFrames
			addr += 2
			continue
		}

		def, ok := Opcodes[byte0]
		if !ok {
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
			break
		}

		switch byte0 {
		case 0x80:
			tempo = args[0] >> 2
		case 0x81:
			tempo = tempo + args[0]
		case 0x8D:
			target := int(args[0]) | int(args[1])<<8
			ret := addr + 3
			if target < RomBase || target > RomEnd || len(returnStack) >= MaxReturnDepth {
				addr = ret
				continue
			}
			returnStack = append(returnStack, ret)
			addr = target
			continue
		case 0x99:
			target := int(args[0]) | int(args[1])<<8
			if target < RomBase || target > RomEnd {
				return notes
			}
			addr = target
			continue
		}
		addr += 1 + argLen
	}

	return notes
}

func midiVarLen(value int) []byte {
	if value < 0 {
		value = 0
	}
	buf := []byte{byte(value & 0x7F)}
	value >>= 7
	for value != 0 {
		buf = append(buf, byte(value&0x7F)|0x80)
		value >>= 7
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

type midiEvent struct {
	tick  int
	bytes []byte
}

func buildMIDITrack(events []midiEvent) []byte {
	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	var data bytes.Buffer
	prevTick := 0
	for _, e := range events {
		delta := e.tick - prevTick
		if delta < 0 {
			delta = 0
		}
		data.Write(midiVarLen(delta))
		data.Write(e.bytes)
		prevTick = e.tick
	}
	data.Write(midiVarLen(0))
	data.Write([]byte{0xFF, 0x2F, 0x00})

	var chunk bytes.Buffer
	chunk.WriteString("MTrk")
	binary.Write(&chunk, binary.BigEndian, uint32(data.Len()))
	chunk.Write(data.Bytes())
	return chunk.Bytes()
}

// WriteMIDI writes a Type 1 Standard MIDI File from one TimedNote
// timeline per voice, per spec.md §4.8: track 0 is a 120 BPM tempo track,
// tracks 1..N are one per voice, sustained notes extend their note-off to
// the start of the next non-rest note (or end-of-song for the last),
// and MIDI channel 9 (drums) is skipped.
func WriteMIDI(path string, timelines [][]TimedNote) error {
	songEnd := 0.0
	for _, tl := range timelines {
		for _, n := range tl {
			end := n.StartSecs + n.DurationSecs
			if end > songEnd {
				songEnd = end
			}
		}
	}

	numTracks := len(timelines) + 1
	var out bytes.Buffer
	out.WriteString("MThd")
	binary.Write(&out, binary.BigEndian, uint32(6))
	binary.Write(&out, binary.BigEndian, uint16(1))
	binary.Write(&out, binary.BigEndian, uint16(numTracks))
	binary.Write(&out, binary.BigEndian, uint16(ticksPerBeat))

	tempoEvent := midiEvent{tick: 0, bytes: append([]byte{0xFF, 0x51, 0x03}, tempoBytes(500000)...)}
	out.Write(buildMIDITrack([]midiEvent{tempoEvent}))

	for idx, tl := range timelines {
		midiCh := midiChannelFor(idx)

		var notes []TimedNote
		for _, n := range tl {
			if !n.IsRest && n.MIDINote >= 0 {
				notes = append(notes, n)
			}
		}

		var events []midiEvent
		for i, n := range notes {
			note := clampInt(n.MIDINote, 0, 127)
			startTick := int(n.StartSecs * ticksPerBeat * 2)

			var durTicks int
			if n.Sustain {
				var endSecs float64
				if i+1 < len(notes) {
					endSecs = notes[i+1].StartSecs
				} else {
					endSecs = songEnd
				}
				durTicks = int((endSecs - n.StartSecs) * ticksPerBeat * 2)
			} else {
				durTicks = int(n.DurationSecs * ticksPerBeat * 2)
			}
			if durTicks < 1 {
				durTicks = 1
			}
			endTick := startTick + durTicks

			events = append(events, midiEvent{tick: startTick, bytes: []byte{0x90 | byte(midiCh), byte(note), 100}})
			events = append(events, midiEvent{tick: endTick, bytes: []byte{0x80 | byte(midiCh), byte(note), 0}})
		}
		out.Write(buildMIDITrack(events))
	}

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}

// midiChannelFor skips MIDI channel 9 (the General MIDI drum channel),
// matching the original export's voice-to-channel assignment.
func midiChannelFor(voiceIdx int) int {
	switch {
	case voiceIdx < 9:
		return voiceIdx
	case voiceIdx < 15:
		return voiceIdx + 1
	default:
		return 15
	}
}

func tempoBytes(microsecondsPerBeat int) []byte {
	b := make([]byte, 3)
	b[0] = byte(microsecondsPerBeat >> 16)
	b[1] = byte(microsecondsPerBeat >> 8)
	b[2] = byte(microsecondsPerBeat)
	return b
}
