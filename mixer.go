// mixer.go - mix & render engine (component G)

package main

import (
	"fmt"
	"sort"
)

const (
	defaultSampleRate = 44100
	speechSampleRate  = 8000
	tailSeconds       = 0.1

	defaultSFXMaxSeconds   = 30.0
	defaultMusicMaxSeconds = 300.0
)

// RenderResult is the output of rendering one command: PCM samples at
// Rate, either mono (Stereo==false, only Left populated) or stereo.
type RenderResult struct {
	Rate   int
	Stereo bool
	Left   []int16
	Right  []int16
}

// RenderCommand resolves and renders a command id to PCM, choosing the
// speech path or the polychip/FM synthesis path based on the resolved
// descriptor's handler type.
func RenderCommand(rom *ROM, cmd int, rate int) (*RenderResult, error) {
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		return nil, err
	}
	if !info.Renderable {
		return &RenderResult{Rate: rate}, nil
	}
	if info.IsSpeech {
		return renderSpeech(rom, info)
	}
	return renderSynthesis(rom, info, rate, defaultSFXMaxSeconds)
}

func renderSpeech(rom *ROM, info *CommandInfo) (*RenderResult, error) {
	data, err := rom.ReadBytes(info.SeqPtr, info.SeqLen)
	if err != nil {
		return nil, fmt.Errorf("render speech: %w", err)
	}
	chip := NewLPCChip()
	chip.Load(data)

	const maxSamples = speechSampleRate * 30 // 30s hard cap
	out := make([]int16, 0, maxSamples)
	for len(out) < maxSamples {
		chunk := chip.Render(speechSampleRate / 10)
		out = append(out, chunk...)
		if chip.Drained() {
			// One more chunk of guaranteed trailing silence, then stop.
			out = append(out, chip.Render(speechSampleRate/10)...)
			break
		}
	}
	return &RenderResult{Rate: speechSampleRate, Stereo: false, Left: out}, nil
}

// partitionedEvent carries the voice-enumeration index alongside an Event
// so a stable sort by time preserves chain-walk order for ties (spec.md
// §5's ordering contract).
type partitionedEvent struct {
	Event
	order int
}

func renderSynthesis(rom *ROM, info *CommandInfo, rate int, maxSeconds float64) (*RenderResult, error) {
	var all []partitionedEvent
	order := 0
	for _, ch := range info.Channels {
		kind, voiceIdx := Classify(ch.Channel)
		events := RunVoice(rom, ch.SeqPtr, kind, voiceIdx, maxSeconds)
		for _, e := range events {
			all = append(all, partitionedEvent{Event: e, order: order})
		}
		order++
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Time < all[j].Time
	})

	endTime := 0.0
	hasFM := false
	hasPoly := false
	for _, pe := range all {
		if pe.Time > endTime {
			endTime = pe.Time
		}
		if pe.Kind == EvFMRegWrite || pe.Kind == EvFMNoteOn || pe.Kind == EvFMNoteOff {
			hasFM = true
		}
		if pe.Kind == EvPolyNoteOn || pe.Kind == EvPolyNoteOff || pe.Kind == EvPolyAudctl {
			hasPoly = true
		}
	}
	duration := endTime + tailSeconds
	totalSamples := int(duration * float64(rate))
	if totalSamples <= 0 {
		totalSamples = int(tailSeconds * float64(rate))
	}

	var polyLeft []int16
	if hasPoly || !hasFM {
		polyLeft = renderPolyGroup(all, totalSamples, rate)
	}
	var fmLeft, fmRight []int16
	if hasFM {
		fmLeft, fmRight = renderFMGroup(all, totalSamples, rate)
	}

	return mixGroups(polyLeft, fmLeft, fmRight, rate), nil
}

func renderPolyGroup(all []partitionedEvent, totalSamples, rate int) []int16 {
	chip := NewPolyChip()
	out := make([]int16, 0, totalSamples)
	cursorSample := 0

	applyPolyEvent := func(e Event) {
		switch e.Kind {
		case EvPolyNoteOn:
			chip.Write(byte(RegAUDF1+e.Voice*2), e.Reg)
			chip.Write(byte(RegAUDC1+e.Voice*2), e.Value)
		case EvPolyNoteOff:
			chip.Write(byte(RegAUDC1+e.Voice*2), 0)
		case EvPolyAudctl:
			if e.Reg == audctlSentinel {
				chip.Write(RegAUDCTL, e.Value)
			} else {
				chip.Write(byte(RegAUDC1+int(e.Reg)*2), e.Value)
			}
		}
	}

	i := 0
	for i < len(all) {
		e := all[i].Event
		if e.Kind != EvPolyNoteOn && e.Kind != EvPolyNoteOff && e.Kind != EvPolyAudctl {
			i++
			continue
		}
		target := int(e.Time * float64(rate))
		if target > totalSamples {
			target = totalSamples
		}
		if target > cursorSample {
			out = append(out, chip.Render(target-cursorSample, rate)...)
			cursorSample = target
		}
		applyPolyEvent(e)
		i++
	}
	if cursorSample < totalSamples {
		out = append(out, chip.Render(totalSamples-cursorSample, rate)...)
	}
	return out
}

func renderFMGroup(all []partitionedEvent, totalSamples, rate int) ([]int16, []int16) {
	chip := NewYMChip()
	left := make([]int16, 0, totalSamples)
	right := make([]int16, 0, totalSamples)
	cursorSample := 0

	applyFMEvent := func(e Event) {
		switch e.Kind {
		case EvFMRegWrite:
			chip.Write(e.Reg, e.Value)
		case EvFMNoteOn:
			chip.SetKeyCode(e.Voice, e.Value)
			chip.Write(0x08, byte(e.Voice)|0x78) // key-on all 4 slots
		case EvFMNoteOff:
			chip.Write(0x08, byte(e.Voice))
		}
	}

	appendChunk := func(n int) {
		if n <= 0 {
			return
		}
		stereo := chip.Render(n, rate)
		for _, s := range stereo {
			left = append(left, s[0])
			right = append(right, s[1])
		}
	}

	i := 0
	for i < len(all) {
		e := all[i].Event
		if e.Kind != EvFMRegWrite && e.Kind != EvFMNoteOn && e.Kind != EvFMNoteOff {
			i++
			continue
		}
		target := int(e.Time * float64(rate))
		if target > totalSamples {
			target = totalSamples
		}
		if target > cursorSample {
			appendChunk(target - cursorSample)
			cursorSample = target
		}
		applyFMEvent(e)
		i++
	}
	if cursorSample < totalSamples {
		appendChunk(totalSamples - cursorSample)
	}
	return left, right
}

// mixGroups applies spec.md §4.7's group peak normalization: when both
// groups are present each is scaled to peak ~16000; when only one is
// present it is scaled to peak ~29000. Output is mono when there is no FM
// contribution, stereo otherwise.
func mixGroups(poly, fmLeft, fmRight []int16, rate int) *RenderResult {
	hasFM := len(fmLeft) > 0
	if !hasFM {
		scaled := normalizePeak(poly, 29000)
		return &RenderResult{Rate: rate, Stereo: false, Left: scaled}
	}

	polyTarget := 16000.0
	fmTarget := 16000.0
	if len(poly) == 0 {
		fmTarget = 29000.0
	}

	n := len(fmLeft)
	if len(poly) > n {
		n = len(poly)
	}

	polyScale := peakScale(poly, polyTarget)
	fmScale := peakScaleStereo(fmLeft, fmRight, fmTarget)

	left := make([]int16, n)
	right := make([]int16, n)
	for i := 0; i < n; i++ {
		var p, l, r float64
		if i < len(poly) {
			p = float64(poly[i]) * polyScale
		}
		if i < len(fmLeft) {
			l = float64(fmLeft[i]) * fmScale
			r = float64(fmRight[i]) * fmScale
		}
		left[i] = clip16(p + l)
		right[i] = clip16(p + r)
	}
	return &RenderResult{Rate: rate, Stereo: true, Left: left, Right: right}
}

func peakScale(samples []int16, target float64) float64 {
	peak := int16(0)
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return 0
	}
	return target / float64(peak)
}

// peakScaleStereo computes one scale factor from the combined L/R peak so a
// stereo group's image isn't skewed by scaling each channel independently
// (spec.md §4.7: "each [group] is scaled" refers to the group as a whole,
// not per-channel within it).
func peakScaleStereo(left, right []int16, target float64) float64 {
	peak := int16(0)
	for _, s := range left {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	for _, s := range right {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return 0
	}
	return target / float64(peak)
}

func normalizePeak(samples []int16, target float64) []int16 {
	scale := peakScale(samples, target)
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clip16(float64(s) * scale)
	}
	return out
}

func clip16(v float64) int16 {
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
