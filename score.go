// score.go - merged multi-channel score/tracker view (component H)

package main

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/term"
)

// ChannelStats summarizes one resolved channel's timeline: note count,
// span, and lowest/highest pitch, mirroring the original disassembler's
// compute_channel_stats.
type ChannelStats struct {
	Channel  byte
	Kind     HardwareChannelKind
	NoteCnt  int
	RestCnt  int
	SpanSecs float64
	LowNote  int
	HighNote int
}

// ScoreRow is one printable row: a point in time and, for each channel
// column, the note or rest sounding at that instant (a column with no new
// onset at this row repeats its last cell; it is empty only before the
// channel's first onset).
type ScoreRow struct {
	TimeSecs float64
	Cells    []string // len == number of channels
}

// ScoreResult is the full merged view for one command.
type ScoreResult struct {
	Cmd      int
	Stats    []ChannelStats
	Rows     []ScoreRow
	Channels []byte
}

// BuildScore resolves cmd and merges every channel's note timeline into a
// single time-ordered set of rows, grounded on the original disassembler's
// build_channel_timeline / merge_channel_timelines pair.
func BuildScore(rom *ROM, cmd int) (*ScoreResult, error) {
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		return nil, err
	}
	if !info.Renderable || info.IsSpeech {
		return &ScoreResult{Cmd: cmd}, nil
	}

	result := &ScoreResult{Cmd: cmd}
	timelines := make([][]TimedNote, len(info.Channels))

	for i, ch := range info.Channels {
		kind, _ := Classify(ch.Channel)
		tl := BuildTimeline(rom, ch.SeqPtr)
		timelines[i] = tl
		result.Channels = append(result.Channels, ch.Channel)
		result.Stats = append(result.Stats, channelStats(ch.Channel, kind, tl))
	}

	result.Rows = mergeChannelTimelines(timelines)
	return result, nil
}

func channelStats(channel byte, kind HardwareChannelKind, tl []TimedNote) ChannelStats {
	stats := ChannelStats{Channel: channel, Kind: kind, LowNote: 128, HighNote: -1}
	for _, n := range tl {
		if n.IsRest {
			stats.RestCnt++
			continue
		}
		stats.NoteCnt++
		if n.MIDINote < stats.LowNote {
			stats.LowNote = n.MIDINote
		}
		if n.MIDINote > stats.HighNote {
			stats.HighNote = n.MIDINote
		}
		end := n.StartSecs + n.DurationSecs
		if end > stats.SpanSecs {
			stats.SpanSecs = end
		}
	}
	if stats.HighNote < 0 {
		stats.LowNote, stats.HighNote = 0, 0
	}
	return stats
}

type timedCell struct {
	col  int
	note TimedNote
}

// mergeChannelTimelines merges per-channel timelines into rows keyed by
// the set of distinct onset times across all channels, matching the
// original merge_channel_timelines's "effective end times" handling of
// sustained notes (a column holds its last note until the next onset).
func mergeChannelTimelines(timelines [][]TimedNote) []ScoreRow {
	timeSet := map[float64]bool{}
	var cells []timedCell
	for col, tl := range timelines {
		for _, n := range tl {
			timeSet[n.StartSecs] = true
			cells = append(cells, timedCell{col: col, note: n})
		}
	}

	times := make([]float64, 0, len(timeSet))
	for t := range timeSet {
		times = append(times, t)
	}
	sort.Float64s(times)

	rows := make([]ScoreRow, len(times))
	lastActive := make([]string, len(timelines))
	for i, t := range times {
		rows[i] = ScoreRow{TimeSecs: t, Cells: make([]string, len(timelines))}
		copy(rows[i].Cells, lastActive)
		for _, c := range cells {
			if c.note.StartSecs == t {
				text := formatScoreCell(c.note)
				rows[i].Cells[c.col] = text
				lastActive[c.col] = text
			}
		}
	}
	return rows
}

func formatScoreCell(n TimedNote) string {
	if n.IsRest {
		return "..."
	}
	names := [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}
	note := n.MIDINote
	if note < 0 {
		return "..."
	}
	name := names[note%12]
	octave := note / 12
	sustain := " "
	if n.Sustain {
		sustain = "~"
	}
	return fmt.Sprintf("%s%d%s", name, octave, sustain)
}

// FormatScore renders a ScoreResult as fixed-width columns, wrapping to the
// terminal width reported by x/term when stdout is a TTY (falling back to
// 80 columns otherwise), per SPEC_FULL.md's terminal score view.
func FormatScore(result *ScoreResult, fd int) string {
	width := 80
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
	}

	var b strings.Builder
	fmt.Fprintf(&b, "command %d  (%d channels)\n", result.Cmd, len(result.Channels))
	for _, s := range result.Stats {
		chip := "POLY"
		if s.Kind == ChipFM {
			chip = "FM"
		}
		fmt.Fprintf(&b, "  ch 0x%02X [%-4s] notes=%-4d rests=%-4d span=%.2fs range=%d..%d\n",
			s.Channel, chip, s.NoteCnt, s.RestCnt, s.SpanSecs, s.LowNote, s.HighNote)
	}
	b.WriteString("\n")

	if len(result.Channels) == 0 {
		return b.String()
	}

	const timeColWidth = 9
	const cellWidth = 5
	colsPerPage := (width - timeColWidth) / cellWidth
	if colsPerPage < 1 {
		colsPerPage = 1
	}

	for start := 0; start < len(result.Channels); start += colsPerPage {
		end := start + colsPerPage
		if end > len(result.Channels) {
			end = len(result.Channels)
		}

		b.WriteString(strings.Repeat(" ", timeColWidth))
		for c := start; c < end; c++ {
			fmt.Fprintf(&b, "%-*s", cellWidth, fmt.Sprintf("ch%02X", result.Channels[c]))
		}
		b.WriteString("\n")

		for _, row := range result.Rows {
			fmt.Fprintf(&b, "%8.2fs", row.TimeSecs)
			for c := start; c < end; c++ {
				cell := row.Cells[c]
				if cell == "" {
					cell = "..."
				}
				fmt.Fprintf(&b, "%-*s", cellWidth, cell)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
