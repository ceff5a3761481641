package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ebitengine/oto/v3"
	"golang.org/x/sync/errgroup"
)

const maxBatchWorkers = 4

func main() {
	romPath := flag.String("rom", "", "path to the sound ROM image (required)")
	csvPath := flag.String("csv", "", "path to soundcmds.csv (default: soundcmds.csv next to the ROM)")
	outPath := flag.String("out", "", "output file path for single-command modes")
	outDir := flag.String("out-dir", ".", "output directory for batch modes")
	midiOut := flag.String("midi-out", "", "output path for --midi (default: derived from command id)")

	cmdFlag := flag.Int("cmd", -1, "resolve and describe a single command id")
	addrFlag := flag.String("addr", "", "disassemble starting at a raw hex address, e.g. 5A00")
	listFlag := flag.Bool("list", false, "list every command id, handler type and name")
	allFlag := flag.Bool("all", false, "render every renderable command to WAV in --out-dir")
	rangeFlag := flag.String("range", "", "render commands A-B (inclusive) to WAV in --out-dir")
	scoreFlag := flag.Int("score", -1, "print the merged score/tracker view for a command id")
	midiFlag := flag.Int("midi", -1, "export a command id's channels to a Type 1 SMF")
	speechWAV := flag.Int("speech-wav", -1, "render a speech command id to WAV")
	speechAll := flag.Bool("speech-all", false, "render every speech command to WAV in --out-dir")
	sfxWAV := flag.Int("sfx-wav", -1, "render a sound-effect command id to WAV")
	sfxAll := flag.Bool("sfx-all", false, "render every sound-effect command to WAV in --out-dir")
	musicWAV := flag.Int("music-wav", -1, "render a music command id to WAV")
	musicAll := flag.Bool("music-all", false, "render every music command to WAV in --out-dir")
	renderWAV := flag.Int("render-wav", -1, "render any renderable command id to WAV")
	renderAll := flag.Bool("render-all", false, "render every renderable command to WAV in --out-dir")
	playFlag := flag.Int("play", -1, "render a command id and stream it to the host audio device")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gauntlet-soundrom -rom FILE [options]\n\n")
		fmt.Fprintf(os.Stderr, "Inspects and renders the Gauntlet sound coprocessor ROM.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(runOptions{
		romPath:   *romPath,
		csvPath:   *csvPath,
		outPath:   *outPath,
		outDir:    *outDir,
		midiOut:   *midiOut,
		cmd:       *cmdFlag,
		addr:      *addrFlag,
		list:      *listFlag,
		all:       *allFlag,
		rng:       *rangeFlag,
		score:     *scoreFlag,
		midi:      *midiFlag,
		speechWAV: *speechWAV,
		speechAll: *speechAll,
		sfxWAV:    *sfxWAV,
		sfxAll:    *sfxAll,
		musicWAV:  *musicWAV,
		musicAll:  *musicAll,
		renderWAV: *renderWAV,
		renderAll: *renderAll,
		play:      *playFlag,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	romPath, csvPath, outPath, outDir, midiOut string
	cmd                                        int
	addr                                       string
	list, all                                  bool
	rng                                        string
	score, midi                                int
	speechWAV                                  int
	speechAll                                  bool
	sfxWAV                                     int
	sfxAll                                     bool
	musicWAV                                   int
	musicAll                                   bool
	renderWAV                                  int
	renderAll                                  bool
	play                                       int
}

func run(o runOptions) error {
	if o.romPath == "" {
		flag.Usage()
		return fmt.Errorf("-rom is required")
	}
	rom, err := LoadROM(o.romPath)
	if err != nil {
		return err
	}

	names, err := loadNamesSidecar(o.csvPath, o.romPath)
	if err != nil {
		return err
	}

	switch {
	case o.cmd >= 0:
		return describeCommand(rom, names, o.cmd)
	case o.addr != "":
		return disassembleAddr(rom, o.addr)
	case o.list:
		return listCommands(rom, names)
	case o.score >= 0:
		return printScore(rom, o.score)
	case o.midi >= 0:
		return exportMIDI(rom, o.midi, midiOutPath(o.midiOut, o.outDir, o.midi))
	case o.speechWAV >= 0:
		return renderOne(rom, o.speechWAV, resolveOutPath(o.outPath, o.outDir, o.speechWAV))
	case o.sfxWAV >= 0:
		return renderOne(rom, o.sfxWAV, resolveOutPath(o.outPath, o.outDir, o.sfxWAV))
	case o.musicWAV >= 0:
		return renderOne(rom, o.musicWAV, resolveOutPath(o.outPath, o.outDir, o.musicWAV))
	case o.renderWAV >= 0:
		return renderOne(rom, o.renderWAV, resolveOutPath(o.outPath, o.outDir, o.renderWAV))
	case o.play >= 0:
		return playCommand(rom, o.play)
	case o.speechAll:
		return renderBatch(rom, o.outDir, func(info *CommandInfo) bool { return info.Renderable && info.IsSpeech })
	case o.sfxAll:
		return renderBatch(rom, o.outDir, func(info *CommandInfo) bool { return info.Renderable && !info.IsSpeech && info.HandlerType == 7 })
	case o.musicAll:
		return renderBatch(rom, o.outDir, func(info *CommandInfo) bool { return info.Renderable && !info.IsSpeech && info.HandlerType == 11 })
	case o.renderAll, o.all:
		return renderBatch(rom, o.outDir, func(info *CommandInfo) bool { return info.Renderable })
	case o.rng != "":
		lo, hi, err := parseRange(o.rng)
		if err != nil {
			return err
		}
		return renderBatch(rom, o.outDir, func(info *CommandInfo) bool {
			return info.Renderable && info.Cmd >= lo && info.Cmd <= hi
		})
	default:
		flag.Usage()
		return fmt.Errorf("no mode selected")
	}
}

func loadNamesSidecar(csvPath, romPath string) (CommandNames, error) {
	path := csvPath
	if path == "" {
		path = filepath.Join(filepath.Dir(romPath), "soundcmds.csv")
	}
	return LoadCommandNames(path)
}

func describeCommand(rom *ROM, names CommandNames, cmd int) error {
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		return err
	}
	fmt.Printf("%d (%s): type=%s param=0x%02X renderable=%v speech=%v\n",
		cmd, names.Lookup(cmd), info.TypeName, info.Param, info.Renderable, info.IsSpeech)
	for _, ch := range info.Channels {
		fmt.Printf("  channel 0x%02X priority=%d seq=$%04X\n", ch.Channel, ch.Priority, ch.SeqPtr)
	}
	if info.IsSpeech {
		fmt.Printf("  speech index=%d seq=$%04X len=%d\n", info.Index, info.SeqPtr, info.SeqLen)
	}
	return nil
}

func disassembleAddr(rom *ROM, addrStr string) error {
	addr, err := strconv.ParseInt(strings.TrimPrefix(strings.ToUpper(addrStr), "0X"), 16, 32)
	if err != nil {
		return fmt.Errorf("bad --addr %q: %w", addrStr, err)
	}
	lines := DisassembleSequence(rom, int(addr))
	fmt.Print(FormatDisassembly(lines))
	return nil
}

func listCommands(rom *ROM, names CommandNames) error {
	for cmd := 0; cmd < MaxCommands; cmd++ {
		info, err := ResolveCommand(rom, cmd)
		if err != nil {
			continue
		}
		fmt.Printf("%3d  %-28s type=%-20s renderable=%v speech=%v\n",
			cmd, names.Lookup(cmd), info.TypeName, info.Renderable, info.IsSpeech)
	}
	return nil
}

func printScore(rom *ROM, cmd int) error {
	result, err := BuildScore(rom, cmd)
	if err != nil {
		return err
	}
	fmt.Print(FormatScore(result, int(os.Stdout.Fd())))
	return nil
}

func exportMIDI(rom *ROM, cmd int, path string) error {
	info, err := ResolveCommand(rom, cmd)
	if err != nil {
		return err
	}
	if !info.Renderable || info.IsSpeech {
		return fmt.Errorf("command %d has no channel timeline to export", cmd)
	}
	timelines := make([][]TimedNote, len(info.Channels))
	for i, ch := range info.Channels {
		timelines[i] = BuildTimeline(rom, ch.SeqPtr)
	}
	if err := WriteMIDI(path, timelines); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func renderOne(rom *ROM, cmd int, path string) error {
	result, err := RenderCommand(rom, cmd, defaultSampleRate)
	if err != nil {
		return err
	}
	if err := WriteWAV(path, result); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// renderBatch renders every command matching keep concurrently, bounded
// by errgroup, the same fan-out shape the teacher's cmd/ie32to64 family
// would use for batch file conversion (SPEC_FULL.md §10).
func renderBatch(rom *ROM, outDir string, keep func(*CommandInfo) bool) error {
	var matched []int
	for cmd := 0; cmd < MaxCommands; cmd++ {
		info, err := ResolveCommand(rom, cmd)
		if err != nil || !keep(info) {
			continue
		}
		matched = append(matched, cmd)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("render batch: %w", err)
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(maxBatchWorkers)
	for _, cmd := range matched {
		cmd := cmd
		g.Go(func() error {
			path := resolveOutPath("", outDir, cmd)
			return renderOne(rom, cmd, path)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Printf("rendered %d commands to %s\n", len(matched), outDir)
	return nil
}

func playCommand(rom *ROM, cmd int) error {
	result, err := RenderCommand(rom, cmd, defaultSampleRate)
	if err != nil {
		return err
	}

	channels := 1
	if result.Stereo {
		channels = 2
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   result.Rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	<-ready

	reader := newPCMReader(result)
	player := ctx.NewPlayer(reader)
	player.Play()
	for player.IsPlaying() {
		time.Sleep(20 * time.Millisecond)
	}
	return player.Close()
}

// pcmReader streams a RenderResult's samples as little-endian PCM bytes,
// interleaving stereo channels, implementing io.Reader for oto.Player.
type pcmReader struct {
	result *RenderResult
	pos    int // sample index
}

func newPCMReader(result *RenderResult) *pcmReader {
	return &pcmReader{result: result}
}

func (p *pcmReader) Read(buf []byte) (int, error) {
	n := len(p.result.Left)
	bytesPerFrame := 2
	if p.result.Stereo {
		bytesPerFrame = 4
	}
	if p.pos >= n {
		return 0, io.EOF
	}

	written := 0
	for written+bytesPerFrame <= len(buf) && p.pos < n {
		binary.LittleEndian.PutUint16(buf[written:], uint16(p.result.Left[p.pos]))
		written += 2
		if p.result.Stereo {
			binary.LittleEndian.PutUint16(buf[written:], uint16(p.result.Right[p.pos]))
			written += 2
		}
		p.pos++
	}
	return written, nil
}

func resolveOutPath(outPath, outDir string, cmd int) string {
	if outPath != "" {
		return outPath
	}
	return filepath.Join(outDir, fmt.Sprintf("cmd_%03d.wav", cmd))
}

func midiOutPath(midiOut, outDir string, cmd int) string {
	if midiOut != "" {
		return midiOut
	}
	return filepath.Join(outDir, fmt.Sprintf("cmd_%03d.mid", cmd))
}

func parseRange(rng string) (int, int, error) {
	parts := strings.SplitN(rng, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad --range %q, expected A-B", rng)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad --range %q: %w", rng, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad --range %q: %w", rng, err)
	}
	return lo, hi, nil
}
