// wav.go - canonical RIFF/WAVE PCM writer (component H)

package main

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WriteWAV writes a 16-bit PCM WAVE file from a RenderResult. Mono output
// is written when result.Stereo is false; otherwise the Left/Right
// channels are interleaved.
func WriteWAV(path string, result *RenderResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	defer f.Close()

	channels := 1
	if result.Stereo {
		channels = 2
	}
	numSamples := len(result.Left)

	const bitsPerSample = 16
	byteRate := result.Rate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := numSamples * channels * bitsPerSample / 8

	if err := writeWAVHeader(f, result.Rate, channels, bitsPerSample, byteRate, blockAlign, dataSize); err != nil {
		return err
	}

	buf := make([]byte, 0, 4096)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		_, err := f.Write(buf)
		buf = buf[:0]
		return err
	}

	for i := 0; i < numSamples; i++ {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(result.Left[i]))
		if result.Stereo {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(result.Right[i]))
		}
		if len(buf) >= 4096 {
			if err := flush(); err != nil {
				return fmt.Errorf("write wav: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}

	return nil
}

func writeWAVHeader(f *os.File, sampleRate, channels, bitsPerSample, byteRate, blockAlign, dataSize int) error {
	riffSize := 36 + dataSize

	if _, err := f.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(riffSize)); err != nil {
		return err
	}
	if _, err := f.WriteString("WAVE"); err != nil {
		return err
	}
	if _, err := f.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint16(1)); err != nil { // PCM
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint16(channels)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(byteRate)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint16(blockAlign)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint16(bitsPerSample)); err != nil {
		return err
	}
	if _, err := f.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(dataSize)); err != nil {
		return err
	}
	return nil
}
