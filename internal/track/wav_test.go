// SPDX-License-Identifier: MIT
package track

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// guidTail is the KSDATAFORMAT GUID after its leading format code.
var guidTail = []byte{0, 0, 0, 0, 0x10, 0, 0x80, 0, 0, 0xAA, 0, 0x38, 0x9B, 0x71}

// rawWAV builds a 48 kHz WAV file by hand. A tag of wavFormatExtensible
// writes a 40 byte fmt chunk carrying subFormat.
func rawWAV(tag, subFormat uint16, bits, channels int, data []byte) []byte {
	fmtSize := 16
	if tag == wavFormatExtensible {
		fmtSize = 40
	}
	var b bytes.Buffer
	w := func(v any) { binary.Write(&b, binary.LittleEndian, v) }

	b.WriteString("RIFF")
	w(uint32(4 + 8 + fmtSize + 8 + len(data)))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	w(uint32(fmtSize))
	w(tag)
	w(uint16(channels))
	w(uint32(48000))
	w(uint32(48000 * channels * bits / 8))
	w(uint16(channels * bits / 8))
	w(uint16(bits))
	if tag == wavFormatExtensible {
		w(uint16(22))
		w(uint16(bits))
		w(uint32(3))
		w(subFormat)
		b.Write(guidTail)
	}

	b.WriteString("data")
	w(uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

// constantData encodes n samples of one little-endian value.
func constantData(n int, v any) []byte {
	var b bytes.Buffer
	for range n {
		binary.Write(&b, binary.LittleEndian, v)
	}
	return b.Bytes()
}

func int24Data(n int, v int32) []byte {
	out := make([]byte, 0, 3*n)
	for range n {
		out = append(out, byte(v), byte(v>>8), byte(v>>16))
	}
	return out
}

func TestWAVEncodings(t *testing.T) {
	const samples = 960
	tests := []struct {
		name     string
		tag, sub uint16
		bits     int
		data     []byte
	}{
		{"pcm 16", wavFormatPCM, 0, 16, constantData(samples, int16(8192))},
		{"pcm 24", wavFormatPCM, 0, 24, int24Data(samples, 1<<21)},
		{"float 32", wavFormatIEEEFloat, 0, 32, constantData(samples, float32(0.25))},
		{"extensible pcm 16", wavFormatExtensible, wavFormatPCM, 16, constantData(samples, int16(8192))},
		{"extensible pcm 32", wavFormatExtensible, wavFormatPCM, 32, constantData(samples, int32(1<<29))},
		{"extensible float 32", wavFormatExtensible, wavFormatIEEEFloat, 32, constantData(samples, float32(0.25))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := rawWAV(tt.tag, tt.sub, tt.bits, 2, tt.data)
			r, err := NewReader(bytes.NewReader(file), "clip.wav")
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			defer r.Close()

			out := readAll(t, r)
			if len(out) != samples {
				t.Fatalf("decoded %d samples, want %d", len(out), samples)
			}
			for i, v := range out {
				if math.Abs(float64(v)-0.25) > 1e-6 {
					t.Fatalf("sample %d = %v, want 0.25", i, v)
				}
			}
		})
	}
}

func TestWAVUnsupportedEncodings(t *testing.T) {
	tests := []struct {
		name     string
		tag, sub uint16
		bits     int
	}{
		{"float 64", wavFormatIEEEFloat, 0, 64},
		{"a-law", 6, 0, 8},
		{"extensible float 64", wavFormatExtensible, wavFormatIEEEFloat, 64},
		{"extensible adpcm", wavFormatExtensible, 2, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := rawWAV(tt.tag, tt.sub, tt.bits, 2, make([]byte, 2*tt.bits/8*480))
			r, err := NewReader(bytes.NewReader(file), "clip.wav")
			if err == nil {
				r.Close()
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("NewReader error = %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}

func TestWAVFormatTagSkipsLeadingChunks(t *testing.T) {
	file := rawWAV(wavFormatExtensible, wavFormatIEEEFloat, 32, 2, constantData(8, float32(1)))
	// Splice a JUNK chunk in front of fmt.
	junk := append([]byte("JUNK\x04\x00\x00\x00"), 0, 0, 0, 0)
	spliced := append(append(append([]byte{}, file[:12]...), junk...), file[12:]...)

	tag, err := wavFormatTag(bytes.NewReader(spliced))
	if err != nil {
		t.Fatalf("wavFormatTag: %v", err)
	}
	if tag != wavFormatIEEEFloat {
		t.Errorf("tag = %#x, want %#x", tag, wavFormatIEEEFloat)
	}
}
