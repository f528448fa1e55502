// This file is part of Arrêt.
//
// Arrêt is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Arrêt is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Arrêt.  If not, see <https://www.gnu.org/licenses/>.

package corehost

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/arret/arret/logger"
	"github.com/hajimehoshi/go-mp3"
)

// silentMP3Frame is one minimal MPEG-1 Layer III frame: 44100Hz, mono,
// 128kbps, no CRC, all-zero side info and main data (a standard trick for
// encoding silence with no huffman payload). Frame size for this bitrate
// and sample rate is 417 bytes (4-byte header + 413 bytes of body).
var silentMP3Frame = append([]byte{0xff, 0xfb, 0x90, 0xc0}, make([]byte, 413)...)

// mp3Fixture repeats the frame so go-mp3's internal bit-reservoir handling
// has more than one frame to work with, mirroring how a real encoder never
// emits a standalone single-frame stream.
func mp3Fixture(frames int) []byte {
	out := make([]byte, 0, len(silentMP3Frame)*frames)
	for i := 0; i < frames; i++ {
		out = append(out, silentMP3Frame...)
	}
	return out
}

// TestMP3FixtureFeedsRingDecimation decodes a small synthetic MP3 clip to
// produce deterministic stereo PCM, then pushes it through the same
// AudioSampleBatch path a live core's audio callback would use, exercising
// the ring's decimation on real (if silent) decoded samples rather than
// hand-written test data.
func TestMP3FixtureFeedsRingDecimation(t *testing.T) {
	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Fixture(8)))
	if err != nil {
		t.Fatalf("mp3.NewDecoder: %v", err)
	}

	// go-mp3 always decodes to 16-bit little-endian stereo, per its
	// documented output format regardless of the source channel count.
	raw, err := io.ReadAll(dec)
	if err != nil && len(raw) == 0 {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) < 4 {
		t.Fatalf("decoded %d bytes, want at least one stereo frame", len(raw))
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}

	h := NewHost(newFakeCore(), "", "", logger.Allow)
	h.audio.reset(float64(dec.SampleRate()))
	h.AudioSampleBatch(samples)

	out := make([]int16, len(samples))
	n := h.AudioRead(out)
	if n == 0 {
		t.Error("expected at least one decimated frame from the decoded clip")
	}
}

func TestDumpWAVWritesRingContents(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	h.audio.reset(48000) // ratio 1, no decimation
	h.AudioSampleBatch([]int16{100, -100, 200, -200, 300, -300})

	path := filepath.Join(t.TempDir(), "dump.wav")
	if err := h.DumpWAV(path); err != nil {
		t.Fatalf("DumpWAV: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat dump: %v", err)
	}
	if fi.Size() == 0 {
		t.Error("dumped WAV file is empty")
	}

	// The ring is a non-destructive snapshot: the frames DumpWAV wrote
	// should still be readable through the normal pull path.
	out := make([]int16, 6)
	if n := h.AudioRead(out); n != 3 {
		t.Errorf("AudioRead after DumpWAV = %d frames, want 3", n)
	}
}

func TestDumpWAVErrorsOnEmptyRing(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	path := filepath.Join(t.TempDir(), "dump.wav")
	if err := h.DumpWAV(path); err == nil {
		t.Error("expected an error dumping an empty ring")
	}
}
