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
	"testing"

	"github.com/arret/arret/logger"
)

func TestAudioSampleBatchDecimatesToTargetRate(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	h.audio.reset(384000) // ratio 8

	// 16 native-rate frames should decimate to 2 stored frames.
	data := make([]int16, 16*2)
	for i := range data {
		data[i] = int16(i)
	}
	consumed := h.AudioSampleBatch(data)
	if consumed != 16 {
		t.Fatalf("AudioSampleBatch consumed = %d, want 16", consumed)
	}

	out := make([]int16, 8*2)
	n := h.AudioRead(out)
	if n != 2 {
		t.Errorf("decimated frame count = %d, want 2", n)
	}
}

func TestAudioRingDropsOnFullWithoutOverwriting(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	h.audio.reset(48000) // ratio 1, one stored frame per input frame

	// Fill the ring past capacity; excess frames must be dropped, not
	// overwrite unread data.
	total := audioRingCapacity/2 + 100
	for i := 0; i < total; i++ {
		h.audio.sample(int16(i), int16(-i))
	}

	out := make([]int16, audioRingCapacity)
	n := h.AudioRead(out)
	if n != audioRingCapacity/2-1 {
		t.Errorf("ring should hold capacity-1 frames (one slot reserved to distinguish full/empty), got %d", n)
	}
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("first surviving frame should be the oldest write, got (%d,%d)", out[0], out[1])
	}
}

func TestMuteDropsSamplesBeforeDecimation(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	h.audio.reset(48000)
	h.SetMute(true)
	if !h.IsMute() {
		t.Fatal("IsMute should report true after SetMute(true)")
	}

	h.AudioSampleBatch([]int16{1, 2, 3, 4})
	out := make([]int16, 8)
	if n := h.AudioRead(out); n != 0 {
		t.Errorf("muted samples should never reach the ring, got %d frames", n)
	}
}
