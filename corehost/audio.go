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

import "sync/atomic"

// DownsampleTargetRate is the fixed rate the audio ring stores samples at,
// regardless of the core's native rate (§4.J).
const DownsampleTargetRate = 48000

// audioRingCapacity holds ~1 second of stereo samples at the target rate.
const audioRingCapacity = DownsampleTargetRate * 2

// audioRing is a single-producer (the core thread, via its audio-sample
// callback), single-consumer (the audio-reading thread) ring buffer of
// interleaved stereo int16 frames, decimated from the core's native sample
// rate down to DownsampleTargetRate. The two cursors are independent
// atomics; the producer refuses to advance when the next write would catch
// the reader (drop-on-full, never overwrite unread data).
type audioRing struct {
	buf   [audioRingCapacity]int16
	write uint32 // atomic
	read  uint32 // atomic

	ratio     int // native-rate samples consumed per stored frame
	decimated int // running count towards the next stored frame

	mute bool
}

func (r *audioRing) reset(nativeRate float64) {
	ratio := 1
	if nativeRate > DownsampleTargetRate {
		ratio = int(nativeRate/DownsampleTargetRate + 0.5)
	}
	if ratio < 1 {
		ratio = 1
	}
	r.ratio = ratio
	r.decimated = 0
	atomic.StoreUint32(&r.write, 0)
	atomic.StoreUint32(&r.read, 0)
}

// sample pushes one native-rate stereo sample through the decimator,
// storing at most one frame per ratio input samples.
func (r *audioRing) sample(left, right int16) {
	if r.mute {
		return
	}
	r.decimated++
	if r.decimated < r.ratio {
		return
	}
	r.decimated = 0

	w := atomic.LoadUint32(&r.write)
	next := (w + 2) % audioRingCapacity
	if next == atomic.LoadUint32(&r.read) {
		return // full: drop rather than overwrite unread data
	}
	r.buf[w] = left
	r.buf[w+1] = right
	atomic.StoreUint32(&r.write, next)
}

// read2 drains up to len(out)/2 stereo frames into out (interleaved L,R),
// returning the number of frames actually written. The remainder of out is
// left untouched; callers matching the original's pull-model contract
// zero-fill it themselves.
func (r *audioRing) read2(out []int16) int {
	maxFrames := len(out) / 2
	count := 0
	for count < maxFrames {
		rd := atomic.LoadUint32(&r.read)
		if rd == atomic.LoadUint32(&r.write) {
			break
		}
		out[count*2] = r.buf[rd]
		out[count*2+1] = r.buf[rd+1]
		atomic.StoreUint32(&r.read, (rd+2)%audioRingCapacity)
		count++
	}
	return count
}

// snapshot copies every unread frame without advancing the read cursor,
// for DumpWAV's non-destructive inspection.
func (r *audioRing) snapshot() []int16 {
	wr := atomic.LoadUint32(&r.write)
	rd := atomic.LoadUint32(&r.read)
	if wr == rd {
		return nil
	}
	var out []int16
	for i := rd; i != wr; i = (i + 2) % audioRingCapacity {
		out = append(out, r.buf[i])
	}
	return out
}

// AudioSample is the callback an EmulatorCore invokes once per native-rate
// stereo sample pair.
func (h *Host) AudioSample(left, right int16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.audio.sample(left, right)
}

// AudioSampleBatch is the batched form of AudioSample; data holds
// interleaved [l0, r0, l1, r1, ...] int16 samples. It returns the number of
// frames consumed (always len(data)/2, matching the batch callback's "I
// took everything" contract).
func (h *Host) AudioSampleBatch(data []int16) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	frames := len(data) / 2
	for i := 0; i < frames; i++ {
		h.audio.sample(data[i*2], data[i*2+1])
	}
	return frames
}

// AudioRead drains up to len(out)/2 decimated stereo frames from the ring
// into out, returning the number of frames written (§4.J audio, pull
// model).
func (h *Host) AudioRead(out []int16) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.audio.read2(out)
}

// SetMute implements the mute switch: muted samples are dropped at the
// input, before decimation, matching core_audio_sample's early return.
func (h *Host) SetMute(muted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.audio.mute = muted
}

func (h *Host) IsMute() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.audio.mute
}
