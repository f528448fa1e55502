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

func TestVariablesRoundtrip(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	h.SetVariables([]Variable{
		{Key: "difficulty", Value: "normal", Description: "Game difficulty"},
	})

	v, ok := h.GetVariable("difficulty")
	if !ok || v != "normal" {
		t.Fatalf("GetVariable = (%q, %v), want (normal, true)", v, ok)
	}

	h.SetVariable("difficulty", "hard")
	v, _ = h.GetVariable("difficulty")
	if v != "hard" {
		t.Errorf("GetVariable after SetVariable = %q, want hard", v)
	}

	if _, ok := h.GetVariable("nonexistent"); ok {
		t.Error("GetVariable should fail for an undeclared key")
	}
}

func TestSetGeometryFiresCallback(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	var gotW, gotH int
	h.OnGeometryChange(func(w, ht int) { gotW, gotH = w, ht })

	h.SetGeometry(320, 240)
	if gotW != 320 || gotH != 240 {
		t.Errorf("OnGeometryChange saw %dx%d, want 320x240", gotW, gotH)
	}
	// the frame buffer itself stays capped to MaxWidth x MaxHeight
	w, ht, _ := h.FrameBuffer()
	if w != MaxWidth || ht != MaxHeight {
		t.Errorf("FrameBuffer dims after SetGeometry = %dx%d, want %dx%d", w, ht, MaxWidth, MaxHeight)
	}
}

func TestControllerTypesAndAnalogDetection(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	if h.HasAnalog() {
		t.Fatal("HasAnalog should be false with no controller types set")
	}

	h.SetControllerInfo([]ControllerType{
		{Description: "Standard", ID: uint(DeviceJoypad)},
		{Description: "DualShock", ID: uint(DeviceAnalog)},
	})
	if !h.HasAnalog() {
		t.Error("HasAnalog should be true once an analog controller type is reported")
	}
	if len(h.ControllerTypes()) != 2 {
		t.Errorf("ControllerTypes count = %d, want 2", len(h.ControllerTypes()))
	}
}

func TestValidatePixelFormat(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	if !h.ValidatePixelFormat(PixelFormatXRGB8888) {
		t.Error("XRGB8888 must be accepted")
	}
	if h.ValidatePixelFormat(PixelFormatXRGB8888 + 1) {
		t.Error("non-XRGB8888 formats must be rejected")
	}
}
