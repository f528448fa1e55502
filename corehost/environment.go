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

// PixelFormatXRGB8888 is the only pixel format this host accepts from a core,
// matching the original's RETRO_ENVIRONMENT_SET_PIXEL_FORMAT check.
const PixelFormatXRGB8888 = 0

// ValidatePixelFormat is the callback an EmulatorCore's environment query
// makes to negotiate its pixel format; only XRGB8888 is accepted.
func (h *Host) ValidatePixelFormat(format int) bool {
	return format == PixelFormatXRGB8888
}

// SystemDirectory and SaveDirectory answer the environment queries a core
// makes for where to find BIOS/system files and where to persist its own
// save data, independent of this backend's own <rombase>.<slot>.state
// save-state files.
func (h *Host) SystemDirectory() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.systemDir
}

func (h *Host) SaveDirectory() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saveDir
}

// SetGeometry is the callback an EmulatorCore invokes when it reports a
// geometry change independent of a frame render (RETRO_ENVIRONMENT_SET_
// GEOMETRY), the one case that fires OnGeometryChange.
func (h *Host) SetGeometry(width, height int) {
	h.mu.Lock()
	h.video.setGeometry(width, height)
	cb := h.onGeometryChange
	h.mu.Unlock()
	if cb != nil {
		cb(width, height)
	}
}

// Variable is one core-defined configuration variable (RETRO_ENVIRONMENT_
// SET_VARIABLES / GET_VARIABLE), key with a default value and a
// human-readable description.
type Variable struct {
	Key         string
	Value       string
	Description string
}

// SetVariables installs the set of variables a core declares support for,
// replacing whatever was set before.
func (h *Host) SetVariables(vars []Variable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.variables = make(map[string]*Variable, len(vars))
	for i := range vars {
		v := vars[i]
		h.variables[v.Key] = &v
	}
}

// GetVariable answers a core's query for one variable's current value.
func (h *Host) GetVariable(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.variables[key]
	if !ok {
		return "", false
	}
	return v.Value, true
}

// SetVariable updates the value of an already-declared variable, e.g. from
// a frontend settings UI; unknown keys are ignored.
func (h *Host) SetVariable(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.variables[key]; ok {
		v.Value = value
	}
}

// Variables returns every declared variable; order is not preserved
// (map-backed) — callers that need a stable order should sort.
func (h *Host) Variables() []Variable {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Variable, 0, len(h.variables))
	for _, v := range h.variables {
		out = append(out, *v)
	}
	return out
}

// ControllerType names one selectable controller type for port 0
// (RETRO_ENVIRONMENT_SET_CONTROLLER_INFO).
type ControllerType struct {
	Description string
	ID          uint
}

// SetControllerInfo records the controller types a core reports for port 0.
func (h *Host) SetControllerInfo(types []ControllerType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.controllerTypes = append([]ControllerType(nil), types...)
}

// ControllerTypes returns the controller types most recently reported.
func (h *Host) ControllerTypes() []ControllerType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ControllerType(nil), h.controllerTypes...)
}

// HasAnalog reports whether any reported controller type is an analog pad,
// mirroring ar_controller_has_analog's RETRO_DEVICE_ANALOG mask check.
func (h *Host) HasAnalog() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ct := range h.controllerTypes {
		if ct.ID&0xff == DeviceAnalog {
			return true
		}
	}
	return false
}
