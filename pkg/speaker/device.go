package speaker

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceKind is the compute backend family.
type DeviceKind string

const (
	DeviceCPU  DeviceKind = "cpu"
	DeviceCUDA DeviceKind = "cuda"
)

// Device selects where inference runs.
type Device struct {
	Kind  DeviceKind
	Index int
}

// CPU is the default host device.
var CPU = Device{Kind: DeviceCPU}

// ParseDevice parses "cpu", "cuda" or "cuda:N" (case-insensitive).
func ParseDevice(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	kind, idx, hasIdx := strings.Cut(s, ":")
	switch DeviceKind(kind) {
	case DeviceCPU:
		if hasIdx {
			return Device{}, fmt.Errorf("%w %q", ErrInvalidDevice, s)
		}
		return CPU, nil
	case DeviceCUDA:
		d := Device{Kind: DeviceCUDA}
		if !hasIdx {
			return d, nil
		}
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("%w %q", ErrInvalidDevice, s)
		}
		d.Index = n
		return d, nil
	}
	return Device{}, fmt.Errorf("%w %q", ErrInvalidDevice, s)
}

// IsGPU reports whether d is an accelerator.
func (d Device) IsGPU() bool {
	return d.Kind == DeviceCUDA
}

func (d Device) String() string {
	if d.Kind == DeviceCUDA {
		return "cuda:" + strconv.Itoa(d.Index)
	}
	return string(DeviceCPU)
}
