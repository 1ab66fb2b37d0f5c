package main

import (
	"fmt"
	"os"

	"github.com/keyrx/keyrx/backend/linux"
	"github.com/keyrx/keyrx/backend/tty"
	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/platform"
)

// openUnits builds one servedUnit per configured input device for the
// selected backend. The returned close func releases every opened
// source regardless of how many units were successfully built, so a
// mid-loop failure doesn't leak file descriptors.
func (s *serveCommand) openUnits(root *mapping.ConfigRoot, sink observability.Sink) ([]servedUnit, func(), error) {
	switch s.backend {
	case "linux":
		return s.openLinuxUnits(root, sink)
	case "tty":
		return s.openTTYUnits(root, sink)
	default:
		return nil, func() {}, fmt.Errorf("keyrx: unknown backend %q", s.backend)
	}
}

func (s *serveCommand) openLinuxUnits(root *mapping.ConfigRoot, sink observability.Sink) ([]servedUnit, func(), error) {
	if len(s.devicePaths) == 0 {
		return nil, func() {}, fmt.Errorf("keyrx: --device is required for the linux backend")
	}

	var units []servedUnit
	var sources []platform.Source
	closeAll := func() {
		for _, src := range sources {
			src.Close()
		}
	}

	out, err := linux.NewUinputSink("keyrx virtual keyboard")
	if err != nil {
		return nil, closeAll, fmt.Errorf("keyrx: opening uinput sink: %w", err)
	}

	for _, path := range s.devicePaths {
		src, err := linux.OpenDevice(path)
		if err != nil {
			out.Close()
			closeAll()
			return nil, func() {}, fmt.Errorf("keyrx: opening %s: %w", path, err)
		}
		src.Start()
		sources = append(sources, src)

		desc := platform.DeviceDescriptor{
			ID:      path,
			Vendor:  src.Device().Vendor,
			Product: src.Device().Product,
		}
		entries := entriesForDescriptor(root, desc)
		proc, err := newProcessor(path, entries, sink)
		if err != nil {
			out.Close()
			closeAll()
			return nil, func() {}, err
		}
		units = append(units, servedUnit{deviceID: path, source: src, sink: out, proc: proc})
	}

	return units, func() { out.Close(); closeAll() }, nil
}

func (s *serveCommand) openTTYUnits(root *mapping.ConfigRoot, sink observability.Sink) ([]servedUnit, func(), error) {
	src, err := tty.Open("/dev/tty")
	if err != nil {
		return nil, func() {}, fmt.Errorf("keyrx: opening /dev/tty: %w", err)
	}
	closeAll := func() { src.Close() }

	entries := entriesForDescriptor(root, platform.DeviceDescriptor{ID: "/dev/tty"})
	proc, err := newProcessor("/dev/tty", entries, sink)
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}

	out := tty.NewSink(os.Stdout)
	unit := servedUnit{deviceID: "/dev/tty", source: src, sink: out, proc: proc}
	return []servedUnit{unit}, closeAll, nil
}
