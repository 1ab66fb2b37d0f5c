package main

import (
	"testing"

	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/platform"
)

func testRoot() *mapping.ConfigRoot {
	vendor := uint16(0x1234)
	return &mapping.ConfigRoot{
		Devices: []mapping.DeviceConfig{
			{
				ID:       mapping.GlobalDeviceID,
				Mappings: []mapping.Entry{{Key: 1, Mapping: mapping.Simple{To: 2}}},
			},
			{
				ID:       "keyboard-a",
				Match:    mapping.DeviceMatch{Vendor: vendor, Product: 1},
				Mappings: []mapping.Entry{{Key: 3, Mapping: mapping.Simple{To: 4}}},
			},
		},
	}
}

func TestEntriesForDeviceIDMergesGlobal(t *testing.T) {
	entries, err := entriesForDeviceID(testRoot(), "keyboard-a")
	if err != nil {
		t.Fatalf("entriesForDeviceID: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(entries))
	}
}

func TestEntriesForDeviceIDUnknownErrors(t *testing.T) {
	if _, err := entriesForDeviceID(testRoot(), "no-such-device"); err == nil {
		t.Fatal("expected an error for an unknown device id")
	}
}

func TestEntriesForDeviceIDGlobalOnly(t *testing.T) {
	entries, err := entriesForDeviceID(testRoot(), mapping.GlobalDeviceID)
	if err != nil {
		t.Fatalf("entriesForDeviceID: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected just the global entry, got %d", len(entries))
	}
}

func TestEntriesForDescriptorMatchesDevice(t *testing.T) {
	desc := platform.DeviceDescriptor{Vendor: 0x1234, Product: 1}
	entries := entriesForDescriptor(testRoot(), desc)
	if len(entries) != 2 {
		t.Fatalf("expected global + matched device entries, got %d", len(entries))
	}
}

func TestEntriesForDescriptorFallsBackToGlobal(t *testing.T) {
	desc := platform.DeviceDescriptor{Vendor: 0x9999, Product: 9}
	entries := entriesForDescriptor(testRoot(), desc)
	if len(entries) != 1 {
		t.Fatalf("expected only the global entry for an unmatched descriptor, got %d", len(entries))
	}
}

func TestNewProcessorBuildsFromEntries(t *testing.T) {
	entries := []mapping.Entry{{Key: 1, Mapping: mapping.Simple{To: 2}}}
	proc, err := newProcessor("dev0", entries, observability.NopSink{})
	if err != nil {
		t.Fatalf("newProcessor: %v", err)
	}
	if proc.Snapshot().DeviceID != "dev0" {
		t.Fatalf("unexpected device id: %s", proc.Snapshot().DeviceID)
	}
}
