package main

import (
	"fmt"

	"github.com/keyrx/keyrx/lookup"
	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/platform"
	"github.com/keyrx/keyrx/processor"
)

// entriesForDeviceID merges the synthetic global device's mappings
// (mapping.GlobalDeviceID) with those of the named device, in that
// order. A device mapping does not shadow a global one: a key with an
// unconditional mapping in both makes lookup.Build reject the merge as
// a duplicate, and conditional candidates resolve globals first.
func entriesForDeviceID(root *mapping.ConfigRoot, deviceID string) ([]mapping.Entry, error) {
	var global, specific []mapping.Entry
	found := deviceID == mapping.GlobalDeviceID
	for _, d := range root.Devices {
		if d.ID == mapping.GlobalDeviceID {
			global = d.Mappings
		}
		if d.ID == deviceID {
			specific = d.Mappings
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("keyrx: no device %q in this artifact", deviceID)
	}
	return append(append([]mapping.Entry{}, global...), specific...), nil
}

// entriesForDescriptor merges the global device's mappings with those
// of whichever DeviceConfig's Match identifies desc, per spec.md
// section 3's device identity rule. A descriptor matching no
// configured device still gets the global mappings, so an
// unconfigured keyboard passes every key through rather than being
// rejected outright.
func entriesForDescriptor(root *mapping.ConfigRoot, desc platform.DeviceDescriptor) []mapping.Entry {
	var global, specific []mapping.Entry
	for _, d := range root.Devices {
		if d.ID == mapping.GlobalDeviceID {
			global = d.Mappings
			continue
		}
		if desc.Matches(d.Match) {
			specific = d.Mappings
		}
	}
	return append(append([]mapping.Entry{}, global...), specific...)
}

// newProcessor builds a lookup.Table from entries and wraps it in a
// Processor labeled deviceID, the one piece of plumbing both simulate
// and serve need.
func newProcessor(deviceID string, entries []mapping.Entry, sink observability.Sink) (*processor.Processor, error) {
	table, err := lookup.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("keyrx: building lookup table for %q: %w", deviceID, err)
	}
	return processor.New(deviceID, table, sink), nil
}
