package topic

import (
	"fmt"
)

// Topic segment constants. These are the contract between the agent and any
// dashboard subscribed to it; changing them breaks existing observers.
const (
	// SuffixState carries retained session-state snapshots (Agent -> observers).
	// Structure: {root}/flash/state/{deviceID}
	SuffixState = "flash/state"

	// SuffixOnline carries the retained online/offline marker, also used as
	// the will topic. Structure: {root}/flash/online/{deviceID}
	SuffixOnline = "flash/online"
)

// Standard MQTT wildcard definitions.
const (
	// Wildcard is the single-level wildcard "+".
	Wildcard = "+"

	// MultiWildcard is the multi-level wildcard "#". Must be the last
	// character in a topic filter.
	MultiWildcard = "#"
)

// Builder constructs the MQTT topic strings used by the agent.
type Builder struct {
	root string
}

// NewBuilder creates a Builder with the given root namespace
// (e.g. "abflash/v1").
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// State returns the retained session-state topic for a device.
func (b *Builder) State(deviceID string) string {
	return b.build(SuffixState, deviceID)
}

// StateWildcard returns the filter matching state topics of all devices.
func (b *Builder) StateWildcard() string {
	return b.build(SuffixState, Wildcard)
}

// Online returns the online/offline marker topic for a device.
func (b *Builder) Online(deviceID string) string {
	return b.build(SuffixOnline, deviceID)
}

func (b *Builder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
