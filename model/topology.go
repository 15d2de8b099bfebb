package model

import "strings"

// Topology selects the execution pattern of a run.
type Topology string

const (
	TopologyRoundRobin Topology = "roundrobin"
	TopologySequential Topology = "sequential"
	TopologyConcurrent Topology = "concurrent"
	TopologyHandoff    Topology = "handoff"
)

// Topologies lists every supported topology.
var Topologies = []Topology{TopologyRoundRobin, TopologySequential, TopologyConcurrent, TopologyHandoff}

// ParseTopology maps a topology name case-insensitively; empty or
// unrecognised names select round-robin.
func ParseTopology(name string) Topology {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sequential":
		return TopologySequential
	case "concurrent":
		return TopologyConcurrent
	case "handoff":
		return TopologyHandoff
	default:
		return TopologyRoundRobin
	}
}

// IsValid reports whether t is one of the supported topologies.
func (t Topology) IsValid() bool {
	for _, candidate := range Topologies {
		if t == candidate {
			return true
		}
	}
	return false
}

// Gated reports whether the topology can pause at an approval checkpoint.
func (t Topology) Gated() bool {
	return t == TopologySequential || t == TopologyHandoff
}
