package domain

import (
	"fmt"
	"strings"
)

// DeploymentStatus represents the lifecycle state of a deployment
type DeploymentStatus int

const (
	DeploymentStatusUnknown DeploymentStatus = iota
	DeploymentStatusQueued
	DeploymentStatusBuilding
	DeploymentStatusDeployed
	DeploymentStatusFailed
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentStatusQueued:
		return "QUEUED"
	case DeploymentStatusBuilding:
		return "BUILDING"
	case DeploymentStatusDeployed:
		return "DEPLOYED"
	case DeploymentStatusFailed:
		return "FAILED"
	case DeploymentStatusUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	switch s {
	case "QUEUED":
		return DeploymentStatusQueued, nil
	case "BUILDING":
		return DeploymentStatusBuilding, nil
	case "DEPLOYED":
		return DeploymentStatusDeployed, nil
	case "FAILED":
		return DeploymentStatusFailed, nil
	case "UNKNOWN":
		return DeploymentStatusUnknown, nil
	default:
		return DeploymentStatusUnknown, fmt.Errorf("invalid deployment status: %q", s)
	}
}

// IsTerminal reports whether no further transitions are possible from s
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentStatusDeployed || s == DeploymentStatusFailed
}

// AllowedPredecessors returns the states a deployment may be in to move to s.
// QUEUED is initial only and has no predecessors.
func AllowedPredecessors(s DeploymentStatus) []DeploymentStatus {
	switch s {
	case DeploymentStatusBuilding:
		return []DeploymentStatus{DeploymentStatusQueued}
	case DeploymentStatusDeployed:
		return []DeploymentStatus{DeploymentStatusBuilding}
	case DeploymentStatusFailed:
		return []DeploymentStatus{DeploymentStatusQueued, DeploymentStatusBuilding}
	default:
		return nil
	}
}

// CanTransition reports whether the state machine permits from -> to
func CanTransition(from, to DeploymentStatus) bool {
	for _, p := range AllowedPredecessors(to) {
		if p == from {
			return true
		}
	}
	return false
}

// Platform selects the deployment strategy
type Platform int

const (
	PlatformSimulated Platform = iota
	PlatformContainer
	PlatformManaged
)

func (p Platform) String() string {
	switch p {
	case PlatformContainer:
		return "Docker"
	case PlatformManaged:
		return "Vercel"
	default:
		return "Simulated"
	}
}

// ParsePlatform maps a requested platform name to a Platform.
// Unrecognized or empty names select the simulated strategy.
func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "docker", "container":
		return PlatformContainer
	case "vercel", "managed", "managedplatform", "managed-platform":
		return PlatformManaged
	default:
		return PlatformSimulated
	}
}

// Severity is the coarse outcome classification produced by log analysis
type Severity string

const (
	SeverityNone Severity = "NONE"
	SeverityHigh Severity = "HIGH"
)

// LogStream identifies where a log line came from
type LogStream string

const (
	LogStreamSystem LogStream = "system"
	LogStreamStdout LogStream = "stdout"
	LogStreamStderr LogStream = "stderr"
)
