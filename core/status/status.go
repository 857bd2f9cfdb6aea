// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

// Status represents the workload status of the unit as reported to the
// controller. Only the four charm-settable values are modelled here.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

const (
	// Maintenance is set while the charm is actively performing an
	// operation on the workload, such as rewriting its configuration.
	Maintenance Status = "maintenance"

	// Blocked means a prerequisite is missing that will not resolve
	// itself; an operator needs to intervene.
	Blocked Status = "blocked"

	// Waiting means a prerequisite is missing but is expected to
	// resolve itself without operator intervention.
	Waiting Status = "waiting"

	// Active means the workload is configured and running.
	Active Status = "active"
)

// StatusInfo holds a Status and an associated operator-facing message.
type StatusInfo struct {
	Status  Status
	Message string
}

// Setter represents a type whose status can be set.
type Setter interface {
	SetUnitStatus(StatusInfo) error
}
