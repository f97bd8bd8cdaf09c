package ports

import (
	"context"

	"github.com/opsdeck/opsdeck/internal/domain"
)

// PermissionFaultEvent is the well-known event name faults are published under
const PermissionFaultEvent = "permission-error"

// FaultReporter is handed to write call sites so denied writes reach the diagnostic surface.
// Reporting never fails; a fault with nobody listening is dropped.
type FaultReporter interface {
	ReportPermissionFault(ctx context.Context, fault domain.PermissionFault)
}

// FaultHandler receives published faults
type FaultHandler func(fault domain.PermissionFault)

// FaultBridge is a FaultReporter consumers can attach to
type FaultBridge interface {
	FaultReporter
	// Subscribe attaches a handler and returns the function that detaches it
	Subscribe(handler FaultHandler) (unsubscribe func())
}
