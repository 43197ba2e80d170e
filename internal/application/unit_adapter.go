package application

import (
	"context"
	"time"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/ports"
)

// UnitAdapter lets a ports.Unit take part in pipelines, layers and graphs.
// It applies the unit's execution timeout and attributes failures to the
// unit id with ports.UnitError.
type UnitAdapter struct {
	unit    ports.Unit
	id      string
	timeout time.Duration
}

// NewUnitAdapter wraps unit. A zero timeout means no limit.
func NewUnitAdapter(unit ports.Unit, id string, timeout time.Duration) *UnitAdapter {
	return &UnitAdapter{unit: unit, id: id, timeout: timeout}
}

// Execute runs the unit.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if ua.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ua.timeout)
		defer cancel()
	}
	out, err := ua.unit.Execute(ctx, state)
	if err != nil {
		return state, ports.NewUnitError(ua.id, "execute", err)
	}
	return out, nil
}

// ID returns the unit id.
func (ua *UnitAdapter) ID() string { return ua.id }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }

var _ ports.Executable = (*UnitAdapter)(nil)
