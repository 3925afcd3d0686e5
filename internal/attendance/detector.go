package attendance

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/resolver"
)

// disabledAttr is the affordance the attendance widget sets on a control once
// its action has been performed.
const disabledAttr = "disabled"

// Detector derives the attendance state from the check-in control.
type Detector struct {
	bc       schemas.BrowsingContext
	resolver *resolver.Resolver
	checkIn  schemas.TargetSpecifier
	logger   *zap.Logger
}

// NewDetector creates a detector that resolves checkIn with r.
func NewDetector(bc schemas.BrowsingContext, r *resolver.Resolver, checkIn schemas.TargetSpecifier, logger *zap.Logger) *Detector {
	return &Detector{
		bc:       bc,
		resolver: r,
		checkIn:  checkIn,
		logger:   logger.Named("detector"),
	}
}

// Detect reports ALREADY_DONE when the check-in control is disabled and
// NOT_DONE when it is enabled. determined is false when the control could not
// be found; state is then NOT_DONE. The browsing context is at the top-level
// document on return. An error is returned only when ctx ends.
func (d *Detector) Detect(ctx context.Context) (state schemas.AttendanceState, determined bool, err error) {
	ctl, err := d.resolver.Resolve(ctx, d.checkIn)
	if err != nil {
		return schemas.StateNotDone, false, err
	}
	if ctl == nil {
		d.logger.Warn("Check-in control not found; state cannot be determined.")
		return schemas.StateNotDone, false, nil
	}

	if isDisabled(ctx, d.bc, ctl, d.logger) {
		state = schemas.StateAlreadyDone
	}
	d.logger.Info("Attendance state detected.", zap.Stringer("state", state))
	return state, true, nil
}

// isDisabled reads the live disabled attribute of the control, falling back
// to the snapshot taken when it was resolved.
func isDisabled(ctx context.Context, bc schemas.BrowsingContext, ctl *schemas.ResolvedControl, logger *zap.Logger) bool {
	var disabled bool
	err := resolver.Within(ctx, bc, ctl, func(ctx context.Context, el schemas.ElementRef) error {
		_, ok, err := bc.ReadAttribute(ctx, el, disabledAttr)
		disabled = ok
		return err
	})
	if err != nil {
		logger.Debug("Live attribute read failed; using snapshot.", zap.Error(err))
		_, disabled = ctl.Ref.Attr(disabledAttr)
	}
	return disabled
}
