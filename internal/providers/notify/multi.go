package notify

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"go.uber.org/zap"
)

// Multi shows every notification on all of its sinks. Show succeeds when
// at least one sink accepted the notification.
type Multi struct {
	sinks  []notification.Notifier
	logger *zap.Logger
}

// NewMulti combines sinks. Nil sinks are skipped.
func NewMulti(logger *zap.Logger, sinks ...notification.Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Multi{logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Show(ctx context.Context, n notification.Notification) (notification.Handle, error) {
	if len(m.sinks) == 0 {
		return nil, ErrNoReceivers
	}

	var (
		handles []notification.Handle
		errs    []error
	)
	for _, s := range m.sinks {
		h, err := s.Show(ctx, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		handles = append(handles, h)
	}

	if len(handles) == 0 {
		return nil, errors.Join(errs...)
	}
	if len(errs) > 0 {
		m.logger.Debug("Notification partially delivered",
			zap.Int("delivered", len(handles)),
			zap.Error(errors.Join(errs...)),
		)
	}

	return &handle{
		id: n.ID,
		close: func() error {
			var closeErrs []error
			for _, h := range handles {
				if err := h.Close(); err != nil {
					closeErrs = append(closeErrs, err)
				}
			}
			return errors.Join(closeErrs...)
		},
	}, nil
}
