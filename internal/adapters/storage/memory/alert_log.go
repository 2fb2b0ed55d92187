package memory

import (
	"context"
	"sync"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

// AlertLog is a FIFO ring buffer: appending past the cap evicts the oldest
// entries first.
type AlertLog struct {
	mu     sync.RWMutex
	cap    int
	alerts []*domain.Alert
}

func NewAlertLog(cap int) *AlertLog {
	if cap <= 0 {
		cap = 50
	}
	return &AlertLog{cap: cap}
}

func (l *AlertLog) Append(_ context.Context, alert *domain.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.alerts = append(l.alerts, alert)
	if len(l.alerts) > l.cap {
		l.alerts = l.alerts[len(l.alerts)-l.cap:]
	}
	return nil
}

// List returns alerts newest first.
func (l *AlertLog) List(_ context.Context) ([]*domain.Alert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Alert, len(l.alerts))
	for i, a := range l.alerts {
		out[len(l.alerts)-1-i] = a
	}
	return out, nil
}
