// Package alerts is the read side of the alert log, consumed by the teacher
// dashboard.
package alerts

import (
	"context"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
	"github.com/smartstudent-vn/spss-agent/internal/observability"
)

// Filter narrows the feed to one school and/or class. Matching is case- and
// diacritic-insensitive: "Lớp 10A" and "lop 10a" are the same class.
type Filter struct {
	School    string
	ClassName string
}

type Service struct {
	log domain.AlertLog
}

func NewService(log domain.AlertLog) *Service {
	return &Service{log: log}
}

// List returns matching alerts newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]*domain.Alert, error) {
	all, err := s.log.List(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list alerts", "error", err)
		return nil, err
	}

	school := Fold(filter.School)
	class := Fold(filter.ClassName)
	if school == "" && class == "" {
		return all, nil
	}

	out := make([]*domain.Alert, 0, len(all))
	for _, a := range all {
		if school != "" && Fold(a.School) != school {
			continue
		}
		if class != "" && Fold(a.ClassName) != class {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
