package tasks

import (
	"strings"

	"github.com/geocoder89/conventionhub/internal/domain/task"
)

// ValidatePayload rejects payloads that would make the handler a no-op or
// point at nothing. It runs before the task is ever persisted.
func ValidatePayload(k task.Kind, payload any) error {
	if !k.IsValid() {
		return ErrInvalidKind
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch k {
	case task.KindUserWebinarRegistration:
		p, ok := as[UserWebinarRegistrationPayload](payload)
		if !ok {
			return ErrPayloadTypeMismatch
		}
		if p.UserID <= 0 || p.WebinarID <= 0 {
			return ErrInvalidPayload
		}
		return nil

	case task.KindExportWebinarVisitors:
		p, ok := as[ExportWebinarVisitorsPayload](payload)
		if !ok {
			return ErrPayloadTypeMismatch
		}
		if p.WebinarID <= 0 || trim(p.FileName) == "" || trim(p.RequestedBy) == "" || len(p.Rows) == 0 {
			return ErrInvalidPayload
		}
		return nil

	case task.KindRecalculateWebinarStatistic:
		p, ok := as[RecalculateWebinarStatisticPayload](payload)
		if !ok {
			return ErrPayloadTypeMismatch
		}
		if p.WebinarID <= 0 {
			return ErrInvalidPayload
		}
		return nil

	default:
		return ErrInvalidKind
	}
}

func as[P any](payload any) (P, bool) {
	switch v := payload.(type) {
	case P:
		return v, true
	case *P:
		if v != nil {
			return *v, true
		}
	}
	var zero P
	return zero, false
}
