package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/geocoder89/conventionhub/internal/domain/task"
)

func EncodePayload(k task.Kind, payload any) ([]byte, error) {
	if !k.IsValid() {
		return nil, ErrInvalidKind
	}

	switch k {
	case task.KindUserWebinarRegistration:
		if !is[UserWebinarRegistrationPayload](payload) {
			return nil, ErrPayloadTypeMismatch
		}
	case task.KindExportWebinarVisitors:
		if !is[ExportWebinarVisitorsPayload](payload) {
			return nil, ErrPayloadTypeMismatch
		}
	case task.KindRecalculateWebinarStatistic:
		if !is[RecalculateWebinarStatisticPayload](payload) {
			return nil, ErrPayloadTypeMismatch
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals t.Payload into the typed payload for t.Kind.
func DecodePayload(t task.Task) (any, error) {
	if !t.Kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if len(t.Payload) == 0 {
		return nil, ErrInvalidPayload
	}

	switch t.Kind {
	case task.KindUserWebinarRegistration:
		return decode[UserWebinarRegistrationPayload](t.Payload)
	case task.KindExportWebinarVisitors:
		return decode[ExportWebinarVisitorsPayload](t.Payload)
	case task.KindRecalculateWebinarStatistic:
		return decode[RecalculateWebinarStatisticPayload](t.Payload)
	default:
		return nil, ErrInvalidKind
	}
}

// DecodeAs decodes and asserts in one step; handlers use it for their own kind.
func DecodeAs[P any](t task.Task) (P, error) {
	var zero P

	v, err := DecodePayload(t)
	if err != nil {
		return zero, err
	}

	p, ok := v.(P)
	if !ok {
		return zero, ErrPayloadTypeMismatch
	}
	return p, nil
}

func decode[P any](raw []byte) (any, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

func is[P any](payload any) bool {
	switch payload.(type) {
	case P, *P:
		return true
	default:
		return false
	}
}
