package booking

import (
	"errors"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// Reason is the rejection reason reported to callers.
type Reason string

const (
	ReasonPastStartTime     Reason = "PastStartTime"
	ReasonInvalidNightStart Reason = "InvalidNightStart"
	ReasonSlotTaken         Reason = "SlotTaken"
	ReasonStoreUnavailable  Reason = "StoreUnavailable"
	ReasonInvalidPackage    Reason = "InvalidPackage"
	ReasonResourceNotFound  Reason = "ResourceNotFound"
)

var (
	ErrPastStartTime     = errors.New("start time is in the past")
	ErrInvalidNightStart = errors.New("night package must start at the night start hour")
	ErrSlotTaken         = errors.New("slot already taken")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidPackage    = errors.New("unknown time package")

	ErrNotOwner  = errors.New("reservation belongs to another user")
	ErrNotActive = errors.New("reservation is not active")
)

// ReasonOf maps an Admit error to its rejection reason. Unknown errors map to
// StoreUnavailable; nil maps to "".
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPastStartTime):
		return ReasonPastStartTime
	case errors.Is(err, ErrInvalidNightStart):
		return ReasonInvalidNightStart
	case errors.Is(err, ErrSlotTaken):
		return ReasonSlotTaken
	case errors.Is(err, ErrInvalidPackage):
		return ReasonInvalidPackage
	case errors.Is(err, model.ErrResourceNotFound):
		return ReasonResourceNotFound
	default:
		return ReasonStoreUnavailable
	}
}
