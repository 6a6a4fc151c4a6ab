package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a material reservation.
type ReservationStatus string

const (
	ReservationStatusPlanned   ReservationStatus = "planned"
	ReservationStatusAllocated ReservationStatus = "allocated"
	ReservationStatusLoaded    ReservationStatus = "loaded"
	ReservationStatusUsed      ReservationStatus = "used"
	ReservationStatusReturned  ReservationStatus = "returned"
	ReservationStatusBilled    ReservationStatus = "billed"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusPlanned,
	ReservationStatusAllocated,
	ReservationStatusLoaded,
	ReservationStatusUsed,
	ReservationStatusReturned,
	ReservationStatusBilled,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// CountsAgainstLedger reports whether reservations in this status contribute
// to an item's allocated quantity.
func (r ReservationStatus) CountsAgainstLedger() bool {
	switch r {
	case ReservationStatusAllocated, ReservationStatusLoaded, ReservationStatusUsed:
		return true
	}
	return false
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
