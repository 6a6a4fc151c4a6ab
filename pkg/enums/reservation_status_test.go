package enums

import "testing"

func TestReservationStatusParseAndValidate(t *testing.T) {
	for _, status := range validReservationStatuses {
		parsed, err := ParseReservationStatus(status.String())
		if err != nil {
			t.Fatalf("ParseReservationStatus(%q) returned error: %v", status, err)
		}
		if parsed != status {
			t.Fatalf("expected %q, got %q", status, parsed)
		}
		if !parsed.IsValid() {
			t.Fatalf("expected %q to be valid", status)
		}
	}

	if _, err := ParseReservationStatus("cancelled"); err == nil {
		t.Fatal("expected error for unknown status; cancellations are full returns")
	}
	if ReservationStatus("bogus").IsValid() {
		t.Fatal("bogus status should be invalid")
	}
}

func TestReservationStatusCountsAgainstLedger(t *testing.T) {
	cases := map[ReservationStatus]bool{
		ReservationStatusPlanned:   false,
		ReservationStatusAllocated: true,
		ReservationStatusLoaded:    true,
		ReservationStatusUsed:      true,
		ReservationStatusReturned:  false,
		ReservationStatusBilled:    false,
	}
	for status, want := range cases {
		if got := status.CountsAgainstLedger(); got != want {
			t.Fatalf("status %q: expected CountsAgainstLedger %v, got %v", status, want, got)
		}
	}
}
