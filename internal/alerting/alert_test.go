package alerting

import "testing"

func TestAlertStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to AlertStatus
		want     bool
	}{
		{StatusOpen, StatusAcknowledged, true},
		{StatusOpen, StatusResolved, false},
		{StatusOpen, StatusOpen, false},
		{StatusAcknowledged, StatusResolved, true},
		{StatusAcknowledged, StatusOpen, true},
		{StatusResolved, StatusOpen, true},
		{StatusResolved, StatusAcknowledged, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlertStatusIsValid(t *testing.T) {
	for _, s := range []AlertStatus{StatusOpen, StatusAcknowledged, StatusResolved} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if AlertStatus("CLOSED").IsValid() {
		t.Error("CLOSED should be invalid")
	}
}
