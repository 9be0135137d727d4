package ride

import "testing"

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" in_progress ")
	if err != nil || got != StatusInProgress {
		t.Errorf("ParseStatus = %v, %v; want IN_PROGRESS", got, err)
	}
	if _, err := ParseStatus("DRIVING"); err == nil {
		t.Error("unknown status accepted")
	}
	if _, err := ParseStatus(""); err == nil {
		t.Error("empty status accepted")
	}
}

func TestCanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusOpen:       {StatusSearching, StatusCanceled},
		StatusSearching:  {StatusAccepted, StatusFailed, StatusCanceled},
		StatusAccepted:   {StatusArriving, StatusCanceled},
		StatusArriving:   {StatusInProgress, StatusCanceled},
		StatusInProgress: {StatusCompleted, StatusCanceled},
		StatusCompleted:  {},
		StatusCanceled:   {},
		StatusFailed:     {},
	}

	all := []Status{
		StatusOpen, StatusSearching, StatusAccepted, StatusArriving,
		StatusInProgress, StatusCompleted, StatusCanceled, StatusFailed,
	}

	for from, nexts := range allowed {
		ok := make(map[Status]bool, len(nexts))
		for _, to := range nexts {
			ok[to] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != ok[to] {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestTerminalAndDispatchable(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCanceled, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
		if s.Dispatchable() {
			t.Errorf("%s.Dispatchable() = true", s)
		}
	}
	for _, s := range []Status{StatusOpen, StatusSearching} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
		if !s.Dispatchable() {
			t.Errorf("%s.Dispatchable() = false", s)
		}
	}
	// a ride with a driver is neither terminal nor still winnable
	for _, s := range []Status{StatusAccepted, StatusArriving, StatusInProgress} {
		if s.Terminal() || s.Dispatchable() {
			t.Errorf("%s terminal=%v dispatchable=%v", s, s.Terminal(), s.Dispatchable())
		}
	}
}
