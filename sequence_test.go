package insteon

import "testing"

func TestCommandSequenceRunsStepsInOrder(t *testing.T) {
	var order []int
	steps := make([]SequenceStep, 3)
	for i := range steps {
		i := i
		steps[i] = func(done DoneFunc) {
			order = append(order, i)
			done(true, "ok", nil)
		}
	}

	var finalSuccess bool
	NewCommandSequence("test", func(success bool, status string, payload interface{}) {
		finalSuccess = success
	}, steps...).Run()

	if !finalSuccess {
		t.Fatal("expected sequence to succeed")
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("steps ran out of order: %v", order)
	}
}

func TestCommandSequenceShortCircuitsOnFailure(t *testing.T) {
	var ran []int
	steps := []SequenceStep{
		func(done DoneFunc) { ran = append(ran, 0); done(true, "ok", nil) },
		func(done DoneFunc) { ran = append(ran, 1); done(false, "step failed", nil) },
		func(done DoneFunc) { ran = append(ran, 2); done(true, "ok", nil) },
	}

	var finalSuccess bool
	var finalStatus string
	NewCommandSequence("test", func(success bool, status string, payload interface{}) {
		finalSuccess = success
		finalStatus = status
	}, steps...).Run()

	if finalSuccess {
		t.Fatal("expected sequence to fail")
	}
	if finalStatus != "step failed" {
		t.Fatalf("status = %q, want %q", finalStatus, "step failed")
	}
	if len(ran) != 2 {
		t.Fatalf("ran %d steps, want 2 (short-circuit after failure)", len(ran))
	}
}

func TestCommandSequenceDuplicateStepCompletionIgnored(t *testing.T) {
	var calls int
	var savedDone DoneFunc
	steps := []SequenceStep{
		func(done DoneFunc) {
			savedDone = done
			done(true, "ok", nil)
		},
	}

	NewCommandSequence("test", func(success bool, status string, payload interface{}) {
		calls++
	}, steps...).Run()

	// Simulate a step whose callback fires a second time after the
	// sequence has already advanced.
	savedDone(true, "duplicate", nil)

	if calls != 1 {
		t.Fatalf("terminal callback invoked %d times, want exactly 1", calls)
	}
}

func TestCommandSequenceEmptySucceeds(t *testing.T) {
	var success bool
	NewCommandSequence("empty", func(s bool, status string, payload interface{}) {
		success = s
	}).Run()
	if !success {
		t.Fatal("empty sequence should report success")
	}
}
