package insteon

// SequenceStep is one step of a CommandSequence: a function that
// performs some asynchronous operation and reports completion through
// the supplied DoneFunc. Steps are free to call engine.Send, another
// CommandSequence, or anything else that eventually completes.
type SequenceStep func(done DoneFunc)

// CommandSequence runs a list of steps strictly in order, propagating
// a single terminal (success, message, data) result (spec.md 4.5).
// On the first step to fail, the sequence short-circuits and reports
// that failure; if every step succeeds, it reports success with the
// last step's data and a fixed completion text.
type CommandSequence struct {
	name       string
	steps      []SequenceStep
	onDone     DoneFunc
	index      int
	doneFired  bool
}

// NewCommandSequence builds a sequence named name (used in the
// success completion text) running steps in order. done is the
// terminal callback, invoked exactly once regardless of where the
// sequence stops.
func NewCommandSequence(name string, done DoneFunc, steps ...SequenceStep) *CommandSequence {
	return &CommandSequence{name: name, steps: steps, onDone: done}
}

// Run starts the sequence at step 0.
func (s *CommandSequence) Run() {
	s.runStep(0)
}

func (s *CommandSequence) runStep(i int) {
	if i >= len(s.steps) {
		s.finish(true, s.name+" completed", nil)
		return
	}
	s.index = i
	step := s.steps[i]
	step(func(success bool, status string, payload interface{}) {
		s.stepDone(i, success, status, payload)
	})
}

func (s *CommandSequence) stepDone(i int, success bool, status string, payload interface{}) {
	if i != s.index {
		// A step's on_done fired more than once, or fired for a step
		// that isn't current. spec.md 4.5: "a step's on_done must not
		// be called twice (violations are logged and ignored)".
		Log.Errorf("insteon: sequence %q step %d: %v", s.name, i, ErrDuplicateCompletion)
		return
	}
	// Advance index immediately so a duplicate callback from the same
	// step is caught by the check above.
	s.index = -1

	if !success {
		s.finish(false, status, payload)
		return
	}
	if i+1 >= len(s.steps) {
		s.finish(true, s.name+" completed", payload)
		return
	}
	s.runStep(i + 1)
}

func (s *CommandSequence) finish(success bool, status string, payload interface{}) {
	if s.doneFired {
		Log.Errorf("insteon: sequence %q: %v", s.name, ErrDuplicateCompletion)
		return
	}
	s.doneFired = true
	if s.onDone != nil {
		s.onDone(success, status, payload)
	}
}
