package hawk

// Step is one reversible part of a multi-step storage change.
type Step struct {
	Name string
	Do   func() error
	Undo func() error
}

// WithCompensation applies steps in order. When a step fails, the steps that
// already succeeded are undone in reverse order and the original error is
// returned. Undo failures are logged and do not replace the original error.
func WithCompensation(logger Logger, steps ...Step) error {
	done := make([]Step, 0, len(steps))
	for _, s := range steps {
		if err := s.Do(); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				if done[i].Undo == nil {
					continue
				}
				if uerr := done[i].Undo(); uerr != nil {
					logger.Error("compensation failed", "step", done[i].Name, "error", uerr, "cause", err)
				}
			}
			return err
		}
		done = append(done, s)
	}
	return nil
}
