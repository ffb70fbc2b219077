package workflow

// applyReplacement returns old with r applied. A command replaces run and
// drops uses. A structured step overrides every field it sets, merges with
// and env key by key, and removes keys listed in Unset or given a nil value.
func applyReplacement(old Step, r Replacement) Step {
	if r.Step == nil {
		updated := old
		updated.Run = r.Command
		updated.Uses = ""
		return updated
	}

	s := *r.Step
	updated := old
	if s.ID != "" {
		updated.ID = s.ID
	}
	if s.Name != "" {
		updated.Name = s.Name
	}
	if s.If != "" {
		updated.If = s.If
	}
	if s.Uses != "" {
		updated.Uses = s.Uses
	}
	if s.Run != "" {
		updated.Run = s.Run
	}
	if s.Shell != "" {
		updated.Shell = s.Shell
	}
	if s.WorkingDirectory != "" {
		updated.WorkingDirectory = s.WorkingDirectory
	}
	if s.ContinueOnError != nil {
		updated.ContinueOnError = s.ContinueOnError
	}
	if s.TimeoutMinutes != nil {
		updated.TimeoutMinutes = s.TimeoutMinutes
	}
	updated.With = mergeValues(old.With, s.With)
	updated.Env = mergeValues(old.Env, s.Env)
	updated.Extra = mergeValues(old.Extra, s.Extra)

	for _, key := range r.Unset {
		unsetField(&updated, key)
	}
	return updated
}

// mergeValues overlays patch on base without modifying either. A nil value in
// patch deletes the key.
func mergeValues(base, patch map[string]any) map[string]any {
	if len(base) == 0 && len(patch) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func unsetField(s *Step, key string) {
	switch key {
	case "id":
		s.ID = ""
	case "name":
		s.Name = ""
	case "if":
		s.If = ""
	case "uses":
		s.Uses = ""
	case "run":
		s.Run = ""
	case "shell":
		s.Shell = ""
	case "working-directory":
		s.WorkingDirectory = ""
	case "with":
		s.With = nil
	case "env":
		s.Env = nil
	case "continue-on-error":
		s.ContinueOnError = nil
	case "timeout-minutes":
		s.TimeoutMinutes = nil
	default:
		delete(s.Extra, key)
		if len(s.Extra) == 0 {
			s.Extra = nil
		}
	}
}

// cloneStep copies s deeply enough that inserting it twice does not alias maps.
func cloneStep(s Step) Step {
	c := s
	c.With = mergeValues(nil, s.With)
	c.Env = mergeValues(nil, s.Env)
	c.Extra = mergeValues(nil, s.Extra)
	return c
}
