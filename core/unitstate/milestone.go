// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitstate

// Milestone names a convergence step, such as rendering a config file or
// running a one-time migration, that has either completed or not.
type Milestone string

// Milestones is the set of milestones a component must reach before its
// services may start.
type Milestones []Milestone

// Reached reports whether m has been recorded as complete.
func (s *Store) Reached(m Milestone) bool {
	v, _ := s.Bool(string(m))
	return v
}

// SetMilestone records whether m is complete.
func (s *Store) SetMilestone(m Milestone, done bool) {
	s.SetBool(string(m), done)
}

// AllReached reports whether every milestone in ms is complete.
func (ms Milestones) AllReached(s *Store) bool {
	for _, m := range ms {
		if !s.Reached(m) {
			return false
		}
	}
	return true
}

// Pending returns the milestones in ms that are not yet complete.
func (ms Milestones) Pending(s *Store) Milestones {
	var pending Milestones
	for _, m := range ms {
		if !s.Reached(m) {
			pending = append(pending, m)
		}
	}
	return pending
}

// Reset marks every milestone in ms as not complete.
func (ms Milestones) Reset(s *Store) {
	for _, m := range ms {
		s.SetMilestone(m, false)
	}
}
