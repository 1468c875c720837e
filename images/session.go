package images

// Session holds the suffix chosen for one page view. Create it with
// NewSession; a Session belongs to the goroutine driving its document.
type Session struct {
	suffix  Suffix
	latched bool
}

// NewSession returns an unlatched session defaulting to SuffixSmall.
func NewSession() *Session {
	return &Session{suffix: SuffixSmall}
}

// Suffix returns the current suffix.
func (s *Session) Suffix() Suffix { return s.suffix }

// SetSuffix overrides the suffix without touching the latch.
func (s *Session) SetSuffix(v Suffix) { s.suffix = v }

// Latched reports whether a suffix has been selected for this page view.
func (s *Session) Latched() bool { return s.latched }

// SetLatched sets or clears the "suffix already selected" latch.
func (s *Session) SetLatched(v bool) { s.latched = v }

// Reset clears the latch and restores the default suffix.
func (s *Session) Reset() {
	s.latched = false
	s.suffix = SuffixSmall
}

// latch records v as the page view's suffix unless one was already chosen,
// and reports whether it did.
func (s *Session) latch(v Suffix) bool {
	if s.latched {
		return false
	}
	s.suffix = v
	s.latched = true
	return true
}
