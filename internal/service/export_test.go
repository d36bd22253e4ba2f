package service

import "time"

// SetClock replaces the token clock in tests.
func (s *AuthService) SetClock(now func() time.Time) { s.now = now }
