package session

// Value reads key from the session and asserts it to T. Absent keys and
// values of another type report false.
func Value[T any](s *Store, sessionID, key string) (T, bool) {
	v, ok := s.Get(sessionID, key, nil).(T)
	return v, ok
}
