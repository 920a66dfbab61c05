package api

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by ranking and ladder queries.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithSubmitRate limits submissions per client IP to perSecond with the
// given burst. A non-positive rate disables limiting.
func WithSubmitRate(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.submitRate = perSecond
		s.submitBurst = max(burst, 1)
	}
}
