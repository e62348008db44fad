package flow

// Status is the transient part of a flow: at most one of Error and Message
// is set at any time.
type Status struct {
	Loading bool
	Error   string
	Message string
}

func (s *Status) fail(msg string) {
	s.Loading = false
	s.Error = msg
	s.Message = ""
}

func (s *Status) succeed(msg string) {
	s.Loading = false
	s.Error = ""
	s.Message = msg
}

func (s *Status) start() {
	s.Loading = true
	s.Error = ""
	s.Message = ""
}

func (s *Status) reset() {
	*s = Status{}
}
