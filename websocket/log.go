package websocket

import "log"

// EventSink receives diagnostic events that have no other way to reach the
// caller: handshake completion (from Upgrader and Dialer) and the ping
// loop's missed-pong close. Nil is valid for Upgrader.Log and Dialer.Log:
// events are simply dropped.
type EventSink interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StdLogSink adapts the standard library's log.Logger to EventSink.
type StdLogSink struct {
	*log.Logger
}

// NewStdLogSink returns an EventSink that writes through l, or through
// log.Default() if l is nil.
func NewStdLogSink(l *log.Logger) *StdLogSink {
	if l == nil {
		l = log.Default()
	}
	return &StdLogSink{Logger: l}
}

func (s *StdLogSink) Debugf(format string, args ...any) { s.Printf("DEBUG "+format, args...) }
func (s *StdLogSink) Infof(format string, args ...any)  { s.Printf("INFO "+format, args...) }
func (s *StdLogSink) Warnf(format string, args ...any)  { s.Printf("WARN "+format, args...) }
func (s *StdLogSink) Errorf(format string, args ...any) { s.Printf("ERROR "+format, args...) }

// nopSink discards every event; used when a Conn is built with a nil sink.
type nopSink struct{}

func (nopSink) Debugf(string, ...any) {}
func (nopSink) Infof(string, ...any)  {}
func (nopSink) Warnf(string, ...any)  {}
func (nopSink) Errorf(string, ...any) {}
