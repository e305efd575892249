// Package frame defines the notification and audio frames emitted to the
// downstream audio consumer. One synthesis turn produces the sequence
// Started, Text, zero or more Audio frames, Stopped. Error frames are
// delivered out of band and do not replace the Stopped marker.
package frame

// Frame is a single item in the downstream output stream.
type Frame interface {
	frame()
}

// Started marks the beginning of a synthesis turn.
type Started struct {
	ContextID string
}

// Text restates the input text of the turn for downstream text aggregation.
// The text is not resynthesized.
type Text struct {
	ContextID string
	Text      string
}

// Audio carries one chunk of decoded PCM audio.
type Audio struct {
	ContextID  string
	PCM        []byte
	SampleRate int
	Channels   int
}

// Stopped marks the end of a synthesis turn. Exactly one Stopped frame is
// emitted per context, whether the turn finished, failed, or was interrupted.
type Stopped struct {
	ContextID string
}

// Error reports a recoverable failure. Cause may be nil when the failure
// originated as a server-side error message.
type Error struct {
	Message string
	Cause   error
}

func (Started) frame() {}
func (Text) frame()    {}
func (Audio) frame()   {}
func (Stopped) frame() {}
func (Error) frame()   {}
