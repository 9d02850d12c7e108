package zmodem

import (
	"os"
	"time"
)

// Callbacks are the embedder's contract, narrowed to the receiver role per
// spec §6. All fields are optional; mergeCallbacks fills the rest in with
// no-op defaults so the engine never has to nil-check a hook.
type Callbacks struct {
	// OnFilePrompt is called once a ZFILE sub-packet has been parsed,
	// before any ZRPOS/ZCRC is sent. Return false to ZSKIP the file.
	OnFilePrompt func(filename string, size int64, mode os.FileMode) (bool, error)

	// OnReceive consumes one decoded data sub-packet's payload. When zcnl
	// is true the sink should apply newline translation, per spec §6's
	// on_receive contract. A returned error is fatal: the engine emits
	// ZFERR, moves to ZMR_FINISH and Feed returns EIO.
	OnReceive func(buf []byte, zcnl bool) error

	// OnProgress is called as data sub-packets are accepted, at most once
	// per 200ms (the session's ProgressTracker interval), and once more
	// when ZEOF completes the file.
	OnProgress func(filename string, transferred, total int64, rate float64)

	// OnFileStart is called when a file transfer starts.
	OnFileStart func(filename string, size int64, mode os.FileMode)

	// OnFileComplete is called when a file transfer completes.
	OnFileComplete func(filename string, bytesTransferred int64, duration time.Duration)

	// OnError is accepted and merged like the other hooks, but the engine
	// does not call it: transient errors (category 1 in the error taxonomy)
	// are recovered locally with ZNAK/ZRPOS and are not reported here.
	OnError func(err error, context string)

	// OnEvent is called for protocol events (debugging/logging).
	OnEvent func(event Event)

	// OnFileCreate is called when creating a file for writing. If nil, the
	// engine has nowhere to put received bytes and OnReceive must handle
	// storage itself.
	OnFileCreate func(filename string, size int64, mode os.FileMode) error
}

// Event represents a protocol event for logging/debugging.
type Event struct {
	Type      EventType
	Message   string
	FrameType int
	Timestamp time.Time
}

// EventType categorizes protocol events.
type EventType int

const (
	EventFrameSent EventType = iota
	EventFrameReceived
	EventFileStart
	EventFileComplete
	EventError
	EventTimeout
	EventCancelled
)

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnFilePrompt: func(string, int64, os.FileMode) (bool, error) {
			return true, nil
		},
		OnReceive:      func([]byte, bool) error { return nil },
		OnProgress:     func(string, int64, int64, float64) {},
		OnFileStart:    func(string, int64, os.FileMode) {},
		OnFileComplete: func(string, int64, time.Duration) {},
		OnError:        func(error, string) {},
		OnEvent:        func(Event) {},
		OnFileCreate:   func(string, int64, os.FileMode) error { return nil },
	}
}

// mergeCallbacks merges user callbacks with defaults. User callbacks
// override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	def := defaultCallbacks()
	if user == nil {
		return def
	}

	result := *def
	if user.OnFilePrompt != nil {
		result.OnFilePrompt = user.OnFilePrompt
	}
	if user.OnReceive != nil {
		result.OnReceive = user.OnReceive
	}
	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	}
	if user.OnFileStart != nil {
		result.OnFileStart = user.OnFileStart
	}
	if user.OnFileComplete != nil {
		result.OnFileComplete = user.OnFileComplete
	}
	if user.OnError != nil {
		result.OnError = user.OnError
	}
	if user.OnEvent != nil {
		result.OnEvent = user.OnEvent
	}
	if user.OnFileCreate != nil {
		result.OnFileCreate = user.OnFileCreate
	}
	return &result
}
