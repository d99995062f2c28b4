package fixtures

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/go-go-golems/turnloop/pkg/events"
)

// NDJSONSink writes every event as one JSON line.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w}
}

func (s *NDJSONSink) PublishEvent(e events.Event) error {
	b, err := json.Marshal(map[string]any{
		"type":  string(e.Type()),
		"event": e,
		"ts":    time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(b, '\n'))
	return err
}

var _ events.EventSink = (*NDJSONSink)(nil)
