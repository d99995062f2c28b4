package fixtures

import (
	"net/http"
	"strings"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/pkg/errors"
)

// NewCassette returns an http.RoundTripper recording provider traffic to, or
// replaying it from, the cassette at path (".yaml" is appended by the recorder).
// Call Stop on the recorder to flush a recording.
func NewCassette(path string, record bool, realTransport http.RoundTripper) (*recorder.Recorder, error) {
	path = strings.TrimSuffix(path, ".yaml")
	mode := recorder.ModeReplaying
	if record {
		mode = recorder.ModeRecording
	}
	r, err := recorder.NewAsMode(path, mode, realTransport)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open cassette %s", path)
	}
	return r, nil
}
