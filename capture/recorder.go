package capture

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httputil"
	"sync"
	"time"

	"github.com/launchdarkly/test-report-aggregator/logging"
)

// Transaction is one completed request/response pair, in its raw wire form.
type Transaction struct {
	Method   string
	URL      string
	Request  []byte
	Response []byte
}

// Recorder is an http.RoundTripper that reports every completed exchange to a callback and,
// while capturing, accumulates HAR entries for it.
type Recorder struct {
	transport  http.RoundTripper
	onComplete func(Transaction)
	logger     logging.Logger
	now        func() time.Time
	capturing  bool
	entries    []HAREntry
	lock       sync.Mutex
}

// NewRecorder creates a Recorder that delegates to transport, or to http.DefaultTransport if
// transport is nil. The onComplete callback may be nil.
func NewRecorder(transport http.RoundTripper, onComplete func(Transaction), logger logging.Logger) *Recorder {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Recorder{
		transport:  transport,
		onComplete: onComplete,
		logger:     logger,
		now:        time.Now,
	}
}

// RoundTrip implements http.RoundTripper. The response body is read fully before it is returned,
// so it is not suitable for streaming responses.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		reqBody = data
		if len(data) == 0 {
			req.Body = http.NoBody
		} else {
			req.Body = io.NopCloser(bytes.NewReader(data))
		}
	}
	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		return nil, err
	}

	started := r.now()
	resp, err := r.transport.RoundTrip(req)
	if err != nil {
		r.logger.Printf("Request %s %s failed: %s", req.Method, req.URL, err)
		return nil, err
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	finished := r.now()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	respDump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	r.lock.Lock()
	if r.capturing {
		r.entries = append(r.entries, newHAREntry(req, resp, reqBody, respBody, started, finished))
	}
	r.lock.Unlock()

	if r.onComplete != nil {
		r.onComplete(Transaction{
			Method:   req.Method,
			URL:      req.URL.String(),
			Request:  reqDump,
			Response: respDump,
		})
	}
	return resp, nil
}

// StartCapture discards any accumulated entries and begins accumulating new ones.
func (r *Recorder) StartCapture() {
	r.lock.Lock()
	r.capturing = true
	r.entries = nil
	r.lock.Unlock()
}

// StopCapture stops accumulating entries and returns what was accumulated. The second return
// value is false if capturing was not active.
func (r *Recorder) StopCapture() ([]HAREntry, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	wasCapturing := r.capturing
	ret := r.entries
	r.capturing = false
	r.entries = nil
	return ret, wasCapturing
}

// Client returns an http.Client whose requests go through the Recorder.
func (r *Recorder) Client() *http.Client {
	return &http.Client{Transport: r}
}
