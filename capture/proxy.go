package capture

import (
	"bytes"
	"io"
	"net/http"

	"github.com/launchdarkly/test-report-aggregator/logging"
)

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy is a forwarding HTTP proxy. Tests point their HTTP client at it, and every request it
// forwards goes through a Recorder. Only plain HTTP is supported; CONNECT tunnels are refused.
type Proxy struct {
	recorder *Recorder
	logger   logging.Logger
}

func NewProxy(recorder *Recorder, logger logging.Logger) *Proxy {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Proxy{recorder: recorder, logger: logger}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodConnect {
		p.logger.Printf("Refusing CONNECT request for %s", req.Host)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !req.URL.IsAbs() {
		if req.Method == http.MethodHead && req.URL.Path == "/" {
			w.WriteHeader(http.StatusOK) // used to check that we are listening
			return
		}
		p.logger.Printf("Received non-proxy request for %s", req.URL)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			p.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
	}

	outReq, err := http.NewRequestWithContext(req.Context(), req.Method, req.URL.String(), bytes.NewReader(body))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	outReq.Header = req.Header.Clone()
	removeHopByHopHeaders(outReq.Header)

	resp, err := p.recorder.RoundTrip(outReq)
	if err != nil {
		p.logger.Printf("Forwarding %s %s failed: %s", req.Method, req.URL, err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	removeHopByHopHeaders(header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func removeHopByHopHeaders(h http.Header) {
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
