// Package capture records the HTTP traffic of tests. A Recorder wraps an http.RoundTripper (or
// sits behind a forwarding Proxy), reports every completed request/response pair, and keeps
// HAR entries that a HARLogger writes out as one artifact per test.
package capture

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"time"
	"unicode/utf8"
)

const (
	harVersion  = "1.2"
	creatorName = "test-report-aggregator"
)

// HAR is an HTTP Archive document.
type HAR struct {
	Log HARLog `json:"log"`
}

type HARLog struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []HAREntry `json:"entries"`
}

type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HAREntry struct {
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         HARTimings  `json:"timings"`
}

type HARNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HARRequest struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	HTTPVersion string         `json:"httpVersion"`
	Cookies     []HARNameValue `json:"cookies"`
	Headers     []HARNameValue `json:"headers"`
	QueryString []HARNameValue `json:"queryString"`
	PostData    *HARPostData   `json:"postData,omitempty"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int            `json:"bodySize"`
}

type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type HARResponse struct {
	Status      int            `json:"status"`
	StatusText  string         `json:"statusText"`
	HTTPVersion string         `json:"httpVersion"`
	Cookies     []HARNameValue `json:"cookies"`
	Headers     []HARNameValue `json:"headers"`
	Content     HARContent     `json:"content"`
	RedirectURL string         `json:"redirectURL"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int            `json:"bodySize"`
}

type HARContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// HARTimings are in milliseconds; -1 means not measured.
type HARTimings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

func newHAR(entries []HAREntry) HAR {
	if entries == nil {
		entries = []HAREntry{}
	}
	return HAR{Log: HARLog{
		Version: harVersion,
		Creator: HARCreator{Name: creatorName, Version: harVersion},
		Entries: entries,
	}}
}

func newHAREntry(req *http.Request, resp *http.Response, reqBody, respBody []byte, started, finished time.Time) HAREntry {
	elapsed := float64(finished.Sub(started)) / float64(time.Millisecond)
	e := HAREntry{
		StartedDateTime: started,
		Time:            elapsed,
		Request: HARRequest{
			Method:      req.Method,
			URL:         req.URL.String(),
			HTTPVersion: req.Proto,
			Cookies:     cookieValues(req.Cookies()),
			Headers:     headerValues(req.Header),
			QueryString: queryValues(req.URL.Query()),
			HeadersSize: -1,
			BodySize:    len(reqBody),
		},
		Response: HARResponse{
			Status:      resp.StatusCode,
			StatusText:  http.StatusText(resp.StatusCode),
			HTTPVersion: resp.Proto,
			Cookies:     cookieValues(resp.Cookies()),
			Headers:     headerValues(resp.Header),
			Content:     harContent(respBody, resp.Header.Get("Content-Type")),
			RedirectURL: resp.Header.Get("Location"),
			HeadersSize: -1,
			BodySize:    len(respBody),
		},
		Timings: HARTimings{Send: -1, Wait: elapsed, Receive: -1},
	}
	if e.Request.HTTPVersion == "" {
		e.Request.HTTPVersion = "HTTP/1.1"
	}
	if len(reqBody) > 0 {
		e.Request.PostData = &HARPostData{MimeType: req.Header.Get("Content-Type"), Text: string(reqBody)}
	}
	return e
}

func harContent(body []byte, mimeType string) HARContent {
	c := HARContent{Size: len(body), MimeType: mimeType}
	if len(body) == 0 {
		return c
	}
	if utf8.Valid(body) {
		c.Text = string(body)
	} else {
		c.Text = base64.StdEncoding.EncodeToString(body)
		c.Encoding = "base64"
	}
	return c
}

func headerValues(h http.Header) []HARNameValue {
	ret := []HARNameValue{}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			ret = append(ret, HARNameValue{Name: k, Value: v})
		}
	}
	return ret
}

func queryValues(q url.Values) []HARNameValue {
	return headerValues(http.Header(q))
}

func cookieValues(cookies []*http.Cookie) []HARNameValue {
	ret := []HARNameValue{}
	for _, c := range cookies {
		ret = append(ret, HARNameValue{Name: c.Name, Value: c.Value})
	}
	return ret
}
