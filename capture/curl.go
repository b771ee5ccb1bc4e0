package capture

import (
	"bufio"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
)

// CurlCommand builds a shell command line that replays a request. The raw request is parsed for
// headers and body if possible; otherwise only the method and URL are used.
func CurlCommand(method, url, rawRequest string) string {
	args := []string{"curl", "-X", method}
	if req, err := http.ReadRequest(bufio.NewReader(strings.NewReader(rawRequest))); err == nil {
		keys := make([]string, 0, len(req.Header))
		for k := range req.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "Content-Length" || k == "Accept-Encoding" {
				continue
			}
			for _, v := range req.Header[k] {
				args = append(args, "-H", k+": "+v)
			}
		}
		if body, err := io.ReadAll(req.Body); err == nil && len(body) > 0 {
			args = append(args, "--data-binary", string(body))
		}
	}
	args = append(args, url)
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}
