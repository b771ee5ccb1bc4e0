package servicedef

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/launchdarkly/test-report-aggregator/logging"
)

// IngestPathPrefix is the path under which an IngestEndpoint accepts events. Each event is
// posted to IngestPathPrefix + counter, where counter starts at 1 and increases by one per
// event, so that events sent concurrently are still handled in the order they were produced.
const IngestPathPrefix = "/events/"

const ingestQueueSize = 100

// IngestEndpoint is an HTTP handler that receives events from an engine and passes them to a
// handler function, one at a time, in counter order.
type IngestEndpoint struct {
	sortedMessages *MessageSortingQueue
	handle         func(Event)
	logger         logging.Logger
	done           chan struct{}
}

func NewIngestEndpoint(handle func(Event), logger logging.Logger) *IngestEndpoint {
	if logger == nil {
		logger = logging.NullLogger()
	}
	e := &IngestEndpoint{
		sortedMessages: NewMessageSortingQueue(ingestQueueSize),
		handle:         handle,
		logger:         logger,
		done:           make(chan struct{}),
	}
	go e.consumeMessages()
	return e
}

func (e *IngestEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK) // used by engines to check that we are listening
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, IngestPathPrefix) {
		e.logger.Printf("Received event for unrecognized URL path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	counter, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, IngestPathPrefix))
	if err != nil || counter < 1 {
		e.logger.Printf("Event request had invalid path %q", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var data []byte
	if r.Body != nil {
		data, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			e.logger.Printf("Error reading event request body: %s", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	status := http.StatusAccepted
	if _, err := ParseEvent(data); err != nil {
		// The counter is still consumed so that later events are not held back forever.
		e.logger.Printf("Rejected event %d: %s", counter, err)
		data = nil
		status = http.StatusBadRequest
	}
	if err := e.sortedMessages.Accept(counter, data); err != nil {
		e.logger.Printf("Rejected event %d: %s", counter, err)
		if errors.Is(err, ErrQueueClosed) {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusConflict)
		}
		return
	}
	w.WriteHeader(status)
}

func (e *IngestEndpoint) consumeMessages() {
	defer close(e.done)
	for data := range e.sortedMessages.C {
		if data == nil {
			continue
		}
		event, err := ParseEvent(data)
		if err != nil {
			e.logger.Printf("Malformed event data: %s", string(data))
			continue
		}
		e.handle(event)
	}
}

// Close stops accepting events and waits until every event already released has been handled.
// Events still waiting for a missing predecessor are discarded and logged.
func (e *IngestEndpoint) Close() {
	dropped := e.sortedMessages.Close()
	<-e.done
	for _, data := range dropped {
		if data != nil {
			e.logger.Printf("Discarded event that was waiting for an earlier counter: %s", string(data))
		}
	}
}
