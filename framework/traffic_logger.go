package framework

// TrafficLogger records the network traffic of one test at a time. Start begins a capture;
// Write ends it and persists it, returning the path of the stored artifact, or "" if no
// capture was started.
type TrafficLogger interface {
	Start() error
	Write() (string, error)
}
