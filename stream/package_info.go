// Package stream contains the destinations a finished report, or a traffic capture, can be
// written to.
package stream
