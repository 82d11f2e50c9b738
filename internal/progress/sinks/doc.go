// Package sinks contains progress.Sink implementations that log events and
// feed Prometheus collectors.
package sinks
