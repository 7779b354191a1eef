// Package logging provides a simple leveled logging interface for the
// photo album image pipeline.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true) and can be overridden at startup with SetLevel. Components
// that log a lot use For to get a Logger that prefixes their name.
package logging
