// Package log wraps zerolog to produce the dispatcher's fixed
// "<app-name>: [<LEVEL>] <message>" log lines, written to the system log
// facility when it is reachable and to stderr otherwise, with
// per-honeypot/session/container scoped child loggers.
package log
