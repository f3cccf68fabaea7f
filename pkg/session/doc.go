// Package session defines the Session value object: one attacker<->container
// proxy pairing, its two sockets, and its lifecycle state machine. A Session
// does not hold or join its two copier goroutines; the Connection Manager in
// pkg/honeypot starts them and waits for them through its own WaitGroup.
// The package is deliberately inert: its only lock guards a Session's own
// state field, and it makes no teardown decisions of its own; the
// Connection Manager is the sole owner of the session table and the
// critical section that tears a Session down.
package session
