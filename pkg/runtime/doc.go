// Package runtime is the Container Runtime Adapter: a thin abstraction over
// the Docker Engine API exposing exactly the capability set the Connection
// Manager needs (launch, get, stop, image presence/pull) so the core never
// depends on engine internals.
package runtime
