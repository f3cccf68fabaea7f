// Package supervisor owns one Connection Manager per configured honeypot,
// pre-pulls container images, installs the shutdown signal handlers, and
// coordinates orderly startup and drain across every manager.
package supervisor
