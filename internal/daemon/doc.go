// Package daemon ties the processing pipeline, the store, and the transport
// servers into one long-running process.
//
// The daemon enforces single-instance execution through a lock file, fails
// over abandoned runs on startup, and exposes operations to the IPC and HTTP
// layers. Read operations go straight to the store and keep working while
// processing is stopped; Process and CancelRun require a started daemon.
package daemon
