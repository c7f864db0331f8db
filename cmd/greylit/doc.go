// Package main hosts the greylit CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon, processing-run control, session and result inspection,
// raw result imports, and configuration scaffolding. It centralizes
// configuration resolution and socket discovery so subcommands can focus on
// user experience instead of wiring. Read-only commands fall back to direct
// database access when the daemon is not running; anything that starts or
// cancels a run requires the daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
