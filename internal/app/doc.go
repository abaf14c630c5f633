// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the dispatch lifecycle of a job, decoupled
// from any specific entrypoint like a CLI or server.
package app
