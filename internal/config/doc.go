// Package config defines the workflow model shared by the loader, the
// registry validation and the executor: workflows, their triggers, their
// ordered steps and the optional concurrency group.
//
// The Loader and Converter interfaces keep the rest of the application
// independent of the HCL syntax; internal/hcl implements both.
package config
