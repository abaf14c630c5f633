// Package hcl is the HCL implementation of the config package interfaces.
// It parses workflow files, validates them into the config model and binds
// step arguments and environment maps to Go values through go-cty.
package hcl
