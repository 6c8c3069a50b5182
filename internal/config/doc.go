// Package config persists per-installation settings and resolves the
// directories Bankero reads and writes.
//
// The config file is YAML at <config_dir>/config.yaml and is validated
// against an embedded CUE schema on every load and save. Transports never
// read this package's state directly; the CLI copies the values they need
// into explicit configuration structs.
package config
