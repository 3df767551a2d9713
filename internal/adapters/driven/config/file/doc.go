// Package file provides the TOML configuration store.
//
// Configuration lives in ~/.lexharvest/config.toml. Secrets may instead be
// supplied through the environment or a .env file next to it; see envKeys.
package file
