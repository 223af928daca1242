// Package file provides the TOML configuration store.
//
// The store lives at ~/.stash/config.toml unless a directory is given and
// can watch the file for edits so long-running commands pick up changes.
package file
