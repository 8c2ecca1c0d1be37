// Package mmap maps index files read-only so LocalStore can hand the loader
// a byte slice instead of copying through read calls. Decoded structures
// never alias the mapping, which may be closed once loading returns.
package mmap
