// Package utils holds small one-off helpers that don't warrant a package
// of their own.
package utils

// Build metadata, stamped in via -ldflags at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
