package pipeline

import "strings"

// rewritePath implements the path-rewrite law from spec.md §4.2/§8: given
// the inbound path and an optional configured rewrite prefix R, strip R
// when present as a leading literal prefix, collapsing an empty
// remainder to "/". The query string is handled separately by the
// caller; it is always appended verbatim regardless of rewrite.
func rewritePath(originalPath, rewritePrefix string) string {
	if rewritePrefix == "" {
		return originalPath
	}
	if !strings.HasPrefix(originalPath, rewritePrefix) {
		return originalPath
	}
	remainder := originalPath[len(rewritePrefix):]
	if remainder == "" {
		return "/"
	}
	if !strings.HasPrefix(remainder, "/") {
		remainder = "/" + remainder
	}
	return remainder
}
