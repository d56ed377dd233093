package blobreader

import "strings"

const separators = `/\`

// Belongs reports whether virtualPath lies under the mount prefix. The match
// is case-insensitive and must end on a path separator.
func (r *Reader) Belongs(virtualPath string) bool {
	return hasPrefixFold(virtualPath, r.cfg.Prefix)
}

// StripPrefix removes the mount prefix from virtualPath. Paths outside the
// mount are returned unchanged.
func (r *Reader) StripPrefix(virtualPath string) string {
	return stripPrefix(r.cfg.Prefix, virtualPath)
}

// Resolve returns the absolute object URL for virtualPath.
func (r *Reader) Resolve(virtualPath string) string {
	return ResolveURL(r.cfg.Prefix, virtualPath, r.store.BaseEndpoint())
}

// ResolveURL joins baseEndpoint and the part of virtualPath below prefix with
// exactly one separator between them.
func ResolveURL(prefix, virtualPath, baseEndpoint string) string {
	sub := strings.Trim(stripPrefix(prefix, virtualPath), separators)
	return strings.TrimRight(baseEndpoint, separators) + "/" + sub
}

func stripPrefix(prefix, virtualPath string) string {
	if !hasPrefixFold(virtualPath, prefix) {
		return virtualPath
	}
	return virtualPath[len(prefix):]
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return false
	}
	return len(s) == len(prefix) || strings.ContainsRune(separators, rune(s[len(prefix)]))
}
