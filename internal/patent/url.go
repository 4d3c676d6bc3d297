package patent

import "strings"

// DefaultSiteRoot is the public document site patents are collected from.
const DefaultSiteRoot = "https://patents.google.com"

// AbsoluteURL resolves a protocol-relative or root-relative reference against
// the site root. Absolute http(s) references are returned unchanged.
func AbsoluteURL(siteRoot, ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	}
	root := strings.TrimRight(siteRoot, "/")
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return root + ref
}
