package blocker

import (
	"net/url"
	"strings"
)

const (
	// MarkerStart opens the managed region of the hosts file.
	MarkerStart = "# >>> MonkMode block start >>>"
	// MarkerEnd closes the managed region of the hosts file.
	MarkerEnd = "# <<< MonkMode block end <<<"
	// RedirectAddress is where blocked domains resolve.
	RedirectAddress = "127.0.0.1"
	// LineEnding is written between every line of the hosts file.
	LineEnding = "\r\n"
)

// NormalizeDomain reduces user input such as "https://www.YouTube.com/feed"
// to a bare host ("youtube.com"). It returns "" for input that is not a host name.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return ""
	}

	if strings.Contains(d, "://") {
		u, err := url.Parse(d)
		if err != nil {
			return ""
		}
		d = u.Host
	}

	d, _, _ = strings.Cut(d, "/")
	d, _, _ = strings.Cut(d, ":")
	d = strings.TrimPrefix(d, "*.")
	d = strings.TrimPrefix(d, "www.")
	d = strings.Trim(d, ".")

	if d == "" || strings.ContainsAny(d, " \t#") {
		return ""
	}

	return d
}

// NormalizeDomains normalizes and de-duplicates domains, keeping input order.
func NormalizeDomains(domains []string) []string {
	seen := make(map[string]struct{}, len(domains))
	out := make([]string, 0, len(domains))

	for _, raw := range domains {
		d := NormalizeDomain(raw)
		if d == "" {
			continue
		}

		if _, dup := seen[d]; dup {
			continue
		}

		seen[d] = struct{}{}
		out = append(out, d)
	}

	return out
}

// BuildRegion returns the marked region lines redirecting each domain and its
// www subdomain. Domains must already be normalized.
func BuildRegion(domains []string) []string {
	lines := make([]string, 0, len(domains)*2+2)
	lines = append(lines, MarkerStart)

	for _, d := range domains {
		lines = append(lines,
			RedirectAddress+" "+d,
			RedirectAddress+" www."+d,
		)
	}

	return append(lines, MarkerEnd)
}

// HasRegion reports whether content contains a managed region.
func HasRegion(content string) bool {
	lines, _ := splitLines(content)
	for _, l := range lines {
		if strings.TrimSpace(l) == MarkerStart {
			return true
		}
	}

	return false
}

// StripRegion removes every managed region from content. Everything else is
// kept, with line endings normalized to CRLF.
func StripRegion(content string) string {
	lines, trailing := splitLines(content)
	return joinLines(stripLines(lines), trailing)
}

// ApplyRegion returns content with any existing managed region replaced by one
// blocking domains, appended at the end. Applying twice with different domain
// lists leaves only the second region. An empty domain list only strips.
func ApplyRegion(content string, domains []string) string {
	lines, trailing := splitLines(content)
	lines = stripLines(lines)

	if len(domains) > 0 {
		lines = append(lines, BuildRegion(domains)...)
	}

	return joinLines(lines, trailing)
}

// RegionDomains returns the domains currently redirected by the managed region.
func RegionDomains(content string) []string {
	lines, _ := splitLines(content)

	var domains []string
	in := false

	for _, l := range lines {
		t := strings.TrimSpace(l)

		switch {
		case t == MarkerStart:
			in = true
		case t == MarkerEnd:
			in = false
		case in:
			fields := strings.Fields(t)
			if len(fields) == 2 && !strings.HasPrefix(fields[1], "www.") {
				domains = append(domains, fields[1])
			}
		}
	}

	return domains
}

// splitLines splits content on LF or CRLF and reports whether it ended with a newline.
func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	trailing := strings.HasSuffix(content, "\n")

	return strings.Split(strings.TrimSuffix(content, "\n"), "\n"), trailing
}

func joinLines(lines []string, trailing bool) string {
	if len(lines) == 0 {
		return ""
	}

	s := strings.Join(lines, LineEnding)
	if trailing {
		s += LineEnding
	}

	return s
}

// stripLines drops marker lines and everything between them. An unterminated
// region (a crash mid-write) runs to the end of the file.
func stripLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	in := false

	for _, l := range lines {
		t := strings.TrimSpace(l)

		switch {
		case t == MarkerStart:
			in = true
		case t == MarkerEnd:
			in = false
		case !in:
			out = append(out, l)
		}
	}

	return out
}
