package workspace

import "strings"

// Normalize cleans a model-proposed relative path. It strips leading slashes,
// "./" and any number of leading "<workspaceName>/" prefixes (models tend to
// echo the folder name once or twice). When that leaves nothing, or only the
// workspace name, it falls back to at most the last two non-empty segments of
// the original string.
//
// Normalize does not reject ".." segments or drive letters; Resolve does.
// Normalize(Normalize(p)) == Normalize(p) for every p.
func Normalize(raw, workspaceName string) string {
	original := strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/")
	prefix := workspaceName + "/"

	p := original
	for {
		prev := p
		p = strings.TrimLeft(strings.TrimSpace(p), "/")
		p = strings.TrimPrefix(p, "./")
		if workspaceName != "" {
			p = strings.TrimPrefix(p, prefix)
		}
		if p == prev {
			break
		}
	}

	if p != "" && p != workspaceName {
		return p
	}

	var segments []string
	for _, s := range strings.Split(original, "/") {
		s = strings.TrimSpace(s)
		if s != "" && s != "." {
			segments = append(segments, s)
		}
	}
	if len(segments) > 2 {
		segments = segments[len(segments)-2:]
	}
	return strings.Join(segments, "/")
}
