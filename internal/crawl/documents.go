package crawl

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const maxFilenameLength = 100

// documentExtensions lists the resource types collected as documents rather than pages.
var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".txt":  true,
	".rtf":  true,
	".odt":  true,
	".ods":  true,
	".odp":  true,
	".epub": true,
	".zip":  true,
}

// documentContentTypes maps non-HTML response types to a file extension.
var documentContentTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.ms-excel":      ".xls",
	"application/vnd.ms-powerpoint": ".ppt",
	"application/zip":               ".zip",
	"application/epub+zip":          ".epub",
	"text/csv":                      ".csv",
}

// IsDocumentURL reports whether rawURL points at a downloadable document.
func IsDocumentURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return documentExtensions[strings.ToLower(path.Ext(u.Path))]
}

// SafeFilename derives an archive entry name from a document URL.
// The result only contains [A-Za-z0-9._-], never starts with a dot and keeps the extension.
// index is used for the fallback name when the URL has no usable base name.
func SafeFilename(rawURL string, index int) string {
	return safeFilename(rawURL, index, "")
}

// safeFilename is SafeFilename with an extension used when the URL path carries none.
func safeFilename(rawURL string, index int, fallbackExt string) string {
	var base string
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
	}

	ext := strings.ToLower(path.Ext(base))
	if !documentExtensions[ext] {
		ext = fallbackExt
	}

	name := sanitize(strings.TrimSuffix(base, path.Ext(base)))
	if name == "" {
		name = fmt.Sprintf("document-%d", index)
	}

	if limit := maxFilenameLength - len(ext); len(name) > limit {
		name = name[:limit]
	}

	return name + ext
}

func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := strings.TrimLeft(sb.String(), "._")
	out = strings.TrimRight(out, "._")
	if strings.Trim(out, "_") == "" {
		return ""
	}
	return out
}
