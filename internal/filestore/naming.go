package filestore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CleanName returns name unchanged when it is a plain base name that can be
// used as an artifact key.
func CleanName(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	return name, nil
}

// baseName strips any client-supplied directory part.
func baseName(original string) string {
	original = strings.ReplaceAll(original, `\`, "/")
	if i := strings.LastIndex(original, "/"); i >= 0 {
		original = original[i+1:]
	}
	return original
}

func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

var lastStamp atomic.Int64

// UniqueStamp returns now in unix nanoseconds, moved past every stamp this
// process has already handed out. Two calls never return the same value.
func UniqueStamp(now time.Time) int64 {
	n := now.UnixNano()
	for {
		last := lastStamp.Load()
		next := n
		if next <= last {
			next = last + 1
		}
		if lastStamp.CompareAndSwap(last, next) {
			return next
		}
	}
}

// UploadName is the stored name of an uploaded source file:
// "<name without extension>-<unique unix nanos><extension>".
func UploadName(original string, now time.Time) string {
	stem, ext := splitExt(sanitize(baseName(original)))
	if stem == "" {
		stem = "upload"
	}
	return fmt.Sprintf("%s-%d%s", stem, UniqueStamp(now), ext)
}

// ConvertedName is the user-facing name of a conversion result: the original
// base name without its extension, a dot, and the target format.
func ConvertedName(original, format string) string {
	stem, _ := splitExt(stripControl(baseName(original)))
	if strings.Trim(stem, ". ") == "" {
		stem = "converted-file"
	}
	return stem + "." + strings.TrimPrefix(strings.ToLower(format), ".")
}

// DownloadName is the stored name of a conversion result:
// "<unique unix nanos>-<display name>". DisplayName reverses it.
func DownloadName(display string, now time.Time) string {
	key := collapseDots(stripControl(display))
	if key == "" {
		key = "converted-file"
	}
	return fmt.Sprintf("%d-%s", UniqueStamp(now), key)
}

// stripControl drops control characters and path separators.
func stripControl(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '/' || r == '\\' {
			return -1
		}
		return r
	}, name)
}

// MergedName is the stored name of a merge result.
func MergedName(now time.Time) string {
	return fmt.Sprintf("merged_document_%d.pdf", UniqueStamp(now))
}

// EditName is the editor file id: a random prefix plus the sanitized original name.
func EditName(original string) string {
	name := sanitize(baseName(original))
	if name == "" {
		name = "document.pdf"
	}
	return uuid.NewString() + "-" + name
}

// sanitize replaces whitespace and characters that are awkward in a URL path
// segment or a Content-Disposition header.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		case r == '"' || r == '/' || r == '\\' || r == '?' || r == '#' || r == '%' || r < 0x20:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return collapseDots(b.String())
}

// collapseDots squeezes runs of dots so CleanName accepts the result.
func collapseDots(name string) string {
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	return strings.Trim(name, ".")
}

// CompressedName is the stored name of a compression result.
func CompressedName(original string, now time.Time) string {
	stem, _ := splitExt(sanitize(baseName(original)))
	if stem == "" {
		stem = "document"
	}
	return fmt.Sprintf("%s_compressed_%d.pdf", stem, UniqueStamp(now))
}

// SplitArchiveName is the stored name of the zip holding a split's parts.
func SplitArchiveName(original string, now time.Time) string {
	stem, _ := splitExt(sanitize(baseName(original)))
	if stem == "" {
		stem = "document"
	}
	return fmt.Sprintf("%s_split_%d.zip", stem, UniqueStamp(now))
}

// DisplayName drops the "<unix nanos>-" prefix that keeps handed-off
// conversion results unique, so the attachment carries the user-facing name.
func DisplayName(stored string) string {
	prefix, rest, ok := strings.Cut(stored, "-")
	if !ok || len(prefix) < 13 || rest == "" {
		return stored
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return stored
		}
	}
	return rest
}
