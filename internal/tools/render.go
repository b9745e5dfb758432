package tools

import (
	"fmt"
	"strings"
)

const (
	glyphDir  = "📁"
	glyphFile = "📄"
)

// shortSHA truncates an opaque hash to 7 characters for display.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func draftTag(draft bool) string {
	if draft {
		return " [DRAFT]"
	}
	return ""
}

func renderFileLine(kind, path string, size int) string {
	if kind == "dir" {
		return fmt.Sprintf("%s %s/", glyphDir, path)
	}
	return fmt.Sprintf("%s %s (%d bytes)", glyphFile, path, size)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
