package funcs

import (
	"strings"
	"time"
)

// TemplateFuncs is shared by the text and html email templates.
var TemplateFuncs = map[string]any{
	"formatTime": formatTime,
	"upper":      strings.ToUpper,
}

func formatTime(t time.Time) string {
	return t.UTC().Format("02 Jan 2006 15:04 MST")
}
