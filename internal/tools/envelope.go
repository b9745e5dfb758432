package tools

import "fmt"

// Content is one typed text block inside an Envelope.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Envelope is the uniform result shape every tool returns, success or
// failure. IsError true means the operation could not complete its contract;
// the content then carries a human-readable diagnostic.
type Envelope struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

func Text(text string) Envelope {
	return Envelope{Content: []Content{{Type: "text", Text: text}}}
}

func Textf(format string, args ...any) Envelope {
	return Text(fmt.Sprintf(format, args...))
}

func Error(text string) Envelope {
	return Envelope{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

func Errorf(format string, args ...any) Envelope {
	return Error(fmt.Sprintf(format, args...))
}

// FirstText returns the text of the first content block, for logging and
// tests. Empty envelope yields "".
func (e Envelope) FirstText() string {
	if len(e.Content) == 0 {
		return ""
	}
	return e.Content[0].Text
}
