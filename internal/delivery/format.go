package delivery

import (
	"strconv"
	"strings"
)

// Format renders m the way it appears in the menu:
//
//	<size=25><color=red><b>[QModManager]:</b> text</color></size>
//
// With Autoformat off the text is returned unchanged.
func Format(m Message) string {
	if !m.Autoformat {
		return m.Text
	}
	size := m.Size
	if size <= 0 {
		size = DefaultSize
	}
	color := strings.TrimSpace(m.Color)
	if color == "" {
		color = DefaultColor
	}
	caller := strings.TrimSpace(m.CallerID)
	if caller == "" {
		caller = DefaultCaller
	}

	var b strings.Builder
	b.Grow(len(m.Text) + len(caller) + len(color) + 48)
	b.WriteString("<size=")
	b.WriteString(strconv.Itoa(size))
	b.WriteString("><color=")
	b.WriteString(color)
	b.WriteString("><b>[")
	b.WriteString(caller)
	b.WriteString("]:</b> ")
	b.WriteString(m.Text)
	b.WriteString("</color></size>")
	return b.String()
}
