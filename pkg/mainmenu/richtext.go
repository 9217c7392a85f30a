package mainmenu

import (
	"strconv"
	"strings"
)

// T is rich text ready for the menu. Values of type T are treated as already
// safe; build them with the helpers below.
type T string

func (t T) String() string { return string(t) }

// NoParse keeps the subsystem from interpreting tags inside s.
func NoParse(s string) T {
	if !strings.ContainsAny(s, "<>") {
		return T(s)
	}
	return T("<noparse>" + strings.ReplaceAll(s, "</noparse>", "") + "</noparse>")
}

// Raw marks s as already-safe rich text.
func Raw(s string) T { return T(s) }

func wrap(open, end string, inner T) T { return T("<" + open + ">" + inner.String() + "</" + end + ">") }

func B(s string) T { return wrap("b", "b", NoParse(s)) }
func I(s string) T { return wrap("i", "i", NoParse(s)) }

func Color(color string, inner T) T {
	return wrap("color="+strings.TrimSpace(color), "color", inner)
}

func Size(n int, inner T) T {
	return wrap("size="+strconv.Itoa(n), "size", inner)
}

// Join concatenates non-empty parts with sep.
func Join(sep string, parts ...T) T {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return T(strings.Join(ss, sep))
}
