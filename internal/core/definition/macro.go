package definition

import (
	"strings"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// Macros is a macro scope.
type Macros map[string]string

// ParseMacros parses "A=1,B=2". Whitespace around names and values is
// trimmed. An empty string yields an empty scope.
func ParseMacros(s string) (Macros, error) {
	m := Macros{}
	s = strings.TrimSpace(s)
	if s == "" {
		return m, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, domain.ErrDefinitionParse.WithDetailsf("bad macro definition %q", part)
		}
		m[k] = strings.TrimSpace(v)
	}
	return m, nil
}

// With returns a new scope with o layered over m.
func (m Macros) With(o Macros) Macros {
	out := make(Macros, len(m)+len(o))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Expand substitutes $(NAME) and ${NAME}. Undefined names are an error.
func (m Macros) Expand(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' || i+1 >= len(s) || (s[i+1] != '(' && s[i+1] != '{') {
			b.WriteByte(c)
			continue
		}
		closer := byte(')')
		if s[i+1] == '{' {
			closer = '}'
		}
		end := strings.IndexByte(s[i+2:], closer)
		if end < 0 {
			return "", domain.ErrDefinitionParse.WithDetailsf("unterminated macro in %q", s)
		}
		name := s[i+2 : i+2+end]
		v, ok := m[name]
		if !ok {
			return "", domain.ErrDefinitionParse.WithDetailsf("undefined macro %q", name)
		}
		b.WriteString(v)
		i += end + 2
	}
	return b.String(), nil
}
