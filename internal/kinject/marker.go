package kinject

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"
)

// MarkerOrigin tells which annotation marked a constructor.
// Both origins mean the same thing to the resolver.
type MarkerOrigin int

const (
	OriginNone MarkerOrigin = iota
	// OriginDirective is the native //kinject:inject directive.
	OriginDirective
	// OriginAutowire is the // @autowire annotation understood by autowire style generators.
	OriginAutowire
)

func (o MarkerOrigin) String() string {
	switch o {
	case OriginDirective:
		return directivePrefix + directiveInject
	case OriginAutowire:
		return autowireTag
	default:
		return "none"
	}
}

// Marker is a parsed injection marker.
type Marker struct {
	Origin MarkerOrigin
	// New names the constructor of a marked type.
	New string
	// As lists interfaces the constructed value is also bound to.
	As []string
	// Scoped shares the constructed value across one component call.
	Scoped bool
	Pos    token.Pos
	// Text is the raw comment, kept for diagnostics.
	Text string
}

// ParseMarker returns the injection marker in doc, or nil when doc carries none.
func ParseMarker(doc *ast.CommentGroup) (*Marker, error) {
	if doc == nil {
		return nil, nil
	}

	var found *Marker
	for _, c := range doc.List {
		m, err := parseMarkerComment(c)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}

		if found != nil {
			return nil, &InvalidAnnotationError{
				Pos:        c.Slash,
				Annotation: c.Text,
				Reason:     fmt.Sprintf("declaration is already marked with %s", found.Origin),
			}
		}
		found = m
	}

	return found, nil
}

func parseMarkerComment(c *ast.Comment) (*Marker, error) {
	text := c.Text

	if rest, ok := strings.CutPrefix(text, directivePrefix); ok {
		return parseDirective(c, rest)
	}

	if !strings.HasPrefix(text, "//") {
		return nil, nil
	}

	body := strings.TrimSpace(text[2:])
	rest, ok := strings.CutPrefix(body, autowireTag)
	if !ok {
		return nil, nil
	}

	return parseAutowire(c, rest)
}

// parseDirective parses the part after "//kinject:", e.g. "inject new=NewFoo as=IFoo".
func parseDirective(c *ast.Comment, rest string) (*Marker, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 || fields[0] != directiveInject {
		return nil, &InvalidAnnotationError{
			Pos:        c.Slash,
			Annotation: c.Text,
			Reason:     "unknown directive, expected " + directivePrefix + directiveInject,
		}
	}
	// "//kinject:injectfoo" is a different directive
	if !strings.HasPrefix(rest, directiveInject+" ") && rest != directiveInject {
		return nil, &InvalidAnnotationError{
			Pos:        c.Slash,
			Annotation: c.Text,
			Reason:     "unknown directive, expected " + directivePrefix + directiveInject,
		}
	}

	m := &Marker{
		Origin: OriginDirective,
		Pos:    c.Slash,
		Text:   c.Text,
	}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, &InvalidAnnotationError{
				Pos:        c.Slash,
				Annotation: c.Text,
				Reason:     fmt.Sprintf("option %q is not key=value", field),
			}
		}
		if err := m.setOption(c, key, value); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// parseAutowire parses the part after "@autowire", e.g. "(set=struct,new=NewFoo,IFoo)".
// Bare entries inside the parentheses are interface names, as autowire generators use them.
func parseAutowire(c *ast.Comment, rest string) (*Marker, error) {
	m := &Marker{
		Origin: OriginAutowire,
		Pos:    c.Slash,
		Text:   c.Text,
	}

	switch {
	case rest == "":
		return m, nil
	case rest[0] == '.':
		return nil, &InvalidAnnotationError{
			Pos:        c.Slash,
			Annotation: c.Text,
			Reason:     "autowire variants are not supported, use " + autowireTag,
		}
	case rest[0] == ' ' || rest[0] == '\t':
		// "@autowire followed by prose" is still a plain marker
		return m, nil
	case rest[0] != '(':
		// "@autowired" or similar is not ours
		return nil, nil
	}

	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return nil, &InvalidAnnotationError{
			Pos:        c.Slash,
			Annotation: c.Text,
			Reason:     "missing closing parenthesis",
		}
	}
	if trailing := strings.TrimSpace(rest[end+1:]); trailing != "" {
		return nil, &InvalidAnnotationError{
			Pos:        c.Slash,
			Annotation: c.Text,
			Reason:     fmt.Sprintf("unexpected %q after options", trailing),
		}
	}

	for entry := range strings.SplitSeq(rest[1:end], ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			if !token.IsIdentifier(entry) {
				return nil, &InvalidAnnotationError{
					Pos:        c.Slash,
					Annotation: c.Text,
					Reason:     fmt.Sprintf("%q is not an interface name", entry),
				}
			}
			m.As = append(m.As, entry)
			continue
		}

		if err := m.setOption(c, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Marker) setOption(c *ast.Comment, key, value string) error {
	switch key {
	case "new":
		if !token.IsIdentifier(value) {
			return &InvalidAnnotationError{
				Pos:        c.Slash,
				Annotation: c.Text,
				Reason:     fmt.Sprintf("new=%q is not a function name", value),
			}
		}
		if m.New != "" {
			return &InvalidAnnotationError{
				Pos:        c.Slash,
				Annotation: c.Text,
				Reason:     "new is set twice",
			}
		}
		m.New = value
	case "as":
		if !token.IsIdentifier(value) {
			return &InvalidAnnotationError{
				Pos:        c.Slash,
				Annotation: c.Text,
				Reason:     fmt.Sprintf("as=%q is not an interface name", value),
			}
		}
		m.As = append(m.As, value)
	case "scope":
		if value != scopeComponent {
			return &InvalidAnnotationError{
				Pos:        c.Slash,
				Annotation: c.Text,
				Reason:     fmt.Sprintf("scope=%q is not supported, only scope=%s", value, scopeComponent),
			}
		}
		m.Scoped = true
	case "set":
		// autowire set grouping has no meaning here
	default:
		return &InvalidAnnotationError{
			Pos:        c.Slash,
			Annotation: c.Text,
			Reason:     fmt.Sprintf("unknown option %q", key),
		}
	}

	return nil
}
