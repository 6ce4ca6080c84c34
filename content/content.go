// Package content resolves a widget's initial text from its prioritized
// sources and applies the optional decode and dedent passes.
//
// Priority order, first non-empty source wins:
//
//  1. A controlled value (never decoded, never dedented).
//  2. A nested block explicitly tagged as source code.
//  3. The widget's own text content.
//  4. A fallback content attribute.
//
// Sources 2-4 get HTML entity decoding (so markup-like samples can be
// embedded without prematurely closing tags) and a dedent pass, each
// individually disableable.
package content

import "strings"

// Sources holds the candidate initial-text sources for one widget.
// Pointer fields distinguish "absent" from "present but empty".
type Sources struct {
	// Value is the controlled value. It always wins when non-empty and is
	// passed through verbatim.
	Value *string

	// CodeBlock is a nested block tagged as source code, exact formatting
	// preserved by the host.
	CodeBlock *string

	// Text is the widget's own text content.
	Text string

	// Fallback is the content attribute.
	Fallback *string
}

// Options controls the decode and dedent passes applied to non-controlled
// sources.
type Options struct {
	// NoDecode disables entity decoding (the nolt modifier).
	NoDecode bool

	// Extended enables the full entity set instead of just &lt;.
	Extended bool

	// NoDedent disables the dedent pass (the notrim modifier).
	NoDedent bool
}

// Resolve picks the initial text per the priority order and applies the
// configured passes. An all-empty Sources resolves to the empty string.
func Resolve(src Sources, opt Options) string {
	if src.Value != nil && *src.Value != "" {
		return *src.Value
	}

	var text string
	switch {
	case src.CodeBlock != nil && *src.CodeBlock != "":
		text = *src.CodeBlock
	case src.Text != "":
		text = src.Text
	case src.Fallback != nil && *src.Fallback != "":
		text = *src.Fallback
	default:
		return ""
	}

	if !opt.NoDecode {
		text = DecodeEntities(text, opt.Extended)
	}
	if !opt.NoDedent {
		text = Dedent(text)
	}
	return text
}

// extendedEntities is applied in listed order; &amp; goes last so freshly
// produced ampersands are not re-decoded.
var extendedEntities = [...][2]string{
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
	{"&#x27;", "'"},
	{"&#x2F;", "/"},
	{"&amp;", "&"},
}

// DecodeEntities decodes the fixed small entity set. By default only &lt; is
// decoded, which is enough to embed closing tags in markup hosts; extended
// adds the rest of the set.
func DecodeEntities(s string, extended bool) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	if !extended {
		return s
	}
	for _, e := range extendedEntities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return s
}

// Dedent removes the minimum common leading whitespace shared by all
// non-blank lines, preserving relative indentation. Blank lines neither
// contribute to nor receive the trim. All-blank input is returned unchanged
// (the minimum-indent sentinel is never updated).
func Dedent(s string) string {
	lines := strings.Split(s, "\n")

	min := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := 0
		for indent < len(line) && (line[indent] == ' ' || line[indent] == '\t') {
			indent++
		}
		if min < 0 || indent < min {
			min = indent
		}
	}
	if min <= 0 {
		return s
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = line[min:]
	}
	return strings.Join(lines, "\n")
}
