// Package parser extracts front matter and wikilinks from Markdown content.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// wikilinkRe matches [[target]] where target holds no brackets or newlines.
// Unclosed or nested openers simply fail to match.
var wikilinkRe = regexp.MustCompile(`\[\[([^\[\]\n]*)\]\]`)

const delim = "---"

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
}

// Parse extracts front matter, body, and wikilinks from raw Markdown bytes.
// It never fails on malformed input: bad YAML leaves everything in the body.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       ExtractLinks(body),
	}
}

// ExtractLinks returns every [[target]] occurrence in body, in order of
// appearance, duplicates included. Targets are trimmed; case and inner
// whitespace are kept verbatim.
func ExtractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	var out []string
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		out = append(out, target)
	}
	return out
}

// Dedup returns links with repeats removed, keeping first appearance.
// Two targets are repeats when their normalized forms are equal.
func Dedup(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		k := Normalize(l)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Normalize returns the resolution key for a title or link target:
// surrounding whitespace trimmed, Unicode case folded.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// splitFrontmatter separates YAML front matter (between leading --- delimiters)
// from the Markdown body. If no front matter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) && !bytes.HasPrefix(data, []byte(delim+"\r\n")) {
		return nil, string(data)
	}

	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	after := rest[idx+1+len(delim):]
	// The closing delimiter must end its line.
	switch {
	case len(after) == 0:
	case after[0] == '\n':
		after = after[1:]
	case bytes.HasPrefix(after, []byte("\r\n")):
		after = after[2:]
	default:
		return nil, string(data)
	}
	// One blank separator line belongs to the header, not the body.
	after = bytes.TrimPrefix(after, []byte("\n"))

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, string(after)
}

// Compose renders front matter followed by body. A nil or empty map yields
// the body unchanged.
func Compose(fm map[string]any, body string) ([]byte, error) {
	if len(fm) == 0 {
		return []byte(body), nil
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(header)
	buf.WriteString(delim + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
