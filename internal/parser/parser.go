// Package parser imports Markdown into the block document model: YAML
// frontmatter, headings as wiki sections, inline emphasis as styles,
// [[wikilinks]] as link spans and #tags.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/starford/folio/internal/docmodel"
)

var (
	inlineRe  = regexp.MustCompile(`\*\*(.+?)\*\*|~~(.+?)~~|\*([^*\s][^*]*?)\*|\b_([^_]+?)_\b|\[\[(.*?)\]\]`)
	tagRe     = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	headingRe = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
)

// emphasis maps the capture groups of inlineRe to style names.
var emphasis = [...]string{1: "BOLD", 2: "STRIKETHROUGH", 3: "ITALIC", 4: "ITALIC"}

// Link is a [[target]] or [[target|text]] occurrence. The link text is the
// run [Offset, Offset+Length) of block Block, in runes.
type Link struct {
	Block  int
	Offset int
	Length int
	Target string
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Title       string
	Tags        []string
	Blocks      []docmodel.RawBlock
	Links       []Link
}

// Parse extracts frontmatter, title, tags, blocks and wikilinks from raw
// Markdown bytes. Block keys are left empty; Content assigns them.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Tags:        extractTags(body, fm),
	}
	r.parseBlocks(body)
	return r, nil
}

// Content builds a snapshot from the parsed blocks with fresh block keys.
func (r *Result) Content() (*docmodel.Content, error) {
	if len(r.Blocks) == 0 {
		return docmodel.New(), nil
	}
	keys := docmodel.New().NewKeys(len(r.Blocks))
	doc := docmodel.RawDocument{Blocks: make([]docmodel.RawBlock, len(r.Blocks))}
	for i, b := range r.Blocks {
		b.Key = keys[i]
		doc.Blocks[i] = b
	}
	return docmodel.FromRaw(doc)
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the Markdown body. Without frontmatter the entire content
// is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole input as body.
		return nil, string(data), nil
	}
	return fm, body, nil
}

// parseBlocks turns every body line into a block. Headings become wiki
// sections; a single trailing newline does not produce an empty block.
func (r *Result) parseBlocks(body string) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return
	}
	for _, line := range strings.Split(body, "\n") {
		typ := docmodel.Unstyled
		var data docmodel.BlockData
		if m := headingRe.FindStringSubmatch(line); m != nil {
			typ = docmodel.WikiSection
			line = m[1]
			data.WikiSection = &docmodel.WikiSectionData{}
		}
		text, styles, links := parseInline(line)
		for i := range links {
			links[i].Block = len(r.Blocks)
		}
		r.Links = append(r.Links, links...)
		r.Blocks = append(r.Blocks, docmodel.RawBlock{
			Type:        typ,
			Text:        text,
			StyleRanges: styles,
			Data:        data,
		})
	}
}

// parseInline strips emphasis and wikilink markup from line and returns the
// plain text with its style ranges and link spans.
func parseInline(line string) (string, []docmodel.RawStyleRange, []Link) {
	var sb strings.Builder
	var styles []docmodel.RawStyleRange
	var links []Link
	runes := 0
	last := 0

	emit := func(s string) (int, int) {
		start := runes
		sb.WriteString(s)
		runes += utf8.RuneCountInString(s)
		return start, runes - start
	}

	for _, m := range inlineRe.FindAllStringSubmatchIndex(line, -1) {
		emit(line[last:m[0]])
		last = m[1]
		group := func(g int) (string, bool) {
			if m[2*g] < 0 {
				return "", false
			}
			return line[m[2*g]:m[2*g+1]], true
		}

		if inner, ok := group(5); ok {
			target, text := inner, inner
			if i := strings.Index(inner, "|"); i >= 0 {
				target, text = inner[:i], inner[i+1:]
			}
			target = strings.TrimSpace(target)
			if target == "" || text == "" {
				emit(line[m[0]:m[1]])
				continue
			}
			off, n := emit(text)
			links = append(links, Link{Offset: off, Length: n, Target: target})
			continue
		}

		for g := 1; g <= 4; g++ {
			if inner, ok := group(g); ok {
				off, n := emit(inner)
				styles = append(styles, docmodel.RawStyleRange{Offset: off, Length: n, Style: emphasis[g]})
				break
			}
		}
	}
	emit(line[last:])
	return sb.String(), styles, links
}

// extractTags collects #tags from body and from the frontmatter "tags"
// field.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	if raw, ok := fm["tags"]; ok {
		switch v := raw.(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise "".
func deriveTitle(fm map[string]interface{}, body string) string {
	if t, ok := fm["title"].(string); ok && t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
