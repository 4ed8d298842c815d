// Package macro extracts checktask directive blocks from document text and
// serializes them back. It implements only the block-level contract
//
//	{{checktask id="..." dueDate="..." responsible="a,b" reminderTimes="h1,d2"}}
//	task description
//	{{/checktask}}
//
// not the surrounding markup grammar, which belongs to the host.
package macro

import (
	"regexp"
	"strings"
)

// Directive parameter names.
const (
	ParamID            = "id"
	ParamDueDate       = "dueDate"
	ParamResponsible   = "responsible"
	ParamReminderTimes = "reminderTimes"
	ParamDone          = "done"
)

// Marker is the opening token whose absence lets callers skip parsing
// entirely.
const Marker = "{{checktask"

var (
	blockRe = regexp.MustCompile(`(?s)\{\{checktask\b([^}]*)\}\}(.*?)\{\{/checktask\}\}`)
	paramRe = regexp.MustCompile(`([A-Za-z][A-Za-z0-9]*)\s*=\s*"((?:[^"\\]|\\.)*)"`)
)

// Block is one parsed checktask directive. Blocks are ephemeral: they live
// for a single sync pass and carry enough positional information to be
// written back into the source text.
type Block struct {
	Content string

	params map[string]string
	order  []string
	start  int
	end    int
	dirty  bool
}

// Param returns the named parameter, or "" when absent.
func (b *Block) Param(name string) string {
	return b.params[name]
}

// SetParam sets a parameter and marks the block for write-back. New
// parameters are appended after the existing ones.
func (b *Block) SetParam(name, value string) {
	if _, ok := b.params[name]; !ok {
		b.order = append(b.order, name)
	}
	b.params[name] = value
	b.dirty = true
}

// Dirty reports whether the block was modified since extraction.
func (b *Block) Dirty() bool {
	return b.dirty
}

// HasMarker reports whether the content contains any checktask opening
// token. Scanning for the marker is cheaper than extracting blocks, so
// callers use it to short-circuit documents without directives.
func HasMarker(content string) bool {
	return strings.Contains(content, Marker)
}

// Extract parses all checktask blocks from the content, in order of
// appearance.
func Extract(content string) []*Block {
	matches := blockRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]*Block, 0, len(matches))
	for _, m := range matches {
		rawParams := content[m[2]:m[3]]
		body := content[m[4]:m[5]]
		b := &Block{
			Content: strings.TrimSpace(body),
			params:  make(map[string]string),
			start:   m[0],
			end:     m[1],
		}
		for _, pm := range paramRe.FindAllStringSubmatch(rawParams, -1) {
			name, value := pm[1], unescape(pm[2])
			if _, ok := b.params[name]; !ok {
				b.order = append(b.order, name)
			}
			b.params[name] = value
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// Render writes modified blocks back into the original content, leaving all
// surrounding text untouched. Blocks must originate from Extract on the same
// content.
func Render(content string, blocks []*Block) string {
	dirty := false
	for _, b := range blocks {
		if b.dirty {
			dirty = true
			break
		}
	}
	if !dirty {
		return content
	}

	var sb strings.Builder
	sb.Grow(len(content) + 32*len(blocks))
	prev := 0
	for _, b := range blocks {
		sb.WriteString(content[prev:b.start])
		if b.dirty {
			sb.WriteString(b.serialize())
		} else {
			sb.WriteString(content[b.start:b.end])
		}
		prev = b.end
	}
	sb.WriteString(content[prev:])
	return sb.String()
}

func (b *Block) serialize() string {
	var sb strings.Builder
	sb.WriteString(Marker)
	for _, name := range b.order {
		sb.WriteByte(' ')
		sb.WriteString(name)
		sb.WriteString(`="`)
		sb.WriteString(escape(b.params[name]))
		sb.WriteByte('"')
	}
	sb.WriteString("}}\n")
	sb.WriteString(b.Content)
	sb.WriteString("\n{{/checktask}}")
	return sb.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
