// ABOUTME: Minimal HTML to plain-text conversion for clipped article pages
// ABOUTME: Drops script/style subtrees, keeps block structure as line breaks

package clip

import (
	"strconv"
	"strings"
)

// Tags whose entire subtree is noise for a text clip.
var skipSubtreeTags = []string{"script", "style", "noscript", "svg", "iframe"}

// Tags that imply a line break in the extracted text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"blockquote": true, "pre": true, "ul": true, "ol": true, "table": true,
}

// htmlToText converts an HTML document into readable plain text: script-like
// subtrees removed, block boundaries turned into newlines, all other tags
// dropped, entities decoded, and whitespace collapsed.
func htmlToText(doc string) string {
	for _, tag := range skipSubtreeTags {
		doc = dropSubtrees(doc, tag)
	}

	var b strings.Builder
	b.Grow(len(doc))
	for i := 0; i < len(doc); {
		if doc[i] != '<' {
			b.WriteByte(doc[i])
			i++
			continue
		}
		end := strings.IndexByte(doc[i:], '>')
		if end < 0 {
			break
		}
		if blockTags[tagName(doc[i:i+end+1])] {
			b.WriteByte('\n')
		}
		i += end + 1
	}

	return collapseWhitespace(decodeEntities(b.String()))
}

// dropSubtrees removes every <tag>...</tag> region, case-insensitively.
// A dangling open tag drops the rest of the document, which is the safe
// direction for script content.
func dropSubtrees(doc, tag string) string {
	lower := strings.ToLower(doc)
	openNeedle := "<" + tag
	closeNeedle := "</" + tag + ">"

	var b strings.Builder
	b.Grow(len(doc))
	pos := 0
	for {
		start := strings.Index(lower[pos:], openNeedle)
		if start < 0 {
			b.WriteString(doc[pos:])
			return b.String()
		}
		start += pos
		after := start + len(openNeedle)
		if after < len(doc) && doc[after] != '>' && doc[after] != ' ' && doc[after] != '\t' && doc[after] != '\n' && doc[after] != '\r' && doc[after] != '/' {
			// Prefix of a longer tag name, keep scanning
			b.WriteString(doc[pos:after])
			pos = after
			continue
		}
		b.WriteString(doc[pos:start])
		closeIdx := strings.Index(lower[start:], closeNeedle)
		if closeIdx < 0 {
			return b.String()
		}
		pos = start + closeIdx + len(closeNeedle)
	}
}

// tagName extracts the lowercase element name from a raw "<...>" run.
func tagName(raw string) string {
	inner := strings.TrimPrefix(raw, "<")
	inner = strings.TrimPrefix(inner, "/")
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case ' ', '\t', '\r', '\n', '>', '/':
			return strings.ToLower(inner[:i])
		}
	}
	return strings.ToLower(inner)
}

// collapseWhitespace trims each line and folds runs of blank lines and
// spaces so the clip spends its character budget on content.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// decodeEntities decodes the common named entities and numeric character
// references found in article markup.
func decodeEntities(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '&' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i:], ';')
		if end < 0 || end > 12 {
			b.WriteByte(s[i])
			i++
			continue
		}
		if decoded, ok := decodeEntity(s[i+1 : i+end]); ok {
			b.WriteString(decoded)
		} else {
			b.WriteString(s[i : i+end+1])
		}
		i += end + 1
	}
	return b.String()
}

func decodeEntity(entity string) (string, bool) {
	switch entity {
	case "lt":
		return "<", true
	case "gt":
		return ">", true
	case "amp":
		return "&", true
	case "quot":
		return `"`, true
	case "apos":
		return "'", true
	case "nbsp":
		return " ", true
	case "mdash":
		return "—", true
	case "ndash":
		return "–", true
	case "hellip":
		return "…", true
	case "rsquo":
		return "'", true
	case "lsquo":
		return "'", true
	case "rdquo":
		return "”", true
	case "ldquo":
		return "“", true
	}
	if strings.HasPrefix(entity, "#") {
		ref := entity[1:]
		base := 10
		if len(ref) > 1 && (ref[0] == 'x' || ref[0] == 'X') {
			ref = ref[1:]
			base = 16
		}
		cp, err := strconv.ParseInt(ref, base, 32)
		if err != nil || cp <= 0 {
			return "", false
		}
		return string(rune(cp)), true
	}
	return "", false
}
