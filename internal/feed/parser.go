// ABOUTME: Dependency-free RSS 2.0 / Atom parser built on a tolerant tag scanner
// ABOUTME: Produces transient Article records; malformed input degrades to empty fields

package feed

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Character budgets applied to the cleaned snippet text.
const (
	snippetMaxChars     = 400
	descriptionMaxChars = 100
)

// Dialect identifies the structural flavor of a feed document.
type Dialect string

// Known dialects. A document with neither item nor entry blocks is
// DialectUnknown and yields no articles.
const (
	DialectRSS     Dialect = "rss"
	DialectAtom    Dialect = "atom"
	DialectUnknown Dialect = "unknown"
)

// FeedInfo describes the source feed of an article.
type FeedInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Article is a transient, parsed syndication entry. Articles are produced per
// request and never persisted.
type Article struct {
	Title          string   `json:"title"`
	Link           string   `json:"link"`
	Published      *string  `json:"published"` // ISO-8601, null when unknown
	ContentSnippet string   `json:"contentSnippet"`
	Description    string   `json:"description"`
	Feed           FeedInfo `json:"feed"`

	publishedAt time.Time
}

// PublishedAt returns the parsed publication time; the zero time means the
// document carried no usable date and sorts as oldest.
func (a *Article) PublishedAt() time.Time {
	return a.publishedAt
}

// Parse converts raw feed-document text into articles. Dialect detection is
// structural: <item> blocks first (RSS 2.0), then <entry> blocks (Atom).
// A document with neither yields an empty list, not an error.
func Parse(doc, feedURL string) []Article {
	dialect, items := splitItems(doc)

	feedTitle := feedTitle(doc)
	if feedTitle == "" {
		feedTitle = HostFromURL(feedURL)
	}

	articles := make([]Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, parseItem(item, dialect, feedURL, feedTitle))
	}
	return articles
}

// ParseTitle extracts just the document-level feed title, or "" when absent.
func ParseTitle(doc string) string {
	return feedTitle(doc)
}

// parseItem extracts one article from an item/entry block. Every field is
// best effort: a missing tag leaves the field empty rather than failing.
// An item without a link falls back to the feed's own URL so the link is
// never empty, even though that may repeat the same link across items.
func parseItem(item string, dialect Dialect, feedURL, feedTitle string) Article {
	article := Article{
		Title: firstTagText(item, "title"),
		Link:  itemLink(item, dialect),
		Feed:  FeedInfo{Title: feedTitle, URL: feedURL},
	}
	if article.Link == "" {
		article.Link = feedURL
	}

	// RSS pubDate first, then the Atom timestamps.
	raw := firstTagText(item, "pubDate")
	if raw == "" {
		raw = firstTagText(item, "published")
	}
	if raw == "" {
		raw = firstTagText(item, "updated")
	}
	if t, ok := parseDate(raw); ok {
		iso := t.UTC().Format(time.RFC3339)
		article.Published = &iso
		article.publishedAt = t
	}

	// Snippet source preference: content, then summary, then description.
	text := firstTagText(item, "content")
	if text == "" {
		text = firstTagText(item, "summary")
	}
	if text == "" {
		text = firstTagText(item, "description")
	}
	article.ContentSnippet = truncateRunes(text, snippetMaxChars)
	article.Description = truncateRunes(text, descriptionMaxChars)

	return article
}

// splitItems scans the document for item-level containers.
func splitItems(doc string) (Dialect, []string) {
	if items := scanBlocks(doc, "item"); len(items) > 0 {
		return DialectRSS, items
	}
	if items := scanBlocks(doc, "entry"); len(items) > 0 {
		return DialectAtom, items
	}
	return DialectUnknown, nil
}

// feedTitle returns the first document-level title outside any item/entry
// block, or "" when there is none.
func feedTitle(doc string) string {
	limit := len(doc)
	if idx := findTagStart(doc, "item", 0); idx >= 0 && idx < limit {
		limit = idx
	}
	if idx := findTagStart(doc, "entry", 0); idx >= 0 && idx < limit {
		limit = idx
	}
	return firstTagText(doc[:limit], "title")
}

// itemLink resolves the article link for a block. Atom links live in the href
// attribute of a link element; RSS links are the text content of one.
func itemLink(item string, dialect Dialect) string {
	if dialect == DialectAtom {
		if href := linkHref(item); href != "" {
			return href
		}
	}
	return firstTagText(item, "link")
}

// scanBlocks returns the inner content of every <tag>...</tag> block.
// Unclosed blocks are dropped; the scanner never fails on malformed markup.
func scanBlocks(doc, tag string) []string {
	var blocks []string
	pos := 0
	for {
		start := findTagStart(doc, tag, pos)
		if start < 0 {
			break
		}
		open := strings.IndexByte(doc[start:], '>')
		if open < 0 {
			break
		}
		contentStart := start + open + 1

		// Self-closing open tag carries no content
		if strings.HasSuffix(strings.TrimSpace(doc[start:contentStart-1]), "/") {
			pos = contentStart
			continue
		}

		end := indexCloseTag(doc, tag, contentStart)
		if end < 0 {
			break
		}
		blocks = append(blocks, doc[contentStart:end])
		pos = end + len(tag) + 3 // past "</tag>"
	}
	return blocks
}

// findTagStart finds the next case-insensitive occurrence of "<tag" followed
// by a name boundary, starting at from. Returns -1 when absent.
func findTagStart(doc, tag string, from int) int {
	lower := strings.ToLower(doc)
	needle := "<" + strings.ToLower(tag)
	for {
		idx := strings.Index(lower[from:], needle)
		if idx < 0 {
			return -1
		}
		idx += from
		after := idx + len(needle)
		if after >= len(doc) {
			return -1
		}
		// Boundary check so "<item" does not match "<itemref"
		switch doc[after] {
		case '>', ' ', '\t', '\r', '\n', '/':
			return idx
		}
		from = after
	}
}

// indexCloseTag finds the next case-insensitive "</tag>" allowing whitespace
// before '>'. Returns the index of '<', or -1.
func indexCloseTag(doc, tag string, from int) int {
	lower := strings.ToLower(doc)
	needle := "</" + strings.ToLower(tag) + ">"
	if idx := strings.Index(lower[from:], needle); idx >= 0 {
		return idx + from
	}
	return -1
}

// firstTagText returns the cleaned text content of the first <tag> block:
// CDATA unwrapped, tags stripped, entities decoded, whitespace trimmed.
// Stripping before decoding keeps a decoded "<" in text (e.g. "I &lt;3 Go")
// from being mistaken for a tag opener; markup that was entity-escaped
// (Atom content type="html") decodes to literal tags in the text.
func firstTagText(block, tag string) string {
	blocks := scanBlocks(block, tag)
	if len(blocks) == 0 {
		return ""
	}
	inner := unwrapCDATA(blocks[0])
	return strings.TrimSpace(decodeEntities(stripTags(inner)))
}

// linkHref returns the href attribute value of the first link element that
// carries one.
func linkHref(block string) string {
	pos := 0
	for {
		start := findTagStart(block, "link", pos)
		if start < 0 {
			return ""
		}
		end := strings.IndexByte(block[start:], '>')
		if end < 0 {
			return ""
		}
		if href := attrValue(block[start:start+end], "href"); href != "" {
			return href
		}
		pos = start + end + 1
	}
}

// attrValue extracts a quoted attribute value from inside a tag.
func attrValue(tag, name string) string {
	lower := strings.ToLower(tag)
	needle := strings.ToLower(name) + "="
	idx := strings.Index(lower, needle)
	if idx < 0 {
		return ""
	}
	rest := tag[idx+len(needle):]
	if rest == "" {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return ""
	}
	return rest[1 : 1+end]
}

// unwrapCDATA replaces every <![CDATA[...]]> section with its raw content.
func unwrapCDATA(s string) string {
	const cdataOpen, cdataClose = "<![CDATA[", "]]>"
	for {
		start := strings.Index(s, cdataOpen)
		if start < 0 {
			return s
		}
		end := strings.Index(s[start+len(cdataOpen):], cdataClose)
		if end < 0 {
			// Unterminated CDATA: keep the content, drop the marker
			return s[:start] + s[start+len(cdataOpen):]
		}
		content := s[start+len(cdataOpen) : start+len(cdataOpen)+end]
		s = s[:start] + content + s[start+len(cdataOpen)+end+len(cdataClose):]
	}
}

// stripTags removes every <...> run from the text.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '<':
			inTag = true
		case s[i] == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// decodeEntities decodes the common named entities and numeric character
// references. Unknown entities are left untouched.
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
		entity := s[i+1 : i+end]
		if decoded, ok := decodeEntity(entity); ok {
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

// dateLayouts are tried in order when parsing feed timestamps.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate parses a feed timestamp; an unparseable date reports ok=false
// rather than an error.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// truncateRunes shortens s to at most n characters (not bytes).
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// HostFromURL derives a display name from a feed URL's host component,
// falling back to the raw string when it doesn't parse.
func HostFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
