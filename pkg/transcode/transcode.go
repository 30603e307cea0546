// Package transcode converts bracket-tag markup of feed event bodies into
// Telegram MarkdownV2 text. Conversion is a fixed, ordered list of pure text
// passes; links are protected from escaping by placeholders and restored at the end.
package transcode

import (
	"regexp"
	"strconv"
	"strings"
)

// VideoNotice replaces embedded video previews
const VideoNotice = "(This update contains video. To watch the video, go to the official website.)"

// placeholderPrefix marks a protected link fragment, must stay alphanumeric to survive escaping
const placeholderPrefix = "PLACEHOLDER"

// specialChars are escaped with a backslash
const specialChars = "_*()~`>#-|{}.!"

var (
	reTable   = regexp.MustCompile(`(?s)\[table\].*?\[\\?/table\]`)
	reImage   = regexp.MustCompile(`(?s)\[img\].*?\[\\?/img\]`)
	rePreview = regexp.MustCompile(`(?s)\[previewyoutube[^\]]*\](?:\s*\[\\?/previewyoutube\])?`)
	reLink    = regexp.MustCompile(`\[url=([^\]]+)\]([^\[]+)\[\\?/url\]`)
)

// tokenMap lists structural tokens and their replacements, applied sequentially in this order.
// "[*][b]" has to go before "[*]".
var tokenMap = []struct{ from, to string }{
	{"[/h1]", "*"}, {`[\/h1]`, "*"},
	{"[/h2]", "*"}, {`[\/h2]`, "*"},
	{"[/h3]", "*"}, {`[\/h3]`, "*"},
	{"[/h5]", "*"}, {`[\/h5]`, "*"},
	{"[list]", ""}, {"[/list]", ""}, {`[\/list]`, ""},
	{"[*][b]", "🔸*"},
	{"[/b]", "*"}, {`[\/b]`, "*"},
	{"[*]", "📌"},
	{"[strike]", "~"}, {"[/strike]", "~"}, {`[\/strike]`, "~"},
	{"[/previewyoutube]", ""}, {`[\/previewyoutube]`, ""},
}

// state is passed through all passes of a single Transcode call
type state struct {
	text      string
	fragments []string // protected link fragments, index matches placeholder number
}

type pass func(st *state)

// passes in the order they are applied
var passes = []pass{
	removeTables,
	removeImages,
	replacePreviews,
	protectLinks,
	mapTokens,
	escapeSpecials,
	restoreLinks,
	rewriteLinks,
}

// Transcode converts body from bracket markup to escaped MarkdownV2.
// It never fails, malformed markup is left as literal text and escaped.
func Transcode(body string) string {
	st := &state{text: body}
	for _, p := range passes {
		p(st)
	}
	return st.text
}

// Escape prefixes every special MarkdownV2 character of text with a backslash
func Escape(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + len(text)/8)
	for _, r := range text {
		if strings.ContainsRune(specialChars, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func removeTables(st *state) {
	st.text = reTable.ReplaceAllString(st.text, "")
}

func removeImages(st *state) {
	st.text = reImage.ReplaceAllString(st.text, "")
}

func replacePreviews(st *state) {
	st.text = rePreview.ReplaceAllLiteralString(st.text, VideoNotice)
}

// protectLinks moves every link construct to st.fragments and leaves a numbered placeholder in the text
func protectLinks(st *state) {
	st.text = reLink.ReplaceAllStringFunc(st.text, func(fragment string) string {
		st.fragments = append(st.fragments, fragment)
		return placeholder(len(st.fragments) - 1)
	})
}

func mapTokens(st *state) {
	for _, tk := range tokenMap {
		st.text = strings.ReplaceAll(st.text, tk.from, tk.to)
	}
}

func escapeSpecials(st *state) {
	st.text = Escape(st.text)
}

// restoreLinks puts protected fragments back verbatim. Placeholders appear in the text in
// extraction order, so each one is searched for after the previous one. This keeps
// PLACEHOLDER1 from matching the head of PLACEHOLDER10 and ignores digits that follow a token.
func restoreLinks(st *state) {
	if len(st.fragments) == 0 {
		return
	}
	var sb strings.Builder
	rest := st.text
	for i, fragment := range st.fragments {
		token := placeholder(i)
		pos := strings.Index(rest, token)
		if pos < 0 {
			continue
		}
		sb.WriteString(rest[:pos])
		sb.WriteString(fragment)
		rest = rest[pos+len(token):]
	}
	sb.WriteString(rest)
	st.text = sb.String()
}

func rewriteLinks(st *state) {
	st.text = reLink.ReplaceAllString(st.text, "[$2]($1)")
}

func placeholder(idx int) string {
	return placeholderPrefix + strconv.Itoa(idx)
}
