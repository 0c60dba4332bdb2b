package chat

import (
	"bytes"
	"os"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
)

const chromaStyleName = "dracula"

// highlightCodeBlocks colorizes fenced code blocks in a message body.
// Text outside fences passes through untouched; an unclosed fence is
// treated as plain text.
func highlightCodeBlocks(body string) string {
	if body == "" || os.Getenv("NO_COLOR") != "" {
		return body
	}

	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		fence, lang, ok := parseFence(lines[i])
		if !ok {
			out = append(out, lines[i])
			continue
		}
		end := findClosingFence(lines, i+1, fence)
		if end == -1 {
			out = append(out, lines[i])
			continue
		}

		out = append(out, lines[i])
		code := strings.Join(lines[i+1:end], "\n")
		out = append(out, highlightCode(code, lang), lines[end])
		i = end
	}

	return strings.Join(out, "\n")
}

// parseFence recognizes a code fence opener: three or more backticks or
// tildes, optionally followed by a language tag.
func parseFence(line string) (fence string, lang string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "```") && !strings.HasPrefix(trimmed, "~~~") {
		return "", "", false
	}

	marker := trimmed[0]
	count := 0
	for count < len(trimmed) && trimmed[count] == marker {
		count++
	}

	rest := strings.Fields(trimmed[count:])
	if len(rest) > 0 {
		lang = rest[0]
	}
	return trimmed[:count], lang, true
}

func findClosingFence(lines []string, start int, fence string) int {
	for i := start; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if len(trimmed) >= len(fence) && strings.Count(trimmed, string(fence[0])) == len(trimmed) {
			return i
		}
	}
	return -1
}

func highlightCode(code, lang string) string {
	if code == "" {
		return ""
	}

	iterator, err := resolveLexer(code, lang).Tokenise(nil, code)
	if err != nil {
		return code
	}

	style := styles.Get(chromaStyleName)
	if style == nil {
		style = styles.Fallback
	}

	var buf bytes.Buffer
	if err := formatters.TTY256.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func resolveLexer(code, lang string) chroma.Lexer {
	if lang != "" {
		if lexer := lexers.Get(strings.ToLower(lang)); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	if lexer := lexers.Analyse(code); lexer != nil {
		return chroma.Coalesce(lexer)
	}
	return lexers.Fallback
}
