package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
)

// DefaultTheme is the chroma style used when a profile names none
const DefaultTheme = "monokai"

// SyntaxHighlighter renders JSON documents for the order inspector
type SyntaxHighlighter struct {
	formatter chroma.Formatter
	style     *chroma.Style
	theme     string
}

// NewSyntaxHighlighter creates a highlighter with the given chroma style and
// formatter, falling back to DefaultTheme and the plain formatter
func NewSyntaxHighlighter(themeName, formatterName string) *SyntaxHighlighter {
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	if themeName == "" {
		themeName = DefaultTheme
	}
	style := styles.Get(themeName)
	if style == nil {
		style = styles.Fallback
	}

	return &SyntaxHighlighter{
		formatter: formatter,
		style:     style,
		theme:     themeName,
	}
}

// Theme returns the style name in use
func (sh *SyntaxHighlighter) Theme() string {
	return sh.theme
}

// Highlight applies syntax highlighting to code
func (sh *SyntaxHighlighter) Highlight(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var highlighted strings.Builder
	if err := sh.formatter.Format(&highlighted, sh.style, iterator); err != nil {
		return code, err
	}
	return highlighted.String(), nil
}

// HighlightJSON indents and highlights a JSON document. Bodies that are not
// JSON are returned as text.
func (sh *SyntaxHighlighter) HighlightJSON(data []byte) (string, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return string(data), fmt.Errorf("not a JSON document: %w", err)
	}
	return sh.Highlight(pretty.String(), "json")
}
