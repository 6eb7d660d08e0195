package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
)

var (
	faint  = color.New(color.Faint)
	bold   = color.New(color.Bold)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

var _ llm.Observer = (*printer)(nil)

type printer struct {
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) query(query string) {
	faint.Fprintf(p.out, "› %s\n\n", query) //nolint:errcheck
}

// Observe prints how much of the conversation each request had to resend.
func (p *printer) Observe(s llm.Snapshot) {
	faint.Fprintf(p.out, "turn %d: sent %d items (~%d tokens), billed %d prompt tokens (%d cached)\n", //nolint:errcheck
		s.Turn, s.Items, s.EstimatedTokens, s.Usage.PromptTokens, s.Usage.CachedTokens)
}

func (p *printer) calls(calls []llm.FunctionCall, outputs []llm.FunctionCallOutput) {
	for i, call := range calls {
		fmt.Fprintf(p.out, "%s %s %s\n", yellow.Sprint("●"), bold.Sprint(call.Name), faint.Sprint(call.Arguments)) //nolint:errcheck
		if i < len(outputs) {
			faint.Fprintf(p.out, "  ↳ %s\n", outputs[i].Output) //nolint:errcheck
		}
	}
}

func (p *printer) searches(calls []llm.WebSearchCall) {
	for _, call := range calls {
		query := call.Query
		if query == "" {
			query = call.Status
		}
		fmt.Fprintf(p.out, "%s %s %s\n", yellow.Sprint("●"), bold.Sprint("web_search"), faint.Sprint(query)) //nolint:errcheck
	}
}

func (p *printer) answer(text string) {
	fmt.Fprintf(p.out, "\n%s\n\n", renderMarkdown(text)) //nolint:errcheck
}

func (p *printer) citations(citations []llm.Citation) {
	seen := make(map[string]bool)
	n := 0
	for _, c := range citations {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		n++
		cyan.Fprintf(p.out, "[%d] %s %s\n", n, c.Title, c.URL) //nolint:errcheck
	}
	if n > 0 {
		fmt.Fprintln(p.out) //nolint:errcheck
	}
}

func (p *printer) usage(u llm.Usage) {
	faint.Fprintf(p.out, "total: %d prompt tokens, %d completion tokens, ~%.4f $\n", //nolint:errcheck
		u.PromptTokens, u.CompletionTokens, u.TotalCost)
}

func renderMarkdown(content string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}
	markdown, err := renderer.Render(strings.TrimSpace(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(markdown)
}
