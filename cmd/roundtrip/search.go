package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/spf13/cobra"
)

const defaultSearchQuery = "What was a positive news story from today?"

var searchFlags struct {
	contextSize string
	country     string
	city        string
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Answer a question with the built-in web search tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		query := strings.Join(args, " ")
		if query == "" {
			query = defaultSearchQuery
		}
		search := llm.WebSearch{ContextSize: searchFlags.contextSize}
		if searchFlags.country != "" || searchFlags.city != "" {
			search.Location = &llm.WebSearchLocation{Country: searchFlags.country, City: searchFlags.city}
		}
		registry, err := llm.NewRegistry()
		if err != nil {
			return err
		}
		registry.Host(search)
		out := newPrinter(cmd.OutOrStdout())
		history := llm.NewHistory(llm.WithTokenCounter(e.counter), llm.WithObserver(out))
		roundTrip := llm.NewRoundTrip(e.logger, e.client, registry, history)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		out.query(query)
		result, err := roundTrip.Run(ctx, query)
		if err != nil {
			return err
		}
		var citations []llm.Citation
		for _, resp := range result.Responses {
			out.searches(resp.WebSearchCalls())
			citations = append(citations, resp.Citations()...)
		}
		out.answer(result.Text)
		out.citations(citations)
		out.usage(history.Usage())
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.contextSize, "context-size", "", "search context size: low, medium or high")
	searchCmd.Flags().StringVar(&searchFlags.country, "country", "", "two-letter country code of the user")
	searchCmd.Flags().StringVar(&searchFlags.city, "city", "", "city of the user")
}
