package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/markusylisiurunen/roundtrip/toolkit/tool"
	"github.com/spf13/cobra"
)

const defaultWeatherQuery = "What's the weather like in Tokyo today?"

var weatherFlags struct {
	rounds       int
	instructions string
}

var weatherCmd = &cobra.Command{
	Use:   "weather [query]",
	Short: "Answer a question with the get_weather function",
	Long: `Sends the query with the get_weather function declared. When the model calls it, the
temperature is fetched from Open-Meteo and sent back with the rest of the conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		query := strings.Join(args, " ")
		if query == "" {
			query = defaultWeatherQuery
		}
		registry, err := llm.NewRegistry(
			tool.NewWeather().SetLogger(e.logger).SetBaseURL(e.cfg.WeatherBaseURL),
		)
		if err != nil {
			return err
		}
		out := newPrinter(cmd.OutOrStdout())
		history := llm.NewHistory(llm.WithTokenCounter(e.counter), llm.WithObserver(out))
		var requestOptions []llm.RequestOption
		if weatherFlags.instructions != "" {
			requestOptions = append(requestOptions, llm.WithInstructions(weatherFlags.instructions))
		}
		roundTrip := llm.NewRoundTrip(e.logger, e.client, registry, history,
			llm.WithMaxToolRounds(weatherFlags.rounds),
			llm.WithRequestOptions(requestOptions...),
		)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		out.query(query)
		result, err := roundTrip.Run(ctx, query)
		if result != nil {
			out.calls(result.Calls, result.Outputs)
		}
		if err != nil {
			return err
		}
		out.answer(result.Text)
		out.usage(history.Usage())
		return nil
	},
}

func init() {
	weatherCmd.Flags().IntVar(&weatherFlags.rounds, "rounds", 1, "how many times function outputs may be sent back")
	weatherCmd.Flags().StringVar(&weatherFlags.instructions, "instructions", "", "system instructions for the model")
}
