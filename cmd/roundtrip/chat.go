package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/markusylisiurunen/roundtrip/internal/agent"
	"github.com/markusylisiurunen/roundtrip/internal/tui"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/markusylisiurunen/roundtrip/toolkit/tool"
	"github.com/spf13/cobra"
)

var chatFlags struct {
	search bool
	rounds int
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively with the weather function and optional web search",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		a, err := agent.New(e.logger, e.client,
			[]llm.Tool{tool.NewWeather().SetLogger(e.logger).SetBaseURL(e.cfg.WeatherBaseURL)},
			agent.WithWebSearch(llm.WebSearch{ContextSize: "medium"}),
			agent.WithTokenCounter(e.counter),
			agent.WithMaxToolRounds(chatFlags.rounds),
			agent.WithInstructions("You are a helpful assistant. Use get_weather for current temperatures."),
		)
		if err != nil {
			return err
		}
		a.SetWebSearch(chatFlags.search)
		program := tea.NewProgram(tui.Initial(e.logger, e.cfg.Model, a), tea.WithAltScreen())
		_, err = program.Run()
		return err
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatFlags.search, "search", false, "start with web search enabled (toggle with /search)")
	chatCmd.Flags().IntVar(&chatFlags.rounds, "rounds", 4, "tool rounds allowed per message")
}
