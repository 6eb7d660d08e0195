package main

import (
	"log"
	"os"
	"time"

	"github.com/markusylisiurunen/roundtrip/internal/config"
	"github.com/markusylisiurunen/roundtrip/internal/logger"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm/token"
	"github.com/spf13/cobra"
)

var flags struct {
	config string
	model  string
	debug  bool
}

var rootCmd = &cobra.Command{
	Use:   "roundtrip",
	Short: "Function calling and web search against the OpenAI Responses API",
	Long: `roundtrip asks a model a question, runs the functions it calls locally, and sends the
results back in a follow-up request together with the whole conversation so far.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.model, "model", "", "model to use (overrides MODEL)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "write debug logs to .roundtrip/logs")
	rootCmd.AddCommand(weatherCmd, searchCmd, chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs: validated config, a logger and an API client.
type env struct {
	cfg     *config.Config
	logger  logger.Logger
	client  *llm.OpenAI
	counter llm.TokenCounter
	close   func()
}

func setup() (*env, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if flags.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger.NoOp(), close: func() {}}
	// if in debug mode, create a debug log file
	if cfg.Debug {
		if err := os.MkdirAll(".roundtrip/logs", 0755); err != nil {
			return nil, err
		}
		debugLogFile := time.Now().Format("2006-01-02T15:04:05") + ".log"
		f, err := os.OpenFile(".roundtrip/logs/"+debugLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		e.close = func() { f.Close() } //nolint:errcheck
		e.logger = logger.New(f)
		e.logger.SetEnabled(true)
		e.logger.SetLevel("debug")
	}
	e.client = llm.NewOpenAI(e.logger, cfg.APIKey, cfg.Model,
		llm.WithBaseURL(cfg.BaseURL),
		llm.WithTimeout(cfg.Timeout),
	)
	// the chars/4 estimate inside the history is used when the encoding cannot be loaded
	if counter, err := token.NewCounter(cfg.Model); err == nil {
		e.counter = counter
	} else {
		log.Printf("token estimates are approximate: %v", err)
	}
	return e, nil
}
