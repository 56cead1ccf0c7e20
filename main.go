package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"dify-tui/internal/app"
	"dify-tui/internal/dify"
	"dify-tui/internal/mock"
)

func main() {
	cliApp := &cli.App{
		Name:  "dify-tui",
		Usage: "terminal client for Dify chat and workflow apps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Dify API key",
				EnvVars: []string{"DIFY_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Value:   "https://api.dify.ai/v1",
				Usage:   "API base URL",
				EnvVars: []string{"DIFY_API_BASE_URL"},
			},
			&cli.StringFlag{
				Name:  "app-type",
				Value: "chat",
				Usage: "application type: chat or workflow",
			},
			&cli.BoolFlag{
				Name:  "blocking",
				Usage: "wait for the full response instead of streaming",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "show workflow and node progress in the transcript",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 120 * time.Second,
				Usage: "per-turn timeout",
			},
			&cli.StringSliceFlag{
				Name:  "input",
				Usage: "extra input variable as key=value (repeatable)",
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:  "mock",
				Usage: "run a scripted local backend for development",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Value: 8000,
						Usage: "port for the mock server",
					},
				},
				Action: func(c *cli.Context) error {
					return mock.NewServer(c.Int("port")).Start()
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTUI(c *cli.Context) error {
	mode, err := dify.ParseMode(c.String("app-type"))
	if err != nil {
		return err
	}

	apiKey := c.String("api-key")
	client := dify.NewClient(c.String("base-url"), apiKey,
		dify.WithTimeout(c.Duration("timeout")),
		dify.WithLogger(dify.NewLoggerFromEnv()),
	)

	sess := dify.NewSession()
	for _, kv := range c.StringSlice("input") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --input %q, want key=value", kv)
		}
		sess.SetInput(key, value)
	}

	model := app.New(app.Config{
		Client:  client,
		Session: sess,
		Options: dify.TurnOptions{
			Mode:      mode,
			Streaming: !c.Bool("blocking"),
			Verbose:   c.Bool("verbose"),
		},
		HasAPIKey: apiKey != "",
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	model.SetProgram(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}
