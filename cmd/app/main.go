package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dosewise/internal"
	pkgconfig "github.com/starford/dosewise/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func scanFrames(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunScan(ctx, internal.ScanOptions{
		Frame:         cmd.String("frame"),
		Add:           cmd.Bool("add"),
		Dosage:        cmd.String("dosage"),
		MinConfidence: cmd.Float("min-confidence"),
	}, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:   "dosewise",
		Usage:  "Medication adherence tracker with reminders, interaction checks, and a chat assistant",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and reminder scheduler",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "scan",
				Usage:  "Classify pill photos from a frame file",
				Action: scanFrames,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "frame",
						Aliases:  []string{"f"},
						Usage:    "Image file to sample",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "add",
						Usage: "Add the first confident prediction as a medication",
					},
					&cli.StringFlag{
						Name:  "dosage",
						Usage: "Dosage for the added medication",
					},
					&cli.FloatFlag{
						Name:  "min-confidence",
						Usage: "Minimum confidence for --add",
						Value: 0.8,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
