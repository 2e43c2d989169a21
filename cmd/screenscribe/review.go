package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/libraxis-labs/screenscribe/internal/config"
	"github.com/libraxis-labs/screenscribe/internal/health"
	"github.com/libraxis-labs/screenscribe/internal/keyword"
	"github.com/libraxis-labs/screenscribe/internal/observe"
	"github.com/libraxis-labs/screenscribe/internal/pipeline"
	"github.com/libraxis-labs/screenscribe/internal/report"
	"github.com/libraxis-labs/screenscribe/internal/transport"
	"github.com/libraxis-labs/screenscribe/internal/webui"
	"github.com/libraxis-labs/screenscribe/pkg/media"
)

var reviewCmd = &cobra.Command{
	Use:   "review <video>...",
	Short: "Run the full review pipeline over one or more videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	flags := reviewCmd.Flags()
	flags.String("config", "config.yaml", "path to the YAML configuration file")
	flags.String("output", "./screenscribe-out", "directory to write reports and screenshots into")
	flags.String("lang", "", "IETF language code (autodetected when empty)")
	flags.Bool("local", false, "point at a locally hosted set of model endpoints")
	flags.Bool("semantic", true, "run the semantic pre-filter (disable with --semantic=false)")
	flags.Bool("vision", true, "extract a frame per detection for VLM analysis (with --vision=false the analysis sees transcript context only)")
	flags.Bool("keywords-only", false, "use the keyword detector only, skipping the semantic pre-filter")
	flags.String("keywords-file", "", "path to a custom keyword pattern YAML file")
	flags.Bool("resume", false, "resume from a prior run's checkpoint if one is valid")
	flags.Bool("force", false, "ignore any existing checkpoint and start over")
	flags.Bool("skip-validation", false, "skip the preflight endpoint validation")
	flags.Bool("dry-run", false, "run only audio extraction, transcription, and detection")
	flags.Bool("estimate", false, "show a processing time estimate (from video duration) and exit")
	flags.Bool("embed-video", false, "inline the source video as a data: URI in the HTML report")
	flags.String("format", "json", "report format: json, markdown, or html")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Bool("serve", false, "start a read-only browser UI streaming progress over SSE")
	flags.String("port", "4680", "port for --serve")
}

func runReview(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	output, _ := flags.GetString("output")
	lang, _ := flags.GetString("lang")
	local, _ := flags.GetBool("local")
	semantic, _ := flags.GetBool("semantic")
	vision, _ := flags.GetBool("vision")
	keywordsOnly, _ := flags.GetBool("keywords-only")
	keywordsFile, _ := flags.GetString("keywords-file")
	resume, _ := flags.GetBool("resume")
	force, _ := flags.GetBool("force")
	skipValidation, _ := flags.GetBool("skip-validation")
	dryRun, _ := flags.GetBool("dry-run")
	estimate, _ := flags.GetBool("estimate")
	embedVideo, _ := flags.GetBool("embed-video")
	format, _ := flags.GetString("format")
	verbose, _ := flags.GetBool("verbose")
	serve, _ := flags.GetBool("serve")
	port, _ := flags.GetString("port")

	slog.SetDefault(newLogger(verbose))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if local && cfg.Endpoint.BaseURL == "" {
		cfg.Endpoint.BaseURL = "http://localhost:8080"
	}
	if !flags.Changed("serve") {
		serve = cfg.Server.Serve
	}
	if !flags.Changed("port") && cfg.Server.Port != 0 {
		port = fmt.Sprint(cfg.Server.Port)
	}
	if keywordsFile == "" {
		keywordsFile = cfg.Pipeline.KeywordsFile
	}

	filterLevel := pipeline.FilterCombined
	if keywordsOnly {
		filterLevel = pipeline.FilterKeywords
	} else if !semantic {
		filterLevel = pipeline.FilterKeywords
	}

	var customKeywords keyword.Config
	if keywordsFile != "" {
		data, err := os.ReadFile(keywordsFile)
		if err != nil {
			return fmt.Errorf("read keywords file: %w", err)
		}
		customKeywords, err = keyword.ParseConfig(data)
		if err != nil {
			return fmt.Errorf("parse keywords file: %w", err)
		}
	}

	client := transport.New(cfg.Endpoint.APIKey)
	mediaAdapter := media.New()
	coord := pipeline.New(cfg, client, mediaAdapter, pipeline.WithMetrics(observe.DefaultMetrics()))

	opts := pipeline.Options{
		Language:       lang,
		UseSemantic:    semantic,
		UseVision:      vision,
		FilterLevel:    filterLevel,
		CustomKeywords: customKeywords,
		Resume:         resume,
		Force:          force,
		SkipValidation: skipValidation,
		DryRun:         dryRun,
		EmbedVideo:     embedVideo,
	}

	ctx := cmd.Context()

	var ui *webui.Server
	if serve {
		ui = webui.New(observe.DefaultMetrics(), health.Checker{
			Name: "endpoint config",
			Check: func(context.Context) error {
				if cfg.Endpoint.BaseURL == "" && cfg.Endpoint.APIKey == "" {
					return fmt.Errorf("no endpoint configured")
				}
				return nil
			},
		})
		opts.OnStage = ui.OnStage

		serveCtx, cancelServe := context.WithCancel(ctx)
		defer cancelServe()
		go func() {
			if err := ui.ListenAndServe(serveCtx, ":"+port); err != nil {
				slog.Error("webui server stopped", "err", err)
			}
		}()
		slog.Info("browser UI available", "url", "http://localhost:"+port)
	}

	for _, video := range args {
		videoOutputDir := filepath.Join(output, strings.TrimSuffix(filepath.Base(video), filepath.Ext(video)))

		if estimate {
			duration, err := mediaAdapter.Duration(ctx, video)
			if err != nil {
				slog.Warn("could not determine video duration", "video", video, "err", err)
			}
			fmt.Printf("\nVideo: %s\n", video)
			est := pipeline.EstimateRun(duration, filterLevel, vision, nil)
			if _, err := est.WriteTo(os.Stdout); err != nil {
				return fmt.Errorf("write estimate for %s: %w", video, err)
			}
			continue
		}

		slog.Info("reviewing video", "video", video, "output", videoOutputDir)

		if ui != nil {
			ui.Begin(video, report.Format(format), lang)
		}

		rep, err := coord.Run(ctx, video, videoOutputDir, opts)
		if ui != nil {
			ui.Finish(rep, err)
		}
		if err != nil {
			return fmt.Errorf("review %s: %w", video, err)
		}

		rendered, err := report.Render(rep, report.Format(format), lang)
		if err != nil {
			return fmt.Errorf("render report for %s: %w", video, err)
		}

		reportPath := filepath.Join(videoOutputDir, "report."+reportExtension(format))
		if err := os.WriteFile(reportPath, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("write report for %s: %w", video, err)
		}
		slog.Info("review complete", "video", video, "report", reportPath, "findings", len(rep.Findings), "errors", len(rep.Errors))
	}
	return nil
}

func reportExtension(format string) string {
	switch format {
	case "markdown":
		return "md"
	case "html":
		return "html"
	default:
		return "json"
	}
}
