package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/libraxis-labs/screenscribe/internal/config"
	"github.com/libraxis-labs/screenscribe/internal/transport"
	"github.com/libraxis-labs/screenscribe/pkg/media"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <video>",
	Short: "Transcribe a single video and print/write the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscribe(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	flags := transcribeCmd.Flags()
	flags.String("config", "config.yaml", "path to the YAML configuration file")
	flags.String("output", "", "file to write the transcription JSON into (stdout when empty)")
	flags.String("lang", "", "IETF language code (autodetected when empty)")
	flags.Bool("local", false, "point at a locally hosted STT endpoint")
	flags.BoolP("verbose", "v", false, "enable debug logging")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	output, _ := flags.GetString("output")
	lang, _ := flags.GetString("lang")
	local, _ := flags.GetBool("local")
	verbose, _ := flags.GetBool("verbose")
	video := args[0]

	slog.SetDefault(newLogger(verbose))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if local && cfg.Endpoint.BaseURL == "" {
		cfg.Endpoint.BaseURL = "http://localhost:8080"
	}

	apiKey, baseURL, endpoint, model, err := config.ResolveRole(cfg, "stt", "/v1/audio/transcriptions")
	if err != nil {
		return fmt.Errorf("resolve stt endpoint: %w", err)
	}

	ctx := cmd.Context()
	mediaAdapter := media.New()
	audioPath, err := mediaAdapter.ExtractAudio(ctx, video)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	defer os.Remove(audioPath)

	client := transport.New(apiKey)
	tr, err := client.Transcribe(ctx, baseURL, endpoint, model, lang, audioPath)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcription: %w", err)
	}

	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write transcription: %w", err)
	}
	slog.Info("transcription written", "video", video, "output", output, "segments", len(tr.Segments))
	return nil
}
