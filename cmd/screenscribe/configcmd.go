package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/libraxis-labs/screenscribe/internal/config"
	"github.com/libraxis-labs/screenscribe/internal/keyword"
)

const defaultConfigTemplate = `server:
  log_level: info
  serve: false
  port: 8420

endpoint:
  api_key: ""
  base_url: "https://api.openai.com"

pipeline:
  workers: 5
  stagger_seconds: 0.5
  no_speech_threshold: 0.6
  max_gap_seconds: 5
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show, initialize, or edit the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigCmd(cmd)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	flags := configCmd.Flags()
	flags.String("config", "config.yaml", "path to the YAML configuration file")
	flags.Bool("show", false, "print the resolved configuration")
	flags.Bool("init", false, "write a starter configuration file")
	flags.Bool("init-keywords", false, "write the default keyword pattern file")
	flags.String("set-key", "", "set endpoint.api_key and save the configuration file")
}

func runConfigCmd(cmd *cobra.Command) error {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	show, _ := flags.GetBool("show")
	initCfg, _ := flags.GetBool("init")
	initKeywords, _ := flags.GetBool("init-keywords")
	setKey, _ := flags.GetString("set-key")

	switch {
	case initCfg:
		return initConfigFile(configPath)
	case initKeywords:
		return initKeywordsFile()
	case setKey != "":
		return setAPIKey(configPath, setKey)
	case show:
		return showConfig(configPath)
	default:
		return showConfig(configPath)
	}
}

func initConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists; remove it first or pass --config with a different path", path)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	fmt.Printf("wrote starter configuration to %s\n", path)
	return nil
}

func initKeywordsFile() error {
	const path = "keywords.yaml"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	cfg, err := keyword.DefaultConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode default keywords: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	fmt.Printf("wrote default keyword patterns to %s\n", path)
	return nil
}

func setAPIKey(path, key string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	cfg.Endpoint.APIKey = key

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	fmt.Printf("updated endpoint.api_key in %s\n", path)
	return nil
}

func showConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
