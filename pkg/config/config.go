package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models board-pilot.yml.
type Config struct {
	Board struct {
		ID      string            `yaml:"id"`
		Aliases map[string]string `yaml:"aliases"`
	} `yaml:"board"`
	GitHub struct {
		Host      string `yaml:"host"`
		ProjectID string `yaml:"project_id"`
	} `yaml:"github"`
	State struct {
		Dir       string `yaml:"dir"`
		GitBackup bool   `yaml:"git_backup"`
	} `yaml:"state"`
	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`
	Watch struct {
		Interval Duration `yaml:"interval"`
	} `yaml:"watch"`
	Notify struct {
		Telegram struct {
			Enabled bool  `yaml:"enabled"`
			ChatID  int64 `yaml:"chat_id"`
		} `yaml:"telegram"`
		Discord struct {
			Enabled   bool   `yaml:"enabled"`
			ChannelID string `yaml:"channel_id"`
		} `yaml:"discord"`
	} `yaml:"notify"`
}

// Duration is a time.Duration that unmarshals from yaml strings like "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Credentials are never read from the config file; secrets come from the
// environment only.
type Credentials struct {
	TrelloKey     string
	TrelloToken   string
	GitHubToken   string
	TelegramToken string
	DiscordToken  string
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run board-pilot with --config <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Environment
// overrides are applied before validation so a minimal file plus env vars is
// a valid setup.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.ApplyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays environment overrides onto the file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TRELLO_BOARD_ID"); v != "" {
		c.Board.ID = v
	}
	if v := os.Getenv("GH_HOST"); v != "" {
		c.GitHub.Host = v
	}
	if v := os.Getenv("GH_PROJECT_ID"); v != "" {
		c.GitHub.ProjectID = v
	}
}

func (c *Config) applyDefaults() {
	if c.State.Dir == "" {
		c.State.Dir = "state"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "board-pilot.db"
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = Duration(5 * time.Minute)
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Board.ID == "" {
		return fmt.Errorf("config.board.id is required (or TRELLO_BOARD_ID)")
	}
	if c.GitHub.Host == "" {
		return fmt.Errorf("config.github.host is required (or GH_HOST)")
	}
	if c.GitHub.ProjectID == "" {
		return fmt.Errorf("config.github.project_id is required (or GH_PROJECT_ID)")
	}
	if c.Watch.Interval.Std() < time.Minute {
		return fmt.Errorf("config.watch.interval must be at least 1m, got %s", c.Watch.Interval.Std())
	}
	if c.Notify.Telegram.Enabled && c.Notify.Telegram.ChatID == 0 {
		return fmt.Errorf("config.notify.telegram.chat_id is required when telegram is enabled")
	}
	if c.Notify.Discord.Enabled && c.Notify.Discord.ChannelID == "" {
		return fmt.Errorf("config.notify.discord.channel_id is required when discord is enabled")
	}
	return nil
}

// LoadCredentials reads secrets from the environment. The notifier tokens
// are optional; the sync credentials are not.
func LoadCredentials(cfg *Config) (Credentials, error) {
	creds := Credentials{
		TrelloKey:     os.Getenv("TRELLO_KEY"),
		TrelloToken:   os.Getenv("TRELLO_TOKEN"),
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
	}
	if creds.TrelloKey == "" || creds.TrelloToken == "" {
		return creds, fmt.Errorf("TRELLO_KEY and TRELLO_TOKEN are required")
	}
	if creds.GitHubToken == "" {
		return creds, fmt.Errorf("GITHUB_TOKEN is required")
	}
	if cfg.Notify.Telegram.Enabled && creds.TelegramToken == "" {
		return creds, fmt.Errorf("TELEGRAM_TOKEN is required when telegram notify is enabled")
	}
	if cfg.Notify.Discord.Enabled && creds.DiscordToken == "" {
		return creds, fmt.Errorf("DISCORD_TOKEN is required when discord notify is enabled")
	}
	return creds, nil
}
