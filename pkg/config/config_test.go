package config

import (
	"strings"
	"testing"
	"time"
)

const minimal = `
board:
  id: abc123
github:
  host: github.com
  project_id: PVT_1
`

func TestFromYAMLDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(minimal))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.State.Dir != "state" {
		t.Errorf("state dir default = %q", cfg.State.Dir)
	}
	if cfg.Watch.Interval.Std() != 5*time.Minute {
		t.Errorf("watch interval default = %s", cfg.Watch.Interval.Std())
	}
}

func TestFromYAMLRequiresBoardID(t *testing.T) {
	_, err := FromYAML([]byte("github:\n  host: github.com\n  project_id: PVT_1\n"))
	if err == nil || !strings.Contains(err.Error(), "board.id") {
		t.Errorf("expected board.id error, got %v", err)
	}
}

func TestFromYAMLRequiresHost(t *testing.T) {
	_, err := FromYAML([]byte("board:\n  id: abc123\ngithub:\n  project_id: PVT_1\n"))
	if err == nil || !strings.Contains(err.Error(), "github.host") {
		t.Errorf("expected github.host error, got %v", err)
	}
}

func TestFromYAMLRequiresProjectID(t *testing.T) {
	_, err := FromYAML([]byte("board:\n  id: abc123\ngithub:\n  host: github.com\n"))
	if err == nil || !strings.Contains(err.Error(), "project_id") {
		t.Errorf("expected project_id error, got %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("TRELLO_BOARD_ID", "env-board")
	t.Setenv("GH_HOST", "ghe.example.com")
	cfg, err := FromYAML([]byte(minimal))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.Board.ID != "env-board" {
		t.Errorf("board id = %q", cfg.Board.ID)
	}
	if cfg.GitHub.Host != "ghe.example.com" {
		t.Errorf("host = %q", cfg.GitHub.Host)
	}
}

func TestValidateWatchInterval(t *testing.T) {
	_, err := FromYAML([]byte(minimal + "watch:\n  interval: 5s\n"))
	if err == nil || !strings.Contains(err.Error(), "watch.interval") {
		t.Errorf("expected watch.interval error, got %v", err)
	}
}

func TestNotifierValidation(t *testing.T) {
	_, err := FromYAML([]byte(minimal + "notify:\n  telegram:\n    enabled: true\n"))
	if err == nil || !strings.Contains(err.Error(), "chat_id") {
		t.Errorf("expected chat_id error, got %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("TRELLO_KEY", "k")
	t.Setenv("TRELLO_TOKEN", "t")
	t.Setenv("GITHUB_TOKEN", "")
	cfg, err := FromYAML([]byte(minimal))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if _, err := LoadCredentials(cfg); err == nil {
		t.Error("expected missing GITHUB_TOKEN error")
	}
	t.Setenv("GITHUB_TOKEN", "g")
	creds, err := LoadCredentials(cfg)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.TrelloKey != "k" || creds.GitHubToken != "g" {
		t.Errorf("creds = %+v", creds)
	}
}
