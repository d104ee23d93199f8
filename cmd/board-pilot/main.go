package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mklimuk/board-pilot/pkg/backup"
	"github.com/mklimuk/board-pilot/pkg/board"
	"github.com/mklimuk/board-pilot/pkg/config"
	"github.com/mklimuk/board-pilot/pkg/db"
	"github.com/mklimuk/board-pilot/pkg/engine"
	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/meta"
	"github.com/mklimuk/board-pilot/pkg/notify"
	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/state"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "board-pilot",
	Short: "Keeps a Trello board and a GitHub project telling the same story",
	Long: `board-pilot reconciles a personal Trello board with a GitHub project
and the PR review queue. Project items and review requests become cards,
closed work retires its card, review verdicts move cards between lists, and
manual card moves push status back to the project.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "board-pilot.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(provisionCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs; built once per invocation.
type app struct {
	cfg    *config.Config
	trello *trello.Client
	github *gh.Client
	store  *state.Store
	repo   *db.Repository
	engine *engine.Engine
	git    *backup.GitManager
	tg     *notify.Telegram

	closers []func()
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
}

// openLedger builds the read-only part of the app: config plus the sqlite
// ledger. Commands that never talk to the APIs use this directly.
func openLedger() (*app, error) {
	cfg, err := config.FromFile(cfgPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: state.NewStore(cfg.State.Dir)}

	database, err := db.NewDB(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { database.Close() })
	a.repo = db.NewRepository(database)
	return a, nil
}

func setup(allowCreate bool) (*app, error) {
	a, err := openLedger()
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	creds, err := config.LoadCredentials(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.trello = trello.NewClient(creds.TrelloKey, creds.TrelloToken)
	a.github = gh.NewClient(cfg.GitHub.Host, creds.GitHubToken)

	if cfg.State.GitBackup {
		a.git = backup.NewGitManager(cfg.State.Dir)
	}

	var announcers notify.Fanout
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(creds.TelegramToken, cfg.Notify.Telegram.ChatID)
		if err != nil {
			a.close()
			return nil, err
		}
		a.tg = tg
		announcers = append(announcers, tg)
	}
	if cfg.Notify.Discord.Enabled {
		dc, err := notify.NewDiscord(creds.DiscordToken, cfg.Notify.Discord.ChannelID)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { dc.Close() })
		announcers = append(announcers, dc)
	}

	opts := engine.Options{
		Trello:      a.trello,
		GitHub:      a.github,
		Store:       a.store,
		Mapper:      policy.NewMapper(cfg.Board.Aliases),
		BoardID:     cfg.Board.ID,
		ProjectID:   cfg.GitHub.ProjectID,
		Host:        cfg.GitHub.Host,
		AllowCreate: allowCreate,
	}
	if len(announcers) > 0 {
		opts.Announce = announcers.Announce
	}
	a.engine = engine.New(opts)
	return a, nil
}

// runOnce executes one reconciliation and records the outcome in the ledger
// and, when enabled, the git backup.
func (a *app) runOnce(ctx context.Context) error {
	stats, err := a.engine.Run(ctx)
	if err != nil {
		return err
	}
	if err := a.repo.RecordRun(db.RunRecord{
		StartedAt:    stats.Started,
		FinishedAt:   stats.Finished,
		Created:      stats.Created,
		Updated:      stats.Updated,
		Moved:        stats.Moved,
		StatusPushes: stats.StatusPushes,
		Errors:       stats.Errors,
	}); err != nil {
		log.Errorf("record run: %v", err)
	}
	if a.git != nil {
		if err := a.git.Backup(""); err != nil {
			log.Errorf("state backup: %v", err)
		}
	}
	return nil
}

// statusReport answers the notifier /status command from the run ledger.
func (a *app) statusReport() string {
	run, err := a.repo.LatestRun()
	if err != nil {
		return "status unavailable: " + err.Error()
	}
	if run == nil {
		return "no runs recorded yet"
	}
	return notify.FormatRunSummary(run.FinishedAt,
		run.Created, run.Updated, run.Moved, run.StatusPushes, run.Errors)
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.close()
			return a.runOnce(cmd.Context())
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reconcile on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.tg != nil {
				a.tg.StartStatusPoll(a.statusReport)
				defer a.tg.Stop()
			}

			interval := a.cfg.Watch.Interval.Std()
			log.Infof("watching, interval %s", interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			if err := a.runOnce(ctx); err != nil {
				log.Errorf("run failed: %v", err)
			}
			for {
				select {
				case <-ctx.Done():
					log.Info("shutting down")
					return nil
				case <-ticker.C:
					if err := a.runOnce(ctx); err != nil {
						log.Errorf("run failed: %v", err)
					}
				}
			}
		},
	}
}

func provisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create any missing required lists and labels on the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(true)
			if err != nil {
				return err
			}
			defer a.close()

			bctx, err := board.Load(cmd.Context(), a.trello, policy.NewMapper(a.cfg.Board.Aliases), a.cfg.Board.ID, true)
			if err != nil {
				return err
			}
			for _, name := range policy.RequiredLists {
				fmt.Printf("list %-12s %s\n", name, bctx.ListID(name))
			}
			for _, name := range policy.RequiredLabels {
				fmt.Printf("label %-11s %s\n", name, bctx.LabelID(name))
			}
			return nil
		},
	}
}

func archiveCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive Done cards that have been idle past the cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			bctx, err := board.Load(ctx, a.trello, policy.NewMapper(a.cfg.Board.Aliases), a.cfg.Board.ID, false)
			if err != nil {
				return err
			}
			doneID := bctx.ListID(policy.ListDone)

			cards, err := a.trello.BoardCards(ctx, a.cfg.Board.ID)
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-olderThan)
			archived := 0
			for _, card := range cards {
				if card.IDList != doneID || card.DateLastActivity.After(cutoff) {
					continue
				}
				if err := a.trello.ArchiveCard(ctx, card.ID); err != nil {
					log.Errorf("archive %s: %v", card.ID, err)
					continue
				}
				syncURL := ""
				if m := meta.Parse(card.Desc); m != nil {
					syncURL = m.URL
				}
				if err := a.repo.RecordArchived(card.ID, card.Name, syncURL); err != nil {
					log.Errorf("record archived %s: %v", card.ID, err)
				}
				archived++
			}
			fmt.Printf("archived %d cards idle since %s\n", archived, cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 14*24*time.Hour, "idle time before a Done card is archived")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent reconciliation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openLedger()
			if err != nil {
				return err
			}
			defer a.close()

			runs, err := a.repo.RecentRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %6s  created=%d updated=%d moved=%d pushed=%d errors=%d\n",
					r.StartedAt.Format("2006-01-02 15:04:05"),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
					r.Created, r.Updated, r.Moved, r.StatusPushes, r.Errors)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
