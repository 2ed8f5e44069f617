package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"outlookterm/internal/auth"
	"outlookterm/internal/config"
	"outlookterm/internal/model"
	"outlookterm/internal/outlook"
	"outlookterm/internal/present"
	"outlookterm/internal/store"
	"outlookterm/internal/tui"
	"outlookterm/internal/util"
)

const tokenKey = "token"

// env is what every command needs after configuration is loaded.
type env struct {
	cfg     *config.Config
	log     *logrus.Entry
	logFile io.Closer
}

func (e *env) Close() {
	if e.logFile != nil {
		e.logFile.Close()
	}
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	log, f, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, logFile: f}, nil
}

// newLogger writes to the configured log file since the TUI owns the
// terminal.
func newLogger(cfg *config.Config) (*logrus.Entry, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log_level: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(f)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return logrus.NewEntry(logger), f, nil
}

func openTokenCache(cfg *config.Config) (auth.TokenCache, error) {
	if cfg.TokenStore == config.TokenStoreFile {
		return auth.NewFileCache(filepath.Join(cfg.Dir, "token.json")), nil
	}
	return auth.OpenKeyringCache(cfg.Dir, tokenKey)
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	db, err := store.NewSQLiteStore(filepath.Join(cfg.Dir, "outlookterm.db"))
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return db, nil
}

// newClient wires the token acquirer into a mail client. Each token request
// is bounded by auth_timeout and each HTTP request by fetch_timeout.
func newClient(e *env, prompter auth.Prompter) (*outlook.Client, error) {
	cfg := e.cfg
	cache, err := openTokenCache(cfg)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	broker := &auth.OAuthBroker{
		Tenant:       cfg.Tenant,
		ClientSecret: cfg.ClientSecret,
		RedirectPort: cfg.RedirectPort,
		Cache:        cache,
		Prompter:     prompter,
		OpenBrowser:  util.OpenBrowser,
		HTTPClient:   httpClient,
		Log:          e.log,
	}
	acquirer := auth.NewAcquirer(broker, cfg.Authority, cfg.Resource, cfg.ClientID, e.log)
	tokens := func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.AuthTimeout)
		defer cancel()
		return acquirer.Token(ctx)
	}
	return outlook.NewClient(cfg.BaseURL, tokens,
		outlook.WithHTTPClient(httpClient),
		outlook.WithRateLimit(cfg.RequestsPerSecond, 1),
		outlook.WithLogger(e.log),
	), nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	db, err := openStore(e.cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	prompter := tui.NewPrompter()
	client, err := newClient(e, prompter)
	if err != nil {
		return err
	}

	appModel := tui.NewAppModel(tui.Options{
		Fetcher:  client,
		Store:    db,
		Prompter: prompter,
		OpenURL:  util.OpenBrowser,
		Log:      e.log,
	})
	p := tea.NewProgram(appModel, tea.WithAltScreen())
	appModel.SetProgram(p)
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil && !errors.Is(m.Err, context.Canceled) {
		return m.Err
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := newClient(e, auth.NewCLIPrompter(os.Stdin, os.Stderr))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	page, err := client.FetchRecentInbox(ctx)
	if err != nil {
		return err
	}

	if db, err := openStore(e.cfg); err == nil {
		if err := db.ReplacePage(ctx, page); err != nil {
			e.log.WithError(err).Warn("saving inbox page")
		}
		db.Close()
	} else {
		e.log.WithError(err).Warn("opening store")
	}
	return printPage(cmd.OutOrStdout(), page, time.Now())
}

func runCached(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	db, err := openStore(e.cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	page, err := db.LoadPage(cmd.Context())
	if err != nil {
		return fmt.Errorf("load cached inbox: %w", err)
	}
	out := cmd.OutOrStdout()
	if page.FetchedAt.IsZero() {
		fmt.Fprintln(out, "No cached inbox yet. Run outlookterm or outlookterm list first.")
		return nil
	}
	now := time.Now()
	fmt.Fprintf(out, "Last refreshed %s\n\n", present.RelativeDate(&page.FetchedAt, now))
	return printPage(out, page, now)
}

func runLogout(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	cache, err := openTokenCache(e.cfg)
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if db, err := openStore(e.cfg); err == nil {
		if err := db.Clear(cmd.Context()); err != nil {
			e.log.WithError(err).Warn("clearing cached inbox")
		}
		db.Close()
	}
	e.log.Info("signed out")
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}

// printPage writes one line per message: unread marker, date, sender and
// subject.
func printPage(w io.Writer, page model.Page, now time.Time) error {
	if len(page.Messages) == 0 {
		_, err := fmt.Fprintln(w, "Inbox is empty.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, msg := range page.Messages {
		marker := present.ToVisibility(msg.Unread()).Render("*")
		attach := present.ToVisibility(msg.HasAttachments).Render(" [att]")
		subject := strings.TrimSpace(present.StripControl(msg.Subject))
		if subject == "" {
			subject = "(no subject)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\n", marker,
			present.RelativeDate(msg.Received, now),
			present.StripControl(util.DisplayName(msg.From.Name, msg.From.Address)),
			subject, attach)
	}
	if page.HasMore {
		fmt.Fprintf(tw, "\t\t\t(showing the %d most recent)\n", len(page.Messages))
	}
	return tw.Flush()
}
