// citspace opens terminal sessions to CITspace servers through the
// terminal relay. Servers come from the client configuration file; the
// relay endpoint is derived from the API base URL.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"citspace/internal/config"
	"citspace/internal/logging"
	"citspace/internal/models"
	"citspace/internal/session"
	"citspace/internal/terminal"
	"citspace/internal/ui"
	"citspace/internal/ui/messages"
	"citspace/internal/ui/views"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, apiURL, serverRef string
	var dialTimeout time.Duration

	flagSet := pflag.NewFlagSet("citspace", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/citspace/config.json)")
	flagSet.StringVar(&apiURL, "api-url", "", "API base URL, overrides config and $"+config.EnvAPIURL)
	flagSet.StringVarP(&serverRef, "server", "s", "", "open a terminal to this server (name or ID) on start")
	flagSet.DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "relay connect timeout")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg := config.NewManager(configPath)
	if err := cfg.Load(); err != nil {
		return err
	}
	cfg.ApplyEnv()
	if apiURL != "" {
		cfg.Config().APIURL = apiURL
	}
	c := cfg.Config()

	relayURL, err := session.RelayURL(c.APIURL, c.RelayPath)
	if err != nil {
		return err
	}

	logPath := filepath.Join(filepath.Dir(cfg.GetConfigPath()), config.DefaultLogFileName)
	logger, closer, err := logging.OpenFile(logPath, c.LogLevel)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closer.Close()
	logger.Info("starting", "config", cfg.GetConfigPath(), "relay", relayURL)

	var open *models.Server
	if serverRef != "" {
		s, err := cfg.FindServer(serverRef)
		if err != nil {
			return err
		}
		open = &s
	}

	// Post blocks until the program's loop takes the event.
	var program *tea.Program
	model := ui.NewModel(cfg, session.Options{
		RelayURL:    relayURL,
		Markers:     c.Markers,
		ClosePolicy: c.ClosePolicy,
		Dialer:      session.WebSocketDialer{},
		Post:        func(ev session.Event) { program.Send(messages.StreamMsg{Event: ev}) },
		DialTimeout: dialTimeout,
		Logger:      logger,
	})
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		model.SetTerminalSize(w, h)
	}

	app := views.NewApp(model, terminal.RealClock{}, open)
	program = tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = program.Run()
	model.Session().Close()
	if err != nil {
		logger.Error("program exited", "error", err)
		return err
	}
	return nil
}
