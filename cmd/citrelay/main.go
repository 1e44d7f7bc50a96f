// citrelay is a development terminal relay: it accepts the client's
// WebSocket stream and attaches it to an SSH shell on the target host.
//
//	citrelay serve [--config relay.json] [--listen addr] [--known-hosts file]
//	citrelay add-key --server-id N (--path key | --key-file key) [--description text]
//
// Inline keys are encrypted with a master key taken from $CITRELAY_MASTER_KEY
// or prompted for on the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"citspace/internal/config"
	"citspace/internal/crypto"
	"citspace/internal/logging"
	"citspace/internal/models"
	"citspace/internal/relay"

	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const envMasterKey = "CITRELAY_MASTER_KEY"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}
	switch args[0] {
	case "serve":
		return serve(args[1:])
	case "add-key":
		return addKey(args[1:])
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  citrelay serve [--config path] [--listen addr] [--known-hosts path] [--log-level level]
  citrelay add-key --server-id N (--path key | --key-file key) [--description text] [--config path]`)
}

func defaultConfigPath() string {
	path, err := config.DefaultRelayConfigPath()
	if err != nil {
		return config.DefaultRelayFileName
	}
	return path
}

func serve(args []string) error {
	var configPath, listen, knownHosts, logLevel string
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", defaultConfigPath(), "relay config file")
	flagSet.StringVar(&listen, "listen", "", "listen address (overrides config)")
	flagSet.StringVar(&knownHosts, "known-hosts", "", "known_hosts file for host key checks (overrides config)")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, logLevel)
	cfg, err := config.LoadRelay(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if knownHosts != "" {
		cfg.KnownHostsPath = knownHosts
	}

	var cipher *crypto.Cipher
	if hasInlineKeys(cfg.Keys) {
		master, err := masterKey()
		if err != nil {
			return err
		}
		cipher = crypto.NewCipher(master)
	}

	srv := relay.NewServer(relay.Options{
		Markers: cfg.Markers,
		Keys:    relay.NewConfigKeyStore(cfg.Keys, cipher),
		Shells: &relay.SSHDialer{
			KnownHostsPath: cfg.KnownHostsPath,
			Timeout:        time.Duration(cfg.DialTimeoutSec) * time.Second,
			Logger:         logger,
		},
		Logger: logger,
	})
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, srv)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", cfg.Listen, "path", cfg.Path, "keys", len(cfg.Keys))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
		return nil
	}
}

func addKey(args []string) error {
	var configPath, keyPath, keyFile, description string
	var serverID int
	flagSet := pflag.NewFlagSet("add-key", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", defaultConfigPath(), "relay config file")
	flagSet.IntVar(&serverID, "server-id", 0, "server ID the key belongs to")
	flagSet.StringVar(&keyPath, "path", "", "reference a private key file by path")
	flagSet.StringVar(&keyFile, "key-file", "", "store this private key inline, encrypted")
	flagSet.StringVar(&description, "description", "", "free-form note")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadRelay(configPath)
	if err != nil {
		return err
	}

	var cipher *crypto.Cipher
	var keyData string
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return fmt.Errorf("read key file: %w", err)
		}
		keyData = string(data)
		master, err := masterKey()
		if err != nil {
			return err
		}
		cipher = crypto.NewCipher(master)
	}

	key, err := models.NewKey(serverID, description, keyPath, keyData, cipher)
	if err != nil {
		return err
	}
	if err := config.PutKey(cfg, *key); err != nil {
		return err
	}
	if err := config.SaveRelay(configPath, cfg); err != nil {
		return err
	}
	slog.Info("key stored", "server_id", serverID, "config", configPath, "inline", key.IsLocal())
	return nil
}

func hasInlineKeys(keys []models.Key) bool {
	for _, k := range keys {
		if k.IsLocal() {
			return true
		}
	}
	return false
}

func masterKey() (string, error) {
	if v := os.Getenv(envMasterKey); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("master key required: set %s", envMasterKey)
	}
	fmt.Fprint(os.Stderr, "Master key: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read master key: %w", err)
	}
	master := strings.TrimSpace(string(raw))
	if master == "" {
		return "", errors.New("master key cannot be empty")
	}
	return master, nil
}
