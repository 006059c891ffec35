package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jellylink/jellylink/internal/config"
	"github.com/jellylink/jellylink/internal/jellyfin"
	"github.com/jellylink/jellylink/internal/logging"
	"github.com/jellylink/jellylink/internal/provider"
	jfsource "github.com/jellylink/jellylink/internal/providers/jellyfin"
	"github.com/jellylink/jellylink/internal/server"
	"github.com/jellylink/jellylink/internal/ui"
)

var version = "0.1.0"

const (
	exitFailure = 1
	exitNoMatch = 2
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Jellylink - Jellyfin search source for Lavalink hosts

Usage: jellylink [options]

Options:
  -config string
        Path to config file (default: ~/.config/jellylink/config.toml)
  -version
        Print version and exit

Diagnostics:
  -doctor
        Check configuration and try to authenticate against Jellyfin

Resolving:
  -resolve string
        Resolve an identifier (e.g. "jfsearch:moonlight sonata") and print the track.
        Exits 2 when nothing matches
  -serve
        Run the HTTP bridge on server.addr

Examples:
  jellylink --doctor
  jellylink --resolve "jfsearch:moonlight sonata"
  jellylink --serve

`)
	}

	cfgPath := flag.String("config", "", "")
	doctor := flag.Bool("doctor", false, "")
	resolve := flag.String("resolve", "", "")
	serve := flag.Bool("serve", false, "")
	showVersion := flag.Bool("version", false, "")
	flag.Parse()

	if *showVersion {
		fmt.Println("jellylink", version)
		return
	}

	cfg, resolvedPath, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, logFile, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer logFile.Close()
	logger.Info("starting jellylink", slog.String("config", resolvedPath), slog.String("version", version))

	client := jellyfin.NewClient(cfg.Jellyfin, logger)
	store := jellyfin.NewMetadataStore()
	source := jfsource.New(client, store, logger)
	defer source.Shutdown()
	info := jfsource.NewPluginInfo(store, cfg.Jellyfin.BaseURL)

	// NO_COLOR env var overrides the configured theme
	noColor := os.Getenv("NO_COLOR") != "" || cfg.UI.NoColor
	theme := ui.GetTheme(cfg.UI.Theme, noColor)

	switch {
	case *doctor:
		if !runDoctor(cfg, resolvedPath, client, theme) {
			source.Shutdown()
			logFile.Close()
			os.Exit(1)
		}
	case *resolve != "":
		if err := runResolve(source, info, *resolve, cfg.Jellyfin.RequestTimeout()); err != nil {
			code := resolveExitCode(err)
			if code != exitNoMatch {
				logger.Error("resolve", slog.Any("err", err))
			}
			source.Shutdown()
			logFile.Close()
			fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
			os.Exit(code)
		}
	case *serve:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := server.New(server.Config{
			Addr:   cfg.Server.Addr,
			Source: source,
			Info:   info,
			Logger: logger,
		})
		if err := srv.Run(ctx); err != nil {
			logger.Error("serve", slog.Any("err", err))
			source.Shutdown()
			logFile.Close()
			log.Fatalf("serve: %v", err)
		}
	default:
		flag.Usage()
	}
}

func runDoctor(cfg *config.Config, path string, client *jellyfin.Client, theme ui.Theme) bool {
	fmt.Println(theme.Title.Render("Jellylink doctor"))
	fmt.Println(theme.Check("Config file", ui.StatusOK, path))
	if !ui.ValidTheme(cfg.UI.Theme) {
		fmt.Println(theme.Check("Theme", ui.StatusWarn,
			fmt.Sprintf("unknown theme %q, using %s (available: %s)",
				cfg.UI.Theme, theme.Name, strings.Join(ui.ThemeNames(), ", "))))
	}

	jf := cfg.Jellyfin
	if !jf.HasCredentials() {
		fmt.Println(theme.Check("Credentials", ui.StatusFail, "set jellyfin.base_url, username and password"))
		return false
	}
	fmt.Println(theme.Check("Credentials", ui.StatusOK, jf.Username+" @ "+client.BaseURL()))

	ctx, cancel := context.WithTimeout(context.Background(), jf.RequestTimeout()+time.Second)
	defer cancel()
	if !client.EnsureAuthenticated(ctx) {
		fmt.Println(theme.Check("Authentication", ui.StatusFail, "see log for the server response"))
		return false
	}
	fmt.Println(theme.Check("Authentication", ui.StatusOK, "user "+client.UserID()))

	if jf.TokenRefreshMinutes == 0 {
		fmt.Println(theme.Check("Token refresh", ui.StatusWarn, "disabled, tokens are only renewed after a 401"))
	} else {
		fmt.Println(theme.Check("Token refresh", ui.StatusOK, fmt.Sprintf("every %d min", jf.TokenRefreshMinutes)))
	}
	return true
}

func runResolve(source *jfsource.SourceManager, info provider.PluginInfoModifier, identifier string, timeout time.Duration) error {
	// One auth round trip, one search and at most one retry.
	ctx, cancel := context.WithTimeout(context.Background(), 4*timeout)
	defer cancel()

	item, err := source.LoadItem(ctx, provider.AudioReference{Identifier: identifier})
	if err != nil {
		return err
	}
	track, ok := item.(provider.AudioTrack)
	if !ok {
		return fmt.Errorf("no track for %q: %w", identifier, provider.ErrNotFound)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"info":       track.Info(),
		"pluginInfo": info.ModifyAudioTrackPluginInfo(track),
	})
}

func resolveExitCode(err error) int {
	if provider.IsNotFound(err) {
		return exitNoMatch
	}
	return exitFailure
}
