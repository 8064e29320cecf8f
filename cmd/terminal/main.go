package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gakushoku/kitchen-terminal/internal/api"
	"github.com/gakushoku/kitchen-terminal/internal/config"
	"github.com/gakushoku/kitchen-terminal/internal/events"
	"github.com/gakushoku/kitchen-terminal/internal/gate"
	"github.com/gakushoku/kitchen-terminal/internal/order"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
	"github.com/gakushoku/kitchen-terminal/internal/profile"
	"github.com/gakushoku/kitchen-terminal/internal/ticket"
	"github.com/gakushoku/kitchen-terminal/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	// A local .env is convenient on kitchen machines; absence is fine.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	useTUI := hasFlag("--tui")

	logger := newLogger(cfg.Log.Level, os.Stderr)
	slog.SetDefault(logger)

	// Backend client doubles as order lookup, payment lookup and the
	// post-print notification target.
	client := order.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	resolver := order.NewResolver(client, client, logger)

	var publisher *events.Publisher
	if cfg.Events.URL != "" {
		publisher, err = events.NewPublisher(cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("⚠️ Event bus unavailable, continuing without it", "url", cfg.Events.URL, "error", err)
		} else {
			defer publisher.Close()
		}
	}

	var srv *api.Server

	session := printer.NewSession(logger,
		printer.WithJobTimeout(cfg.Printer.JobTimeout),
		printer.WithNoticeHandler(func(n printer.Notice) {
			publisher.PrinterNotice(string(n))
			if srv != nil {
				srv.BroadcastPrinterNotice(n)
			}
		}),
	)

	history := ticket.NewHistory()
	allocator := ticket.NewAllocator()
	decoder := gate.NewLatestTokenDecoder()

	g := gate.New(resolver, session, history, allocator, decoder, cfg.Gate.ScanInterval, logger,
		gate.WithCooldowns(cfg.Gate.SuccessCooldown, cfg.Gate.FailureCooldown),
		gate.WithNotifier(client),
		gate.WithPublisher(publisher),
		gate.WithUpdateHandler(func(st gate.Status) {
			if srv != nil {
				srv.BroadcastStatus(st)
			}
		}),
	)
	defer g.Close()

	var profiles *profile.Store
	if cfg.Printer.ProfilePath != "" {
		profiles, err = profile.Open(cfg.Printer.ProfilePath)
		if err != nil {
			logger.Warn("⚠️ Printer profile store unavailable", "path", cfg.Printer.ProfilePath, "error", err)
		}
	}

	srv = api.NewServer(g, session, decoder, resolver, history, profiles, logger)

	if cfg.Printer.AutoConnect {
		connectConfiguredPrinter(cfg.Printer, session, logger)
	}

	serverErrChan := make(chan error, 1)
	go func() {
		addr := "0.0.0.0:" + cfg.Server.Port
		logger.Info("🚀 Starting API server", "addr", addr, "version", Version)
		if err := srv.Run(addr); err != nil {
			serverErrChan <- err
		}
	}()

	g.StartScanning()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if useTUI {
		console := tui.New(g, session, history, cfg.Server.Port)

		// Route logs into the console panel instead of the terminal.
		slog.SetDefault(newLogger(cfg.Log.Level, console.LogWriter()))

		tuiDone := make(chan struct{})
		go func() {
			if err := console.Run(); err != nil {
				logger.Error("TUI error", "error", err)
			}
			close(tuiDone)
		}()

		select {
		case err := <-serverErrChan:
			logger.Error("❌ Server error", "error", err)
			os.Exit(1)
		case <-sigChan:
		case <-tuiDone:
		}
	} else {
		select {
		case err := <-serverErrChan:
			logger.Error("❌ Server error", "error", err)
			os.Exit(1)
		case <-sigChan:
		}
	}

	logger.Info("🛑 Shutting down")
	g.Close()
	session.Disconnect()
}

// connectConfiguredPrinter dials the endpoint from the environment. In dry
// run mode the memory transport swallows jobs without hardware.
func connectConfiguredPrinter(pc config.PrinterConfig, session *printer.Session, logger *slog.Logger) {
	ep := printer.Endpoint{
		Transport: pc.Transport,
		Host:      pc.Host,
		Port:      pc.Port,
		Device:    pc.Device,
		Baud:      pc.Baud,
		VendorID:  pc.VID,
		ProductID: pc.PID,
	}
	if pc.DryRun {
		ep = printer.Endpoint{Transport: "memory"}
		logger.Info("🧪 Dry run: using in-memory printer")
	}

	if err := session.Connect(ep); err != nil {
		// No auto-retry; the operator reconnects from the display or TUI.
		logger.Warn("⚠️ Printer not connected at startup", "error", err)
	}
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func hasFlag(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}
