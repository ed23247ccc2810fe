package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/satindergrewal/rtradio/internal/audio"
	"github.com/satindergrewal/rtradio/internal/autodj"
	"github.com/satindergrewal/rtradio/internal/config"
	"github.com/satindergrewal/rtradio/internal/model"
	"github.com/satindergrewal/rtradio/internal/model/remote"
	"github.com/satindergrewal/rtradio/internal/model/synth"
	"github.com/satindergrewal/rtradio/internal/pipeline"
	"github.com/satindergrewal/rtradio/internal/stream"
	"github.com/satindergrewal/rtradio/internal/style"
	"github.com/satindergrewal/rtradio/internal/transport"
)

// Build flags
var version = ""
var commit = ""
var date = ""

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRunCommand("radio")
	cmd.ShortUsage = "radio [flags] [<subcommand>]"
	cmd.Subcommands = []*ffcli.Command{
		newRunCommand("run"),
		newVersionCommand(),
	}
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "radio:", err)
		}
		os.Exit(1)
	}
}

func newRunCommand(name string) *ffcli.Command {
	fs, cfg := config.NewFlagSet(name, flag.ContinueOnError)

	return &ffcli.Command{
		Name:       name,
		ShortUsage: "radio run [flags]",
		ShortHelp:  "generate and stream music until interrupted",
		Options:    config.Options(),
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}
}

func newVersionCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "radio version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("radio starting up", "model", cfg.Model, "transport", cfg.Transport, "genre", cfg.Genre)

	m, err := newModel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	format := m.Config().Format()

	sig := style.NewFileSignal(cfg.GenreFile)
	mux := http.NewServeMux()

	tr, listeners, closeTransport, err := newTransport(cfg, format, mux, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	p, err := pipeline.New(ctx, cfg.Pipeline(), pipeline.Deps{
		Model:     m,
		Signal:    sig,
		Transport: tr,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	sched := autodj.NewScheduler(sig, cfg.Scheduler(), nil, logger)
	go sched.Run(ctx)

	(&api{pub: sig, dj: sched, pipeline: p, listeners: listeners, logger: logger}).register(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http control listening", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	runCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	go func() {
		select {
		case err := <-serveErr:
			stop(fmt.Errorf("http server: %w", err))
		case <-runCtx.Done():
		}
	}()

	err = p.Start(runCtx)
	if err == nil && ctx.Err() == nil {
		err = context.Cause(runCtx)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("radio stopped cleanly")
	return nil
}

// newTransport picks the frame transport. The broadcast transport also
// mounts its listener endpoints on mux.
func newTransport(cfg *config.Config, format audio.Format, mux *http.ServeMux, logger *slog.Logger) (transport.Transport, func() int, func(), error) {
	if cfg.Transport != config.TransportWebRTC {
		return transport.NewPipe(cfg.PipePath, logger), nil, func() {}, nil
	}
	if err := stream.CheckOpusFormat(format); err != nil {
		return nil, nil, nil, fmt.Errorf("webrtc transport: %w", err)
	}
	b := stream.NewBroadcaster()
	opusCfg := stream.DefaultOpusConfig
	opusCfg.Bitrate = cfg.OpusBitrate
	opusCfg.FEC = cfg.OpusFEC
	webrtcHandler := stream.NewWebRTCHandler(b, format, opusCfg, logger)
	mux.Handle("/offer", webrtcHandler)
	mux.Handle("/stream", stream.NewHTTPHandler(b, format, logger))
	return stream.NewTransport(b, format, logger), b.ListenerCount, webrtcHandler.Close, nil
}

func newModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.Model, error) {
	if cfg.Model != config.ModelRemote {
		return synth.New(synth.DefaultConfig), nil
	}

	client := remote.NewClient(cfg.ModelURL, cfg.ModelKey, logger)
	healthCtx, cancel := context.WithTimeout(ctx, cfg.ModelWait)
	defer cancel()
	if err := client.WaitForHealthy(healthCtx, 2*time.Second); err != nil {
		return nil, fmt.Errorf("model server not available: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
