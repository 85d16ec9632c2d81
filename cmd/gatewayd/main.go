// gatewayd hosts a gateway server: it listens for clients, serves the
// command protocol and shuts down on SIGINT/SIGTERM or a shutdown command.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/gobridge/callback"
	"github.com/chazu/gobridge/config"
	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/reflection"
	"github.com/chazu/gobridge/server"
)

var log = commonlog.GetLogger("gobridge.gatewayd")

func main() {
	configPath := flag.String("config", "", "Path to gobridge.toml (default: search upwards from the working directory)")
	verbose := flag.Int("v", -1, "Log verbosity, overrides the config file")
	port := flag.Int("port", -1, "Listen port, overrides the config file (0 picks a free port)")
	auth := flag.Bool("auth", false, "Require an auth token, generating one when the config has none")
	describe := flag.String("describe", "", "Write the CBOR class models to this file and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gatewayd [options]\n\n")
		fmt.Fprintf(os.Stderr, "Starts a gateway server with the built-in classes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gatewayd                       # Serve on 127.0.0.1:25333\n")
		fmt.Fprintf(os.Stderr, "  gatewayd -port 0 -auth         # Free port, print a generated token\n")
		fmt.Fprintf(os.Stderr, "  gatewayd -describe models.cbor # Dump class models for gatewaygen -models\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose >= 0 {
		cfg.Log.Verbosity = *verbose
	}
	if *port >= 0 {
		cfg.Server.Port = *port
	}
	var logPath *string
	if cfg.Log.Path != "" {
		logPath = &cfg.Log.Path
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	registry := reflection.NewRegistry()
	if *describe != "" {
		if err := writeModels(registry, *describe); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *auth && cfg.Server.AuthToken == "" {
		cfg.Server.AuthToken = uuid.NewString()
		fmt.Println(cfg.Server.AuthToken)
	}

	if err := run(cfg, registry); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

func writeModels(registry *reflection.Registry, path string) error {
	data, err := reflection.MarshalModels(registry.BuildModels())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func run(cfg *config.Config, registry *reflection.Registry) error {
	var client *callback.Client
	if cfg.Callback.Enabled {
		client = callback.NewClient(callback.Options{
			Address:        cfg.CallbackAddress(),
			ConnectTimeout: cfg.Callback.ConnectTimeout.Duration,
			ReadTimeout:    cfg.Callback.ReadTimeout.Duration,
			MaxIdle:        cfg.Callback.MaxIdle,
		})
		if idle := cfg.Callback.IdleTimeout.Duration; idle > 0 {
			stop := client.StartCleaner(idle, idle)
			defer stop()
		}
	}

	gw := gateway.New(reflection.NewEngine(registry, cfg.Cache.Capacity), nil, client)
	for _, imp := range cfg.View.Imports {
		gw.DefaultView().Import(imp)
	}

	opts := []server.Option{
		server.WithAuthToken(cfg.Server.AuthToken),
		server.WithReadTimeout(cfg.Server.ReadTimeout.Duration),
		server.WithMaxArrayLength(cfg.Server.MaxArrayLength),
	}
	if cfg.Server.Executor {
		opts = append(opts, server.WithExecutor(server.NewExecutor(), cfg.Server.ExecutorWait.Duration))
	}
	srv := server.New(gw, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(cfg.ServerAddress())
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			log.Notice("stopping gateway")
		case <-srv.Done():
		}
		srv.Shutdown()
		return nil
	})
	return g.Wait()
}
