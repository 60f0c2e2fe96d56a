// ergochat is a minimal interactive chat CLI. It wires config, logging,
// a provider transport, telemetry, the tool registry, and the
// conversation loop, with optional session persistence.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit"
	"github.com/ergokit/ergokit/config"
	"github.com/ergokit/ergokit/conversations"
	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/logger"
	"github.com/ergokit/ergokit/mcp"
	"github.com/ergokit/ergokit/migrations"
	"github.com/ergokit/ergokit/telemetry"
	"github.com/ergokit/ergokit/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.DefaultConfigPath(), "Path to config file")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		sessionID  = flag.String("session", "", "Session ID to resume (requires store.path in config)")
		workspace  = flag.String("workspace", "", "Directory to expose through filesystem tools")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	log, err := logger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	transport, err := config.NewClient(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create provider client: %w", err)
	}

	registry := tools.NewRegistry(log)
	if *workspace != "" {
		registry.RegisterFilesystemTools(*workspace)
	}
	if err := connectMCPServers(cfg, registry, log); err != nil {
		return err
	}

	client := ergokit.New(transport, config.Model(cfg),
		ergokit.WithLogger(log),
		ergokit.WithTools(registry),
		ergokit.WithInterceptor(telemetry.NewLoggingInterceptor(log)),
		ergokit.WithInterceptor(telemetry.NewMetricsInterceptor(prometheus.DefaultRegisterer)),
		ergokit.WithMiddleware(telemetry.NewTracingMiddleware()),
		ergokit.WithRetry(llm.RetryConfig{
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: time.Duration(cfg.Retry.InitialInterval) * time.Millisecond,
			MaxInterval:     time.Duration(cfg.Retry.MaxInterval) * time.Millisecond,
		}),
	)

	var sessionOpts []ergokit.SessionOption
	var store *conversations.Store
	if cfg.Store.Path != "" {
		db, err := conversations.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		defer db.Close() //nolint:errcheck // Shutdown path
		if err := migrations.RunMigrations(db, cfg.Store.MigrationsPath, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		store = conversations.NewStore(db)

		if *sessionID != "" {
			history, err := store.LoadMessages(context.Background(), *sessionID)
			if err != nil {
				return fmt.Errorf("failed to load session %q: %w", *sessionID, err)
			}
			sessionOpts = append(sessionOpts,
				ergokit.WithSessionID(*sessionID),
				ergokit.WithHistory(history))
			log.Info().Str("session_id", *sessionID).Int("messages", len(history)).
				Msg("Resumed session")
		}
	}

	session := client.NewSession(sessionOpts...)
	fmt.Printf("session %s: type a message, ctrl-d to exit\n", session.ID())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.ChatTimeout)*time.Second)
		before := len(session.History())
		answer, err := session.Send(ctx, text)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(answer)

		if store != nil {
			if err := store.AppendMessages(context.Background(), session.ID(),
				session.History()[before:]...); err != nil {
				log.Error().Err(err).Msg("Failed to persist turn")
			}
		}
	}
	return scanner.Err()
}

// connectMCPServers starts each configured MCP server and registers its
// tools. A server that fails to start is logged and skipped so one bad
// server does not take down the chat.
func connectMCPServers(cfg *config.Config, registry *tools.Registry, log zerolog.Logger) error {
	ctx := context.Background()
	for name, serverCfg := range cfg.MCPServers {
		var (
			client mcp.MCPClient
			err    error
		)
		switch {
		case serverCfg.Command != "":
			client, err = mcp.NewStdioClient(log, serverCfg.Command, nil, serverCfg.Env)
		case serverCfg.URL != "":
			client, err = mcp.NewHTTPClient(log, serverCfg.URL)
		default:
			log.Warn().Str("server", name).Msg("MCP server has neither command nor url, skipping")
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("server", name).Msg("Failed to create MCP client")
			continue
		}
		if err := client.Start(ctx); err != nil {
			log.Error().Err(err).Str("server", name).Msg("Failed to start MCP server")
			continue
		}
		if err := registry.RegisterMCP(ctx, client); err != nil {
			log.Error().Err(err).Str("server", name).Msg("Failed to register MCP tools")
			continue
		}
		log.Info().Str("server", name).Msg("Connected MCP server")
	}
	return nil
}
