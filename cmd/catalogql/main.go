package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/openmerce/catalogql/internal/auth"
	"github.com/openmerce/catalogql/internal/eventbus"
	"github.com/openmerce/catalogql/internal/logging"
	"github.com/openmerce/catalogql/internal/media"
	"github.com/openmerce/catalogql/internal/otel"
	"github.com/openmerce/catalogql/internal/resolver"
	"github.com/openmerce/catalogql/internal/schema"
	"github.com/openmerce/catalogql/internal/server"
	"github.com/openmerce/catalogql/internal/store"
)

const rootUsage = `catalogql — GraphQL catalog API

USAGE:
  catalogql <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server backed by Postgres
  print-schema     Write the GraphQL SDL to stdout
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>            HTTP listen address (default: :8080)
  -server.pretty                 Pretty-print JSON responses
  -server.timeout <duration>     Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>     Request body limit in bytes (0 = unlimited)
  -server.cors-origin <origin>   Allowed CORS origin. Repeatable; * allows any
  -server.graphiql <bool>        Serve the GraphiQL IDE on browser GETs (default: true)
  -db.dsn <dsn>                  Postgres connection string (required)
  -media.base-url <url>          Base URL for image and thumbnail links
  -auth.token <token=perm,...>   Grant permissions to a bearer token. Repeatable
  -log.level <level>             Log level: debug, info, warn, error (default: info)
  -otel.endpoint <addr>          OTLP collector endpoint
  -otel.service <name>           OpenTelemetry service name (default: catalogql)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("catalogql", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "print-schema":
		sch, err := resolver.Schema()
		if err != nil {
			return fmt.Errorf("build schema: %w", err)
		}
		fmt.Print(schema.Render(sch))
		return nil
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "print-schema":
		fmt.Println("print-schema takes no flags")
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// tokenFlag accumulates -auth.token grants of the form token=perm1,perm2.
type tokenFlag struct {
	m auth.StaticTokens
}

func (f *tokenFlag) String() string { return "" }

func (f *tokenFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return fmt.Errorf("invalid token grant %q", v)
	}
	var perms []auth.Permission
	for _, p := range strings.Split(parts[1], ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, auth.Permission(p))
		}
	}
	if f.m == nil {
		f.m = auth.StaticTokens{}
	}
	f.m[strings.TrimSpace(parts[0])] = auth.NewPermissionSet(perms...)
	return nil
}

func cmdServe(args []string) error {
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBody := int64(0)
	graphiql := true
	dsn := ""
	mediaBase := ""
	logLevel := "info"
	otelEndpoint := ""
	otelService := "catalogql"
	var corsOrigins stringListFlag
	var tokens tokenFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBody, "server.max-body-bytes", maxBody, "Request body limit in bytes")
	fs.Var(&corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.BoolVar(&graphiql, "server.graphiql", graphiql, "Serve the GraphiQL IDE")
	fs.StringVar(&dsn, "db.dsn", dsn, "Postgres connection string")
	fs.StringVar(&mediaBase, "media.base-url", mediaBase, "Base URL for media links")
	fs.Var(&tokens, "auth.token", "Grant permissions to a bearer token")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if dsn == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-db.dsn is required")
	}

	eventbus.Use(eventbus.New())
	logger, err := logging.Setup(logLevel)
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	res := resolver.New(resolver.Config{
		Stores: store.PostgresStores(db),
		Media:  media.NewBaseURLRenderer(mediaBase),
	})
	sch, err := resolver.Schema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}

	sopts := []server.Option{server.WithGraphiQL(graphiql)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if maxBody > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(maxBody))
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	if len(tokens.m) > 0 {
		sopts = append(sopts, server.WithAuthenticator(tokens.m))
	}

	h, err := server.New(res, sch, sopts...)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	logger.Info("listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, h)
}
