package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hanpama/graphdesk/internal/eventbus"
	"github.com/hanpama/graphdesk/internal/fetcher"
	"github.com/hanpama/graphdesk/internal/introspect"
	"github.com/hanpama/graphdesk/internal/language"
	"github.com/hanpama/graphdesk/internal/otel"
	"github.com/hanpama/graphdesk/internal/server"
	"github.com/hanpama/graphdesk/internal/storage"
	"github.com/hanpama/graphdesk/internal/workbench"
)

const rootUsage = `graphdesk — GraphQL workbench daemon & tools

USAGE:
  graphdesk <command> [flags]

COMMANDS:
  serve            Run the workbench HTTP API against an upstream GraphQL endpoint
  introspect       Fetch an upstream schema via introspection and print it as SDL
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -upstream.url <url>          Upstream GraphQL endpoint (required)
  -upstream.ws-url <url>       Upstream graphql-transport-ws endpoint for
                               subscriptions. When set, subscription operations
                               are routed over the socket
  -upstream.header <kv>        Header sent with every upstream request, as
                               "Name: value". Repeatable
  -server.addr <addr>          HTTP listen address (default: :8080)
  -server.pretty               Pretty-print JSON responses
  -server.timeout <duration>   Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>   Request body limit in bytes (default: 1048576)
  -cors.origin <origin>        Allowed CORS origin. Repeatable; * allows any
  -storage.path <dir>          Badger database directory for persisted state.
                               Empty keeps state in memory only
  -workbench.default-query <q> Seed query for fresh tabs
  -workbench.persist-headers   Persist header editor contents across sessions
  -otel.endpoint <addr>        OTLP collector endpoint
  -otel.service <name>         OpenTelemetry service name (default: graphdesk)
`

const introspectUsage = `introspect FLAGS:
  -upstream.url <url>          Upstream GraphQL endpoint (required)
  -upstream.header <kv>        Header sent with the request, as "Name: value".
                               Repeatable
  -operation-name <name>       Introspection operation name (default: IntrospectionQuery)
  -input-value-deprecation     Request deprecated input values
  -schema-description          Request the schema description
  -out <file>                  Write SDL to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("graphdesk", flag.ContinueOnError)
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
	case "introspect":
		return cmdIntrospect(cmdArgs)
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
	case "introspect":
		fmt.Print(introspectUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type headerFlag map[string]string

func (h *headerFlag) String() string { return "" }

func (h *headerFlag) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	if !ok {
		return fmt.Errorf("invalid header %q, want \"Name: value\"", v)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return fmt.Errorf("invalid header %q, want \"Name: value\"", v)
	}
	if *h == nil {
		*h = map[string]string{}
	}
	(*h)[name] = value
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdServe(args []string) error {
	upstreamURL := ""
	upstreamWSURL := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBodyBytes := int64(1 << 20)
	storagePath := ""
	defaultQuery := ""
	persistHeaders := false
	otelEndpoint := ""
	otelService := "graphdesk"
	var headers headerFlag
	var corsOrigins stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&upstreamURL, "upstream.url", upstreamURL, "Upstream GraphQL endpoint")
	fs.StringVar(&upstreamWSURL, "upstream.ws-url", upstreamWSURL, "Upstream websocket endpoint")
	fs.Var(&headers, "upstream.header", "Header sent with every upstream request")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBodyBytes, "server.max-body-bytes", maxBodyBytes, "Request body limit")
	fs.Var(&corsOrigins, "cors.origin", "Allowed CORS origin")
	fs.StringVar(&storagePath, "storage.path", storagePath, "Badger database directory")
	fs.StringVar(&defaultQuery, "workbench.default-query", defaultQuery, "Seed query for fresh tabs")
	fs.BoolVar(&persistHeaders, "workbench.persist-headers", persistHeaders, "Persist header editor contents")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if upstreamURL == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-upstream.url is required")
	}

	db, err := storage.OpenBadger(storagePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	f := fetcher.NewHTTP(fetcher.HTTPOptions{URL: upstreamURL, Headers: headers})
	if upstreamWSURL != "" {
		f = fetcher.Split(f, fetcher.NewWebSocket(fetcher.WSOptions{URL: upstreamWSURL}))
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	store, err := workbench.New(workbench.Options{
		Fetcher:              f,
		Storage:              storage.NewAPI(db),
		DefaultQuery:         defaultQuery,
		ShouldPersistHeaders: persistHeaders,
	})
	if err != nil {
		return fmt.Errorf("workbench init: %w", err)
	}
	defer store.Close()

	sopts := []server.Option{server.WithMaxBodyBytes(maxBodyBytes)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	h := server.New(store, sopts...)

	log.Printf("workbench API listening on %s", addr)
	return http.ListenAndServe(addr, h)
}

func cmdIntrospect(args []string) error {
	upstreamURL := ""
	operationName := ""
	inputValueDeprecation := false
	schemaDescription := false
	outFile := ""
	var headers headerFlag

	fs := flag.NewFlagSet("introspect", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&upstreamURL, "upstream.url", upstreamURL, "Upstream GraphQL endpoint")
	fs.Var(&headers, "upstream.header", "Header sent with the request")
	fs.StringVar(&operationName, "operation-name", operationName, "Introspection operation name")
	fs.BoolVar(&inputValueDeprecation, "input-value-deprecation", inputValueDeprecation, "Request deprecated input values")
	fs.BoolVar(&schemaDescription, "schema-description", schemaDescription, "Request the schema description")
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, introspectUsage)
		return err
	}
	if upstreamURL == "" {
		fmt.Fprint(os.Stderr, introspectUsage)
		return fmt.Errorf("-upstream.url is required")
	}

	name := operationName
	if name == "" {
		name = "IntrospectionQuery"
	}
	query := introspect.Query(introspect.QueryOptions{
		OperationName:         name,
		InputValueDeprecation: inputValueDeprecation,
		SchemaDescription:     schemaDescription,
	})

	f := fetcher.NewHTTP(fetcher.HTTPOptions{URL: upstreamURL, Headers: headers})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resp, err := f(ctx, fetcher.Params{Query: query, OperationName: name}, fetcher.Opts{})
	if err != nil {
		return fmt.Errorf("introspection request: %w", err)
	}
	result, err := fetcher.ToSingle(ctx, resp)
	if err != nil {
		return fmt.Errorf("introspection request: %w", err)
	}
	envelope, ok := result.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected introspection response shape")
	}
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		return fmt.Errorf("introspection response has no data")
	}

	sch, err := introspect.BuildSchema(data)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := language.PrintSchema(sch)
	if outFile == "" {
		fmt.Print(sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
