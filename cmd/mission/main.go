package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mission/internal/server"
)

// Options defines all CLI flags and env vars for the mission server.
// Flags: --host, --port, --api-base, --session-secret, --upstream-timeout,
// --workspace-ttl, --journal, --web-dir, --simplify-meters, --log-level
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_API_BASE, ...
type Options struct {
	Host            string `doc:"Host to bind to" default:"0.0.0.0"`
	Port            int    `doc:"Port to listen on" short:"p" default:"8087"`
	APIBase         string `doc:"Planning backend base URL" default:"http://127.0.0.1:5000"`
	SessionSecret   string `doc:"Session cookie signing key (random when empty)"`
	UpstreamTimeout int    `doc:"Backend request timeout in seconds, 0 for none" default:"0"`
	WorkspaceTTL    int    `doc:"Minutes before an idle workspace is dropped, 0 to keep forever" default:"120"`
	Journal         bool   `doc:"Record rendered plans in an in-memory DuckDB journal" default:"true"`
	WebDir          string `doc:"Serve templates and static files from this web/ directory instead of the binary"`
	SimplifyMeters  int    `doc:"Douglas-Peucker tolerance in meters for drawn paths, 0 draws every point" default:"0"`
	LogLevel        string `doc:"Log level: debug, info, warn, error" default:"info"`
}

// metersPerDegree approximates one degree of latitude.
const metersPerDegree = 111_320

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newServer(opts *Options, logger *slog.Logger) (*server.Server, error) {
	return server.New(server.Config{
		Host:            opts.Host,
		Port:            fmt.Sprintf("%d", opts.Port),
		APIBase:         opts.APIBase,
		SessionSecret:   opts.SessionSecret,
		UpstreamTimeout: time.Duration(opts.UpstreamTimeout) * time.Second,
		WorkspaceTTL:    time.Duration(opts.WorkspaceTTL) * time.Minute,
		Journal:         opts.Journal,
		WebDir:          opts.WebDir,
		Simplify:        float64(opts.SimplifyMeters) / metersPerDegree,
		Logger:          logger,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := newLogger(opts.LogLevel)
		slog.SetDefault(logger)

		ctx, stop := context.WithCancel(context.Background())
		finished := make(chan struct{})

		hooks.OnStart(func() {
			defer close(finished)

			srv, err := newServer(opts, logger)
			if err != nil {
				logger.Error("server setup failed", "error", err)
				os.Exit(1)
			}
			defer srv.Close()

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-mission server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Backend: %s\n", opts.APIBase)
			fmt.Println()
			fmt.Printf("  Planner: %s/\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := srv.Serve(ctx); err != nil {
				logger.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		// humacli calls OnStop on SIGINT/SIGTERM; wait for the graceful shutdown.
		hooks.OnStop(func() {
			stop()
			<-finished
		})
	})

	cli.Root().Use = "mission"
	cli.Root().Short = "Mission planning map front end"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, newLogger("error"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Run()
}
