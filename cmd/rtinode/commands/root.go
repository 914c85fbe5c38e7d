// Package commands implements the rtinode CLI: flag handling, config
// merging, daemonization, and the server run loop.
package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openrti/rtinode/internal/adminapi"
	"github.com/openrti/rtinode/internal/config"
	"github.com/openrti/rtinode/internal/dispatch"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/metrics"
	"github.com/openrti/rtinode/internal/node"
	"github.com/openrti/rtinode/internal/serverloop"
	"github.com/openrti/rtinode/internal/telemetry"
	"github.com/openrti/rtinode/internal/transport"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// Version info set by main from ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	daemonize   bool
	configFlag  string
	pipeListens []string
	inetListens []string
	parentURL   string
)

var rootCmd = &cobra.Command{
	Use:   "rtinode",
	Short: "HLA RTI server node",
	Long: `rtinode runs one server node of a federated HLA RTI tree.

A node without -p is a root server: authoritative for federation
creation, object instance handles, and global name checks. A node with
-p joins an existing tree under the given parent.

Examples:
  # Root server on every address, default port
  rtinode

  # Root server on one address with a config file
  rtinode -c /etc/rtinode/config.xml -i 0.0.0.0:14321

  # Child node under a remote root, listening on a local pipe
  rtinode -p rti://root.example.org -f /var/run/rtinode.sock`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemonize {
			return startDaemon()
		}
		return runServer()
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&daemonize, "background", "b", false, "daemonize: run the node in the background")
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "server config: a file path or a literal XML document")
	rootCmd.Flags().StringArrayVarP(&pipeListens, "file", "f", nil, "listen on a pipe/file path (repeatable)")
	rootCmd.Flags().StringArrayVarP(&inetListens, "inet", "i", nil, "listen on an inet address (repeatable, default protocol rti)")
	rootCmd.Flags().StringVarP(&parentURL, "parent", "p", "", "parent server URL")
	rootCmd.Version = fmt.Sprintf("%s (%s)", Version, Commit)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// mergeFlags folds the CLI flags over the loaded config; flags win.
func mergeFlags(cfg *config.Config) {
	for _, p := range pipeListens {
		cfg.Listen = append(cfg.Listen, transport.ProtocolPipe+"://"+p)
	}
	for _, addr := range inetListens {
		cfg.Listen = append(cfg.Listen, transport.ProtocolRTI+"://"+addr)
	}
	if parentURL != "" {
		cfg.ParentServer = parentURL
	}
}

func runServer() error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	mergeFlags(&cfg)

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return err
	}

	var m *metrics.ServerMetrics
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		m = metrics.New(registry, ulid.Make())
	}

	tel, err := telemetry.Init(context.Background(), telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.ServerName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return err
	}
	stopProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    cfg.ServerName,
		ServiceVersion: Version,
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	})
	if err != nil {
		return err
	}

	n := node.New(cfg.ServerName)
	n.PermitTimeRegulation = cfg.PermitTimeRegulation
	d := dispatch.New(n, log, m)
	if tel.IsEnabled() {
		d.SetTracer(tel.Tracer())
	}

	server := serverloop.NewNetworkServer(d, log, handshake.ServerConfig{
		ServerName:            cfg.ServerName,
		ServerPath:            n.ServerPath,
		EnableZLibCompression: cfg.EnableZLibCompression,
		PermitTimeRegulation:  cfg.PermitTimeRegulation,
	})

	// Default with no listen flags: rti:// on every address.
	listens := cfg.Listen
	if len(listens) == 0 {
		listens = []string{transport.ProtocolRTI + "://0.0.0.0"}
	}
	for _, raw := range listens {
		u, err := transport.Parse(raw)
		if err != nil {
			server.Shutdown()
			return err
		}
		if err := server.Listen(u); err != nil {
			server.Shutdown()
			return fmt.Errorf("listen %s: %w", raw, err)
		}
		log.Info("listening", "url", u.String())
	}

	if cfg.ParentServer != "" {
		u, err := transport.Parse(cfg.ParentServer)
		if err != nil {
			server.Shutdown()
			return err
		}
		if _, err := server.DialParent(u); err != nil {
			server.Shutdown()
			return fmt.Errorf("connect parent %s: %w", cfg.ParentServer, err)
		}
		log.Info("connected to parent", "url", u.String())
	}

	var httpServers []*http.Server
	if cfg.Metrics.Enabled {
		ms := &http.Server{
			Addr:              cfg.Metrics.ListenAddress,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		httpServers = append(httpServers, ms)
		go func() {
			if err := ms.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		log.Info("metrics listening", "address", cfg.Metrics.ListenAddress)
	}
	if cfg.Admin.Enabled {
		auth := adminapi.NewAuth(cfg.Admin.JWTSecret, cfg.ServerName)
		admin := adminapi.NewServer(server.Loop, log, auth)
		as := &http.Server{
			Addr:              cfg.Admin.ListenAddress,
			Handler:           admin.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		httpServers = append(httpServers, as)
		go func() {
			if err := as.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("admin server failed", "error", err)
			}
		}()
		log.Info("admin api listening", "address", cfg.Admin.ListenAddress)
	}

	log.Info("rtinode started",
		"version", Version,
		"server", cfg.ServerName,
		"root", cfg.ParentServer == "")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	for _, hs := range httpServers {
		_ = hs.Close()
	}
	server.Shutdown()
	if err := stopProfiling(); err != nil {
		log.Warn("stopping profiler", "error", err)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		log.Warn("flushing traces", "error", err)
	}
	return nil
}
