// r2upnpav - remote control to UPnP AV renderer bridge
//
// Converts remote control codes received from the LIRC daemon (lircd) or
// relayed from HDMI-CEC equipment into UPnP AV operations on every media
// renderer whose friendly name matches a pattern.
//
// Use --verbose to trace discovery. Every discovered renderer is logged with
// its friendly name, which helps when writing a --renderer pattern.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/r2upnpav/internal/api"
	"github.com/nerrad567/r2upnpav/internal/bridges/cec"
	"github.com/nerrad567/r2upnpav/internal/bridges/lirc"
	"github.com/nerrad567/r2upnpav/internal/bridges/mqttremote"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/config"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/influxdb"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/logging"
	"github.com/nerrad567/r2upnpav/internal/infrastructure/mqtt"
	"github.com/nerrad567/r2upnpav/internal/reactor"
	"github.com/nerrad567/r2upnpav/internal/renderer"
	"github.com/nerrad567/r2upnpav/internal/status"
	"github.com/nerrad567/r2upnpav/internal/upnp"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is read when neither --config nor R2UPNPAV_CONFIG is
	// set. It may be absent.
	defaultConfigPath = "/etc/r2upnpav/config.yaml"

	configEnv = "R2UPNPAV_CONFIG"
)

var _ status.Broadcaster = (*api.Hub)(nil)

// options holds the raw command-line values. Only flags the user set
// override the configuration file.
type options struct {
	configPath string
	cec        string
	iface      string
	lircrc     string
	name       string
	program    string
	renderer   string
	server     uint
	timeout    uint
	verbose    bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(&options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command; parsed flag values land in opts.
func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "r2upnpav",
		Short: "Remote to UPnP AV protocol adapter",
		Long: `Convert remote control codes relayed from HDMI Consumer Electronics Control
(CEC) equipment or received from the LIRC daemon (lircd), and adapted by
program specific lircrc entries, to UPnP AV renderer operations.

Supported operations: Play, Pause, Previous, Next, VolumeUp, VolumeDown, Mute.

Every renderer whose friendly name matches the renderer pattern receives each
operation. Specify --cec=- or --lircrc=- when there is no such input.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, path)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "",
		"configuration file (default $"+configEnv+" or "+defaultConfigPath+")")
	f.StringVarP(&opts.cec, "cec", "c", "",
		`CEC adapter com port (see cec-client -l); "" => first adapter, "-" => no CEC input`)
	f.StringVarP(&opts.iface, "interface", "i", "",
		"UPnP network interface (default: all)")
	f.StringVarP(&opts.lircrc, "lircrc", "l", "",
		`lircrc file; "" => ~/.lircrc, "-" => no lirc input`)
	f.StringVarP(&opts.name, "name", "n", config.DefaultProgram,
		"CEC OSD name")
	f.StringVarP(&opts.program, "program", "p", config.DefaultProgram,
		"lircrc program tag")
	f.StringVarP(&opts.renderer, "renderer", "r", config.DefaultRendererPattern,
		"renderer friendly name pattern")
	f.UintVarP(&opts.server, "server", "s", 0,
		"UPnP event server TCP port; 0 => any port")
	f.UintVarP(&opts.timeout, "timeout", "t", 10000,
		"CEC connection timeout in milliseconds")
	f.BoolVarP(&opts.verbose, "verbose", "v", false,
		"print trace messages")

	return cmd
}

// loadConfig reads the configuration file and applies the flags that were
// set on the command line.
//
// Returns:
//   - *config.Config: validated configuration
//   - string: the configuration path that was read
//   - error: load or validation failure
func loadConfig(flags *pflag.FlagSet, opts *options) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}

	if flags.Changed("cec") {
		config.ApplyInputFlag(&cfg.CEC.Enabled, &cfg.CEC.Port, opts.cec, "")
	}
	if flags.Changed("lircrc") {
		config.ApplyInputFlag(&cfg.LIRC.Enabled, &cfg.LIRC.Lircrc, opts.lircrc, config.DefaultLircrc())
	}
	if flags.Changed("interface") {
		cfg.UPnP.Interface = opts.iface
	}
	if flags.Changed("name") {
		cfg.CEC.Name = opts.name
	}
	if flags.Changed("program") {
		cfg.LIRC.Program = opts.program
	}
	if flags.Changed("renderer") {
		cfg.Renderer.Pattern = opts.renderer
	}
	if flags.Changed("server") {
		cfg.Server.Port = int(opts.server) //nolint:gosec // range checked by Validate
	}
	if flags.Changed("timeout") {
		cfg.CEC.TimeoutMS = int(opts.timeout) //nolint:gosec // range checked by Validate
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// run wires every component and runs the reactor until ctx is cancelled or
// an input loses its connection.
//
// Construction failures (unreadable lircrc, lircd or CEC adapter
// unavailable, address in use) are returned before the reactor starts.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config, configPath string) error { //nolint:gocognit,gocyclo // linear wiring
	log := logging.New(cfg.Logging, version)
	log.Info("starting r2upnpav",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	r := reactor.New()
	r.SetLogger(log.Component("reactor"))

	registry, err := renderer.NewRegistry(renderer.RegistryOptions{
		Pattern:       cfg.Renderer.Pattern,
		ActionTimeout: cfg.GetActionTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating renderer registry: %w", err)
	}
	registry.SetLogger(log.Component("renderer"))

	events := upnp.NewEventServer(upnp.EventOptions{
		Poster:  r,
		Timeout: cfg.GetSubscriptionTimeout(),
	})
	events.SetLogger(log.Component("gena"))
	defer events.Close()

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
	healthCfg := mqttremote.HealthReporterConfig{
		Topic:   topics.Health(),
		Version: version,
	}
	healthCfg.Checks = map[string]mqttremote.HealthChecker{}
	if mqttClient != nil {
		healthCfg.Publisher = mqttClient
		healthCfg.Checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		healthCfg.Checks["influxdb"] = influxClient
	}
	health := mqttremote.NewHealthReporter(healthCfg)
	health.SetLogger(log.Component("health"))

	// The HTTP server must be listening before discovery so GENA callback
	// URLs carry the bound port.
	server, err := api.New(api.Deps{
		Config:    cfg.Server,
		WS:        cfg.WebSocket,
		Logger:    log.Component("api"),
		Events:    events.Routes(),
		Renderers: api.ReactorRenderers{Reactor: r, Registry: registry},
		Health:    health,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting HTTP server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing HTTP server", "error", closeErr)
		}
	}()
	events.SetCallbackPort(server.Port())
	health.AddCheck("http", server)

	statusOpts := status.Options{
		Topics: topics,
		Hub:    server.Hub(),
		Health: health,
	}
	if mqttClient != nil {
		statusOpts.MQTT = mqttClient
	}
	if influxClient != nil {
		statusOpts.Metrics = influxClient
	}
	publisher := status.New(statusOpts)
	publisher.SetLogger(log.Component("status"))
	publisher.Start()
	defer publisher.Stop()

	registry.SetObserver(publisher)
	// Runs before publisher.Stop: removals still reach the sinks.
	defer registry.Close()

	if cfg.LIRC.Enabled {
		ir, err := startLIRC(ctx, cfg, r, registry, publisher, log)
		if err != nil {
			return err
		}
		defer ir.Stop()
		health.SetInput("lirc", true)
	} else {
		log.Info("LIRC input disabled")
	}

	if cfg.CEC.Enabled {
		adapter, err := startCEC(ctx, cfg, r, registry, publisher, log)
		if err != nil {
			return err
		}
		defer adapter.Stop()
		health.SetInput("cec", true)
	} else {
		log.Info("CEC input disabled")
	}

	if mqttClient != nil {
		commands := mqttremote.NewCommands(r, registry, mqttClient, mqttremote.CommandOptions{
			Topic:    topics.Command(),
			QoS:      byte(cfg.MQTT.QoS), //nolint:gosec // QoS validated by config
			Recorder: publisher,
		})
		commands.SetLogger(log.Component("mqttremote"))
		if err := commands.Start(); err != nil {
			return fmt.Errorf("starting MQTT commands: %w", err)
		}
		defer commands.Stop()
	}

	discovery, err := upnp.NewControlPoint(upnp.DiscoveryConfig{
		Interval:    cfg.GetDiscoveryInterval(),
		SearchWait:  cfg.GetSearchWait(),
		MissedScans: cfg.UPnP.Discovery.MissedScans,
		Interface:   cfg.UPnP.Interface,
	}, r, registry, events)
	if err != nil {
		return fmt.Errorf("creating UPnP control point: %w", err)
	}
	discovery.SetLogger(log.Component("upnp"))
	if err := discovery.Start(ctx); err != nil {
		return fmt.Errorf("starting UPnP discovery: %w", err)
	}
	defer discovery.Stop()

	if err := health.PublishStarting(); err != nil {
		log.Warn("failed to publish starting health", "error", err)
	}
	health.Start(ctx)
	defer health.Stop()

	log.Info("initialisation complete",
		"renderer_pattern", cfg.Renderer.Pattern,
		"event_port", server.Port(),
	)

	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("running reactor: %w", err)
	}

	if ctx.Err() != nil {
		log.Info("shutdown signal received, cleaning up")
	} else {
		log.Warn("input connection lost, shutting down")
	}

	// Deferred calls run in reverse order: health, discovery, inputs,
	// registry, status, HTTP server, InfluxDB, MQTT, GENA subscriptions.
	log.Info("r2upnpav stopped")
	return nil
}

// startLIRC reads the lircrc file and connects to lircd.
func startLIRC(ctx context.Context, cfg *config.Config, r *reactor.Reactor, registry *renderer.Registry,
	recorder *status.Publisher, log *logging.Logger) (*lirc.Adapter, error) {
	lircrc, err := lirc.ReadConfig(cfg.LIRC.Lircrc, cfg.LIRC.Program)
	if err != nil {
		return nil, fmt.Errorf("reading lircrc: %w", err)
	}
	log.Info("lircrc loaded",
		"path", cfg.LIRC.Lircrc,
		"program", cfg.LIRC.Program,
		"entries", lircrc.Len(),
	)
	for _, w := range lircrc.Warnings() {
		log.Warn("lircrc construct skipped", "detail", w)
	}

	componentLog := log.Component("lirc")
	adapter := lirc.New(r, registry, lircrc, lirc.Options{
		Socket:     cfg.LIRC.Socket,
		Recorder:   recorder,
		SlogLogger: componentLog.Logger,
	})
	adapter.SetLogger(componentLog)
	if err := adapter.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting LIRC input: %w", err)
	}
	return adapter, nil
}

// startCEC opens the CEC adapter.
func startCEC(ctx context.Context, cfg *config.Config, r *reactor.Reactor, registry *renderer.Registry,
	recorder *status.Publisher, log *logging.Logger) (*cec.Adapter, error) {
	adapter, err := cec.New(r, registry, cec.Options{
		Port:       cfg.CEC.Port,
		DeviceName: cfg.CEC.Name,
		Timeout:    cfg.GetCECTimeout(),
		Recorder:   recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("creating CEC input: %w", err)
	}
	adapter.SetLogger(log.Component("cec"))

	if err := adapter.Start(ctx); err != nil {
		adapter.Stop()
		if errors.Is(err, cec.ErrUnsupported) {
			log.Error("this build has no libcec support; rebuild with -tags libcec or pass --cec=-")
		}
		return nil, fmt.Errorf("starting CEC input: %w", err)
	}
	return adapter, nil
}
