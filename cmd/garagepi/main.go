// GaragePi - garage door edge controller
//
// This is the main entry point. GaragePi bridges the garage's door relays,
// reed switches, PIR and DHT22 sensors and RGB status LED to an MQTT broker
// so Home Assistant can open and close the doors and watch the sensors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nerrad567/garagepi/internal/api"
	"github.com/nerrad567/garagepi/internal/garage"
	"github.com/nerrad567/garagepi/internal/infrastructure/config"
	"github.com/nerrad567/garagepi/internal/infrastructure/gpio"
	"github.com/nerrad567/garagepi/internal/infrastructure/influxdb"
	"github.com/nerrad567/garagepi/internal/infrastructure/logging"
	"github.com/nerrad567/garagepi/internal/infrastructure/mqtt"
	"github.com/nerrad567/garagepi/internal/metrics"
	"github.com/nerrad567/garagepi/internal/sensor"
	"github.com/nerrad567/garagepi/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

var _ telemetry.Recorder = (*influxdb.Client)(nil)

// options are the command-line flags.
type options struct {
	configPath  string
	credentials string
	simulate    bool
	showVersion bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		printVersion(os.Stdout)
		return
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("garagepi", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default: $GARAGEPI_CONFIG, else built-in defaults)")
	flagSet.StringVar(&opts.credentials, "credentials", "", "USERNAME=/PASSWORD= file for the broker (overrides mqtt.credentials_file)")
	flagSet.BoolVar(&opts.simulate, "simulate", false, "run against in-memory GPIO instead of /dev/gpiochip*")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if flagSet.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	if opts.configPath == "" {
		opts.configPath = os.Getenv("GARAGEPI_CONFIG")
	}
	return opts, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "garagepi %s (commit %s, built %s)\n", version, commit, date)
}

// run wires every component, waits for ctx to be cancelled and tears
// everything down in reverse order.
func run(ctx context.Context, opts options) error {
	log := logging.Default()
	log.Info("starting GaragePi",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.Open(cfg.Logging, version)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // nothing useful to do on exit
	log.Info("configuration loaded",
		"path", opts.configPath,
		"level", cfg.Logging.Level,
		"doors", len(cfg.Doors),
	)

	promMetrics := metrics.New()
	recorders := []telemetry.Recorder{promMetrics}

	influxClient, err := startInfluxDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorders = append(recorders, influxClient)
	}
	recorder := telemetry.NewMulti(recorders...)

	hw, err := openHardware(cfg, opts.simulate, log)
	if err != nil {
		return err
	}
	defer hw.Close()

	mqttClient, err := mqtt.New(cfg.MQTT, log.With("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetOnDisconnect(func(err error) {
		promMetrics.SetMQTTConnected(false)
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := mqttClient.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	promMetrics.SetMQTTConnected(true)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	topics := mqtt.NewTopics(cfg.Topics.Prefix)

	doors, err := garage.NewController(doorOptions(cfg, hw, mqttClient, topics, recorder, log))
	if err != nil {
		return fmt.Errorf("creating doors: %w", err)
	}
	doors.Start(ctx)
	defer func() {
		log.Info("stopping doors")
		doors.Stop()
	}()

	mqttClient.SetOnConnect(func() {
		promMetrics.SetMQTTConnected(true)
		log.Info("MQTT reconnected, republishing door state")
		doors.Republish()
	})

	var climate *sensor.ClimatePoller
	if cfg.Climate.Enabled {
		climate, err = startClimate(ctx, cfg, opts.simulate, mqttClient, topics, recorder, log)
		if err != nil {
			return err
		}
		defer climate.Stop()
	} else {
		log.Info("climate sensor disabled")
	}

	if cfg.Motion.Enabled {
		motion, err := sensor.NewMotionSensor(sensor.MotionOptions{
			Pin:       cfg.Motion.Pin,
			Chip:      hw.chip,
			Publisher: mqttClient,
			Topic:     topics.Motion(),
			Retain:    cfg.MQTT.Retain,
			Recorder:  recorder,
			Logger:    log.With("component", "motion"),
		})
		if err != nil {
			return fmt.Errorf("creating motion sensor: %w", err)
		}
		motion.Start(ctx)
		defer motion.Stop()
	} else {
		log.Info("motion sensor disabled")
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			Logger:    log.With("component", "api"),
			Broker:    mqttClient,
			Doors:     doors,
			Indicator: hw.indicator,
			Metrics:   promMetrics,
			Version:   version,
		}
		if climate != nil {
			deps.Climate = climate
		}
		server, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.credentials != "" {
		creds, err := config.LoadCredentials(opts.credentials)
		if err != nil {
			return nil, err
		}
		creds.Apply(&cfg.MQTT.Auth)
	}
	return cfg, nil
}

func startInfluxDB(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	host, err := os.Hostname()
	if err != nil {
		host = cfg.MQTT.Broker.ClientID
	}
	client, err := influxdb.Connect(ctx, cfg.InfluxDB, host)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

func doorOptions(cfg *config.Config, hw *hardware, broker garage.Broker, topics mqtt.Topics, recorder telemetry.Recorder, log *logging.Logger) []garage.DoorOptions {
	out := make([]garage.DoorOptions, 0, len(cfg.Doors))
	for _, d := range cfg.Doors {
		closed := gpio.High
		if d.ClosedLow {
			closed = gpio.Low
		}
		out = append(out, garage.DoorOptions{
			ID:                  d.ID,
			ControlPin:          d.ControlPin,
			StatePin:            d.StatePin,
			ClosedLevel:         closed,
			PullUp:              d.PullUp,
			Pulse:               d.PulseDuration(),
			Settle:              d.SettleDuration(),
			Retain:              cfg.MQTT.Retain,
			PublishAvailability: cfg.MQTT.PublishAvailability,
			Chip:                hw.chip,
			Broker:              broker,
			Topics:              topics,
			Indicator:           hw.indicator,
			Recorder:            recorder,
			Logger:              log.With("component", "door", "door", d.ID),
		})
	}
	return out
}

func startClimate(ctx context.Context, cfg *config.Config, simulate bool, publisher sensor.Publisher, topics mqtt.Topics, recorder telemetry.Recorder, log *logging.Logger) (*sensor.ClimatePoller, error) {
	var reader sensor.ClimateReader = sensor.NewIIOReader(cfg.Climate.Device)
	if simulate {
		reader = sensor.ClimateReaderFunc(func(context.Context) (sensor.Reading, error) {
			return sensor.Reading{Celsius: 20, Humidity: 50}, nil
		})
	}

	poller, err := sensor.NewClimatePoller(sensor.ClimateOptions{
		Reader:           reader,
		Publisher:        publisher,
		TemperatureTopic: topics.Temperature(),
		HumidityTopic:    topics.Humidity(),
		Interval:         cfg.Climate.GetPollInterval(),
		Retries:          cfg.Climate.Retries,
		RetryDelay:       cfg.Climate.GetRetryDelay(),
		Retain:           cfg.MQTT.Retain,
		Recorder:         recorder,
		Logger:           log.With("component", "climate"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating climate poller: %w", err)
	}
	poller.Start(ctx)
	log.Info("climate poller started",
		"device", cfg.Climate.Device,
		"interval", cfg.Climate.GetPollInterval().String(),
	)
	return poller, nil
}

func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
