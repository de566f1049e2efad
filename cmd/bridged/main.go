package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdnbridge/bridged/pkg/comms"
	"github.com/sdnbridge/bridged/pkg/config"
	"github.com/sdnbridge/bridged/pkg/election"
	"github.com/sdnbridge/bridged/pkg/hosting"
	"github.com/sdnbridge/bridged/pkg/log"
	"github.com/sdnbridge/bridged/pkg/metrics"
	"github.com/sdnbridge/bridged/pkg/transport"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bridged",
	Short: "bridged - multi-domain SDN controller coordination",
	Long: `bridged runs the coordination layer of a multi-domain SDN controller:
per-domain leader election between redundant controller instances, and the
publish/subscribe channel that exchanges topology, path-installation and
congestion information with the root controller.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"bridged version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a domain controller coordination instance",
	Long: `Start one coordination instance for a domain. The instance elects a
master among the domain's instances and, while master, advertises the domain
to the root controller over the broker.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringP("config", "c", "", "YAML configuration file")
	startCmd.Flags().Int64("domain-id", 0, "Domain ID (overrides config)")
	startCmd.Flags().Int("instance-id", 0, "Fixed instance ID (overrides config; 0 = random)")
	startCmd.Flags().String("broker", "", "Broker URL (overrides config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if domainID, _ := cmd.Flags().GetInt64("domain-id"); domainID != 0 {
		cfg.DomainID = domainID
	}
	if instanceID, _ := cmd.Flags().GetInt("instance-id"); instanceID != 0 {
		cfg.InstanceID = instanceID
	}
	if broker, _ := cmd.Flags().GetString("broker"); broker != "" {
		cfg.BrokerURL = broker
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	logger := log.WithComponent("main")

	app, err := loadApplication(cfg)
	if err != nil {
		return err
	}

	dialer := &transport.NATSDialer{
		URL:  cfg.BrokerURL,
		Name: fmt.Sprintf("bridged-domain-%d", cfg.DomainID),
	}

	layer := comms.New(comms.Config{
		DomainID:         cfg.DomainID,
		KeepAliveTimeout: cfg.KeepAliveTimeout,
		Election: election.Config{
			KeepAliveInterval: cfg.Election.KeepAliveInterval,
			TimeoutInterval:   cfg.Election.TimeoutInterval,
			InitInterval:      cfg.Election.InitInterval,
			MissTolerance:     cfg.Election.MissTolerance,
		},
	}, app, dialer)

	if err := layer.Start(cfg.InstanceID); err != nil {
		return fmt.Errorf("failed to start communication layer: %v", err)
	}
	defer layer.Stop()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
	}

	logger.Info().
		Int64("domain_id", cfg.DomainID).
		Int64("cid", layer.CID()).
		Str("broker", cfg.BrokerURL).
		Msg("bridged running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down")
	return nil
}

func loadApplication(cfg config.Config) (*hosting.StaticApp, error) {
	if cfg.TopologyFile == "" {
		return hosting.NewStaticApp(cfg.TEThreshold), nil
	}
	app, err := hosting.LoadStaticApp(cfg.TopologyFile)
	if err != nil {
		return nil, err
	}
	return app, nil
}
