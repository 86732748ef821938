package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonical/hpc-mesos-bridge/internal/config"
	"github.com/canonical/hpc-mesos-bridge/internal/controller"
	"github.com/canonical/hpc-mesos-bridge/internal/httpapi"
	"github.com/canonical/hpc-mesos-bridge/internal/logger"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
)

type cmdServe struct {
	global *cmdGlobal

	flagHeadNodeURL string
	flagNodeGroup   string
	flagListen      string
}

// Command returns the "serve" subcommand, styled on
// lxd-benchmark/main_init.go's cmdInit.Command().
func (c *cmdServe) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "serve"
	cmd.Short = "Run the reconciler loop until terminated"
	cmd.RunE = c.Run
	cmd.Flags().StringVar(&c.flagHeadNodeURL, "head-node-url", "", "Base URL of the HPC head-node REST service")
	cmd.Flags().StringVar(&c.flagNodeGroup, "node-group", "", "Target node group to enforce membership in, in addition to Mesos")
	cmd.Flags().StringVar(&c.flagListen, "listen", "", "Address to serve the read-only inspection API on, e.g. :8080")

	return cmd
}

// Run loads configuration, wires up the controller, and blocks until
// interrupted.
func (c *cmdServe) Run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.global.flagConfig)
	if err != nil {
		return err
	}

	if c.flagHeadNodeURL != "" {
		cfg.HeadNodeURL = c.flagHeadNodeURL
	}

	if c.flagNodeGroup != "" {
		cfg.NodeGroup = c.flagNodeGroup
	}

	if c.flagListen != "" {
		cfg.ListenAddress = c.flagListen
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("Invalid configuration: %w", err)
	}

	err = logger.SetLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("Invalid log level %q: %w", cfg.LogLevel, err)
	}

	if cfg.HeadNodeURL == "" {
		return fmt.Errorf("head-node-url is required")
	}

	client, err := restclient.NewHTTPClient(cfg.HeadNodeURL, nil)
	if err != nil {
		return err
	}

	ctrl := controller.New(client, cfg.NodeGroup, cfg.ProvisioningTimeout, cfg.HeartbeatTimeout, cfg.NodeIdleTimeout, cfg.ReconcileInterval)

	ctrl.SubscribeNodeClosed(func(hostnames []string) {
		logger.Info("Nodes closed, scheduler may reclaim resources", logger.Ctx{"hostnames": hostnames})
	})

	ctrl.Start()

	var srv *http.Server
	if cfg.ListenAddress != "" {
		srv = &http.Server{
			Addr:    cfg.ListenAddress,
			Handler: httpapi.Router(ctrl),
		}

		go func() {
			err := srv.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				logger.Error("Inspection API server exited", logger.Ctx{"err": err})
			}
		}()

		logger.Info("Inspection API listening", logger.Ctx{"address": cfg.ListenAddress})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down", logger.Ctx{})

	if srv != nil {
		_ = srv.Close()
	}

	return ctrl.Stop(10 * time.Second)
}
