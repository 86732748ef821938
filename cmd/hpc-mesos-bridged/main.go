// Command hpc-mesos-bridged runs the cluster node lifecycle controller
// that bridges a compute-framework scheduler's add_node/heartbeat calls
// with an HPC head-node REST service, per spec.md / SPEC_FULL.md.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set by the release process; left as a constant here since
// this repository has no build-time ldflags wiring.
const version = "0.1.0"

type cmdGlobal struct {
	flagConfig  string
	flagVersion bool
}

func main() {
	globalCmd := cmdGlobal{}

	app := &cobra.Command{
		Use:   "hpc-mesos-bridged",
		Short: "HPC/Mesos cluster node lifecycle controller",
	}
	app.SilenceUsage = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}
	app.PersistentFlags().StringVar(&globalCmd.flagConfig, "config", "", "Path to a YAML config file")
	app.Version = version
	app.SetVersionTemplate("{{.Version}}\n")

	serveCmd := cmdServe{global: &globalCmd}
	app.AddCommand(serveCmd.Command())

	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
