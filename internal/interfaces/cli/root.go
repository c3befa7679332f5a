// Package cli wires the host runtime behind a cobra command tree. Two
// hidden subcommands (probe-worker, bridge-worker) turn the same binary
// into its own helper processes.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"rackhost.audio/cli/internal/config"
	"rackhost.audio/cli/internal/host"
	"rackhost.audio/cli/internal/infrastructure/audio"
	"rackhost.audio/cli/internal/infrastructure/blacklist"
	"rackhost.audio/cli/internal/infrastructure/bridge"
	"rackhost.audio/cli/internal/infrastructure/logging"
	"rackhost.audio/cli/internal/infrastructure/scanner"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// Container assembles the host lazily so helper subcommands never spin
// up the full runtime.
type Container struct {
	Config *config.Config

	host     *host.Host
	errorLog *logging.ErrorLog
}

// Host builds and initializes the host on first use.
func (c *Container) Host() (*host.Host, error) {
	if c.host != nil {
		return c.host, nil
	}

	log, err := logging.Open(c.Config.ErrorLogPath)
	if err != nil {
		return nil, err
	}
	c.errorLog = log

	prober := scanner.NewProber(time.Duration(c.Config.ProbeTimeoutMs) * time.Millisecond)
	bl := blacklist.New(c.Config.BlacklistPath)
	scan := scanner.NewScan(prober, bl.Contains)

	h := host.New(host.Options{
		Scanner:      scan,
		Bridge:       bridge.NewSession(),
		Transport:    audio.NewTransport(),
		ErrorLog:     log,
		Blacklist:    bl,
		SampleRate:   c.Config.SampleRate,
		PeriodFrames: c.Config.PeriodFrames,
	})
	if err := h.Initialize(); err != nil {
		log.Close()
		return nil, err
	}
	c.host = h
	return h, nil
}

// Close shuts the host down if a command built one.
func (c *Container) Close() {
	if c.host != nil {
		c.host.Shutdown()
		c.host = nil
		return
	}
	if c.errorLog != nil {
		c.errorLog.Close()
	}
}

// NewRootCommand builds the rackhost command tree.
func NewRootCommand(container *Container) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rackhost",
		Short: "Rackhost - audio plugin host runtime",
		Long: `Rackhost hosts third-party audio plugins in a processing chain.

Plugin binaries are probed out-of-process so a crashing or hanging
module can never take the host down, plugins whose pointer width
differs from the host's run through a helper process, and a faulting
plugin is disabled mid-stream while audio keeps running.`,
		Version: Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")

	rootCmd.AddCommand(NewScanCommand(container))
	rootCmd.AddCommand(NewProbeCommand(container))
	rootCmd.AddCommand(NewPluginsCommand(container))
	rootCmd.AddCommand(NewBlacklistCommand(container))
	rootCmd.AddCommand(NewErrorsCommand(container))
	rootCmd.AddCommand(NewDevicesCommand(container))
	rootCmd.AddCommand(NewConfigCommand(container))
	rootCmd.AddCommand(NewDashboardCommand(container))
	rootCmd.AddCommand(NewProbeWorkerCommand())
	rootCmd.AddCommand(NewBridgeWorkerCommand())

	return rootCmd
}

func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the command tree and tears the container down.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	container := &Container{Config: cfg}
	defer container.Close()

	rootCmd := NewRootCommand(container)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		container.Close()
		os.Exit(1)
	}
}
