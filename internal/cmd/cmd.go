// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/inertial_mlc/internal/app"
	"github.com/relabs-tech/inertial_mlc/internal/config"
)

var RootCmd = &cobra.Command{
	Use:   "dhcxctl",
	Short: "ISM330DHCX producer, register debugger and device tools",
	Long: `dhcxctl drives an ISM330DHCX over I2C or SPI (or the in-process
simulator with IMU_BUS=sim): FIFO streaming to MQTT, a websocket register
debugger, an SSD1306 status display and one-shot device commands.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func RootCmdFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", config.DefaultPath, "path to configuration file")
	cmd.PersistentFlags().Bool("debug", false, "toggle debug logging")
}

// loadConfig reads the configuration once and applies LOG_LEVEL, which
// --debug overrides.
func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if err := config.InitGlobal(path); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level, err := log.ParseLevel(config.Get().LogLevel)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

var ProduceCmd = &cobra.Command{
	Use:        "produce",
	SuggestFor: []string{"prod", "pro"},
	Short:      "stream FIFO batches and device status to MQTT",
	Long: `produce configures the device from the configuration file, applies
UCF_FILE if set, then drains the FIFO every FIFO_POLL_INTERVAL ms and
publishes decoded batches to TOPIC_SAMPLES and retained status to TOPIC_STATUS.`,
	Example: `  dhcxctl produce --config ./dhcx_config.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		return app.RunProducer(ctx)
	},
}

var DebugCmd = &cobra.Command{
	Use:        "debug",
	SuggestFor: []string{"dbg", "deb"},
	Short:      "serve the websocket register debugger",
	Long: `debug serves /ws (bank-aware register, paged memory, route and ODR
access), /api/fifo, /api/status, /api/latest and /metrics on WEB_SERVER_PORT.
Writes are limited by REGISTER_DEBUG_ALLOWED_RANGES.`,
	Example: `  dhcxctl debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		return app.RunRegisterDebug(ctx)
	},
}

var ConsoleCmd = &cobra.Command{
	Use:        "console",
	SuggestFor: []string{"con", "cons"},
	Short:      "print samples and status received over MQTT",
	Example:    `  dhcxctl console`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		return app.RunConsoleMQTT(ctx, cmd.OutOrStdout())
	},
}

var DisplayCmd = &cobra.Command{
	Use:        "display",
	SuggestFor: []string{"disp", "dis"},
	Short:      "show the latest samples or status on an SSD1306",
	Example:    `  dhcxctl display`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		return app.RunDisplay(ctx)
	},
}

func getRootCmd() *cobra.Command {
	RootCmdFlags(RootCmd)

	RootCmd.AddCommand(ProduceCmd)
	RootCmd.AddCommand(DebugCmd)
	RootCmd.AddCommand(ConsoleCmd)
	RootCmd.AddCommand(DisplayCmd)

	RootCmd.AddCommand(PageCmd)
	RootCmd.AddCommand(UCFCmd)
	SnapshotCmdFlags(SnapshotCmd)
	RootCmd.AddCommand(SnapshotCmd)
	RootCmd.AddCommand(RouteCmd)
	RootCmd.AddCommand(ODRCmd)

	return RootCmd
}

func Execute() {
	if err := getRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
