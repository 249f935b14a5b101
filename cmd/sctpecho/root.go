package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hrissan/sctpmux/sctpcore"
)

func newRootCmd() *cobra.Command {
	cfg := &Config{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "sctpecho",
		Short:         "SCTP over UDP echo",
		Long:          "Echo server and client running SCTP associations over UDP, one association per socket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML file with configuration, flags given explicitly take precedence")
	flags.StringVarP(&cfg.ListenAddress, "listen-address", "l", "", "UDP address to listen on")
	flags.Uint16Var(&cfg.LocalPort, "local-port", 5000, "SCTP port of our socket")
	flags.StringVar(&cfg.MetricsAddress, "metrics-address", "", "address of prometheus metrics endpoint, empty to disable")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "log level")
	flags.StringVar(&cfg.LogFile, "log-file", logConsole, "log file")
	flags.BoolVar(&cfg.PrintDrops, "print-drops", false, "log callbacks dropped for unknown sockets")

	prepare := func(cmd *cobra.Command, client bool) error {
		if configFile != "" {
			if err := applyConfigFile(configFile, cfg, cmd.Flags()); err != nil {
				return err
			}
		}
		if err := cfg.Validate(client); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := InitLog(cfg.LogLevel, cfg.LogFile); err != nil {
			return fmt.Errorf("failed to initialize log: %w", err)
		}
		return nil
	}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Accept associations one after another and echo every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prepare(cmd, false); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Send messages to echo server and check replies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prepare(cmd, true); err != nil {
				return err
			}
			stats, err := runClient(cmd.Context(), cfg)
			log.WithFields(log.Fields{"sent": stats.sent, "received": stats.received}).Info("client finished")
			return err
		},
	}
	cf := clientCmd.Flags()
	cf.StringVarP(&cfg.PeerAddress, "peer-address", "p", "", "UDP address of echo server")
	cf.Uint16Var(&cfg.RemotePort, "remote-port", 5000, "SCTP port of echo server")
	cf.IntVarP(&cfg.Messages, "messages", "n", 10, "number of messages, 0 to run until interrupted")
	cf.Float64Var(&cfg.Rate, "rate", 10, "messages per second, 0 for no limit")
	cf.IntVar(&cfg.MessageSize, "message-size", 64, "message size in bytes")
	cf.Uint16Var(&cfg.StreamID, "stream", 0, "stream identifier")
	cf.Uint32Var(&cfg.PPID, "ppid", sctpcore.PPIDWebRTCBinary, "payload protocol identifier")
	cf.BoolVar(&cfg.Unordered, "unordered", false, "send unordered messages")
	cf.Uint64Var(&cfg.DialAttempts, "dial-attempts", 5, "number of dial retries")
	cf.DurationVar(&cfg.DialTimeout, "dial-timeout", 5*time.Second, "timeout of a single dial attempt")
	cf.DurationVar(&cfg.ReplyTimeout, "reply-timeout", 5*time.Second, "how long to wait for each echo")

	rootCmd.AddCommand(serverCmd, clientCmd)
	return rootCmd
}
