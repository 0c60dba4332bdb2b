// Package command wires the loom CLI.
package command

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatloom/loom/internal/backend"
	"github.com/chatloom/loom/internal/chat"
	"github.com/chatloom/loom/internal/config"
)

const AppName = "loom"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Loom - terminal client for hosted chat channels",
		Long:          "Loom keeps a live, synchronized view of a hosted chat channel in your terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runChat,
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("server", "", "chat API base URL")
	cmd.PersistentFlags().String("token", "", "API token")
	cmd.PersistentFlags().String("user", "", "user id")
	cmd.PersistentFlags().String("channel", "", "channel id")
	cmd.PersistentFlags().String("log-file", "", "write debug logs to file")

	cmd.AddCommand(
		NewLoginCmd(),
		NewPostCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd(Version).Execute()
}

func runChat(cmd *cobra.Command, args []string) error {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := backend.NewClient(settings.ServerURL, settings.Token, settings.UserID)
	if err != nil {
		return err
	}
	ch := backend.NewChannel(client, settings.Channel, logger)
	defer ch.Close()

	return chat.Run(cmd.Context(), chat.Options{
		Handle:      ch,
		UserID:      settings.UserID,
		ChannelName: settings.Channel,
		Logger:      logger,
		Notify:      true,
	})
}

// resolveSettings merges the config file with flag overrides. Flags win.
func resolveSettings(cmd *cobra.Command) (config.Config, error) {
	settings := config.Config{}
	if cfg, err := config.Read(); err != nil {
		return settings, err
	} else if cfg != nil {
		settings = *cfg
	}

	if v, _ := cmd.Flags().GetString("server"); v != "" {
		settings.ServerURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		settings.Token = v
	}
	if v, _ := cmd.Flags().GetString("user"); v != "" {
		settings.UserID = v
	}
	if v, _ := cmd.Flags().GetString("channel"); v != "" {
		settings.Channel = v
	}

	if settings.ServerURL == "" {
		return settings, fmt.Errorf("no server configured; run `loom login` or pass --server")
	}
	if settings.UserID == "" {
		return settings, fmt.Errorf("no user configured; run `loom login` or pass --user")
	}
	if settings.Channel == "" {
		return settings, fmt.Errorf("no channel given; pass --channel")
	}
	return settings, nil
}

func newLogger(cmd *cobra.Command) (*log.Logger, func(), error) {
	path, _ := cmd.Flags().GetString("log-file")
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "", log.LstdFlags), func() { _ = f.Close() }, nil
}
