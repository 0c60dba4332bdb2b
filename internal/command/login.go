package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatloom/loom/internal/backend"
	"github.com/chatloom/loom/internal/config"
)

// NewLoginCmd saves connection defaults to the config file.
func NewLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save server, token, and user to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			token, _ := cmd.Flags().GetString("token")
			user, _ := cmd.Flags().GetString("user")
			channelID, _ := cmd.Flags().GetString("channel")

			if server == "" || user == "" {
				return fmt.Errorf("login requires --server and --user")
			}
			normalized, err := backend.NormalizeBaseURL(server)
			if err != nil {
				return err
			}

			cfg := config.Config{
				ServerURL: normalized,
				Token:     token,
				UserID:    user,
				Channel:   channelID,
			}
			if err := config.Write(cfg); err != nil {
				return err
			}
			cmd.Printf("saved config for %s@%s\n", user, normalized)
			return nil
		},
	}
}
