package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatloom/loom/internal/backend"
	"github.com/chatloom/loom/internal/types"
)

// NewPostCmd sends a single message without opening the TUI.
func NewPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <text...>",
		Short: "Post a message to the channel and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			client, err := backend.NewClient(settings.ServerURL, settings.Token, settings.UserID)
			if err != nil {
				return err
			}

			parentID, _ := cmd.Flags().GetString("reply-to")
			msg := types.Message{
				User:     &types.User{ID: settings.UserID},
				Text:     strings.Join(args, " "),
				Type:     types.MessageRegular,
				ParentID: parentID,
			}
			sent, err := client.SendMessage(cmd.Context(), settings.Channel, msg)
			if err != nil {
				return fmt.Errorf("post: %w", err)
			}
			cmd.Printf("posted %s\n", sent.ID)
			return nil
		},
	}
	cmd.Flags().String("reply-to", "", "post as a reply to a message id")
	return cmd
}
