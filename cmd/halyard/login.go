package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/halyard-ai/halyard/client"
	"github.com/halyard-ai/halyard/session"
)

func newLoginCommand() *cobra.Command {
	var userID, password, deviceName string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the server and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			if a.cfg.ServerURL == "" {
				return fmt.Errorf("no server URL configured; pass --server or set server_url in the config file")
			}

			reader := bufio.NewReader(os.Stdin)
			if userID == "" {
				fmt.Print("user id: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				userID = strings.TrimSpace(line)
			}
			if password == "" {
				fmt.Print("password: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				password = strings.TrimSpace(line)
			}
			if deviceName == "" {
				deviceName = "halyard-cli-" + uuid.NewString()[:8]
			}

			c := client.New(a.cfg.ServerURL, client.WithLogger(a.logger))
			result, err := c.Login(cmd.Context(), userID, password, deviceName)
			if err != nil {
				return err
			}

			sess := &session.Session{
				Profile:     a.cfg.Profile,
				ServerURL:   a.cfg.ServerURL,
				AccessToken: result.AccessToken,
				UserID:      result.UserID,
				DeviceName:  deviceName,
			}
			if err := a.store.Save(cmd.Context(), sess); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			fmt.Printf("logged in as %s (profile %q)\n", result.UserID, a.cfg.Profile)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&deviceName, "device-name", "", "device name reported to the server")
	return cmd
}
