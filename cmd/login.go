package cmd

import (
	"fmt"

	"github.com/MonishPuttu/internhub-chat/internal/services/directory"
	"github.com/MonishPuttu/internhub-chat/internal/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store an InternHub access token and resolve your identity",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, args []string) error {
		if args[0] == "" {
			return fmt.Errorf("token must not be empty")
		}
		return nil
	},
	Run: login,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func login(_ *cobra.Command, args []string) {
	token := args[0]

	store, err := state.DefaultStore()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	if err := store.SetToken(token); err != nil {
		log.Fatal().Err(fmt.Errorf("error storing token: %w", err)).Send()
	}

	client := directory.NewClient(viper.GetString("servers.api-origin"), token)
	user, err := client.Identity(cmdContext())
	if err != nil {
		// token stays stored so the user can retry once the backend is reachable
		log.Fatal().Err(fmt.Errorf("error resolving identity: %w", err)).Send()
	}
	if err := store.SetUser(user); err != nil {
		log.Fatal().Err(fmt.Errorf("error storing user: %w", err)).Send()
	}
	fmt.Printf("Logged in as %s (%s)\n", user.Name, user.ID)
}
