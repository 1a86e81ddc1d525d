package cmd

import (
	"fmt"

	"github.com/MonishPuttu/internhub-chat/internal/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored token, identity and joined room",
	Run: func(_ *cobra.Command, _ []string) {
		store, err := state.DefaultStore()
		if err != nil {
			log.Fatal().Err(err).Send()
		}
		if err := store.Clear(); err != nil {
			log.Fatal().Err(fmt.Errorf("error clearing session: %w", err)).Send()
		}
		fmt.Println("Logged out")
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
