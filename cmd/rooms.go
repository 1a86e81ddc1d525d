package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MonishPuttu/internhub-chat/internal/services/directory"
	"github.com/MonishPuttu/internhub-chat/internal/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List chat rooms",
	Run:   listRooms,
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new chat room",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, args []string) error {
		if strings.TrimSpace(args[0]) == "" {
			return fmt.Errorf("room name must not be empty")
		}
		return nil
	},
	Run: createRoom,
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.AddCommand(roomsCreateCmd)
}

func listRooms(_ *cobra.Command, _ []string) {
	client, err := directoryClient()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	rooms, err := client.ListRooms(cmdContext())
	if err != nil {
		log.Fatal().Err(fmt.Errorf("error listing rooms: %w", err)).Send()
	}
	if len(rooms) == 0 {
		fmt.Println("No rooms yet. Create one with: internhub-chat rooms create <name>")
		return
	}
	for _, room := range rooms {
		fmt.Printf("%s\t%s\n", room.ID, room.Name)
	}
}

func createRoom(_ *cobra.Command, args []string) {
	client, err := directoryClient()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	room, err := client.CreateRoom(cmdContext(), strings.TrimSpace(args[0]))
	if err != nil {
		log.Fatal().Err(fmt.Errorf("error creating room: %w", err)).Send()
	}
	fmt.Printf("Created room %s (%s). Join it with: internhub-chat chat %s\n", room.Name, room.ID, room.ID)
}

// directoryClient builds a REST client from the stored credential.
func directoryClient() (*directory.Client, error) {
	store, err := state.DefaultStore()
	if err != nil {
		return nil, err
	}
	token := store.Token()
	if token == "" {
		return nil, fmt.Errorf("not logged in. run: internhub-chat login <token>")
	}
	return directory.NewClient(viper.GetString("servers.api-origin"), token), nil
}

// cmdContext cancels on SIGINT/SIGTERM for one-shot commands.
func cmdContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
