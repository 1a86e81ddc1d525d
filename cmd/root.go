// Package cmd contains the CLI setup and commands exposed to the user
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/MonishPuttu/internhub-chat/configs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ConfigFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "internhub-chat",
	Short: "Terminal client for InternHub's realtime chat rooms",
	Long:  ``,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// deferring this allows user to override config path with cli option
	cobra.OnInitialize(func() {
		initLogger()
		configs.InitConfig(ConfigFile)
	})

	configDir := configs.GetConfigDir()
	defaultConfigFilePath := fmt.Sprintf("%s/internhub.toml", configDir)
	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", defaultConfigFilePath, "config file")

	rootCmd.PersistentFlags().String("api-server", "", "InternHub API origin")
	rootCmd.PersistentFlags().String("chat-server", "", "InternHub realtime chat origin")
	rootCmd.PersistentFlags().Bool("debug", false, "Print debugging information")

	// expose to application via viper
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("servers.api-origin", rootCmd.PersistentFlags().Lookup("api-server"))
	_ = viper.BindPFlag("servers.chat-origin", rootCmd.PersistentFlags().Lookup("chat-server"))
}

func initLogger() {
	level := zerolog.WarnLevel
	if viper.GetBool("debug") {
		level = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	log.Logger = zerolog.New(cw).Level(level).With().Timestamp().Logger()
}
