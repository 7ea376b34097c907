// File: cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chatrelay/chatrelay/data"
	"github.com/chatrelay/chatrelay/service"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Hardcode the version string here
	version     = "v0.3.0"
	versionFlag bool

	cfgFile   string // Path to the config file if specified via flag
	debugMode bool   // Flag to enable debug logging

	// Global logger instance, configured by setupLogging
	logger = service.GetLogger()

	modelFlag     string // chatrelay "What is Go?" --model(-m) gpt4o
	searchFlag    bool   // chatrelay --search(-s) "What's the Tesla stock price right now?"
	referenceFlag int    // chatrelay --reference(-r) 3 "..."
	convoFlag     string // chatrelay --conversation(-c) my-session "..."

	rootCmd = &cobra.Command{
		Use:   "chatrelay [prompt]",
		Short: "Stream chat completions with mid-response tool execution",
		Long: `chatrelay ingests streaming LLM responses, normalizes content across
provider wire shapes, and runs the tool-call sub-protocol: detect a tool
request mid-stream, execute it, and resume generation with cited results.`,
		Args: cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if versionFlag {
				fmt.Printf("%s %s\n", cmd.CommandPath(), version)
				return
			}
			if len(args) == 0 {
				cmd.Help()
				return
			}
			prompt := ""
			for i, arg := range args {
				if i > 0 {
					prompt += " "
				}
				prompt += arg
			}
			if err := runPrompt(prompt); err != nil {
				logger.Errorf("%v", err)
				os.Exit(1)
			}
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, setupLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: chatrelay.yaml under the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "v", false, "print version")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "model name from config")
	rootCmd.Flags().BoolVarP(&searchFlag, "search", "s", false, "enable the web_search capability")
	rootCmd.Flags().IntVarP(&referenceFlag, "reference", "r", 0, "max references in the citation block")
	rootCmd.Flags().StringVarP(&convoFlag, "conversation", "c", "", "session key for transcripts and reattachment")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if err := data.EnsureConfigDir(); err != nil {
			// Home resolution as a last resort; config stays optional.
			home, herr := homedir.Dir()
			if herr == nil {
				viper.AddConfigPath(filepath.Join(home, ".config", "chatrelay"))
			}
		}
		viper.AddConfigPath(data.GetConfigDir())
		viper.SetConfigName("chatrelay")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "error reading config file: %v\n", err)
		}
	}
}

func setupLogging() {
	service.InitLogger()
	if debugMode {
		logger.SetLevel(log.DebugLevel)
		service.Debugf("Debug logging enabled")
	}
}
