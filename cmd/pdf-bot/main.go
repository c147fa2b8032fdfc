package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/schidstorm/pdf-bot/pkg/bot"
	"github.com/schidstorm/pdf-bot/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	cmd := &cobra.Command{
		Use:   "pdf-bot",
		Short: "Start the telegram bot that turns images and text into PDFs",
		Run:   helpInterceptor(startBot),
	}

	cmd.PersistentFlags().String("config", "", "Path to the configuration file (yaml or json)")
	cmd.PersistentFlags().String("log-level", "", "Log level, overrides LOG_LEVEL")
	cmd.PersistentFlags().String("env-file", ".env", "Dotenv file to load if present")

	printConfigCmd := &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration",
		Run:   helpInterceptor(printConfig),
	}

	cmd.AddCommand(printConfigCmd)

	err := cmd.Execute()
	if err != nil {
		logrus.WithError(err).Error("Failed to execute command")
		os.Exit(1)
	}
}

func helpInterceptor(child func(cmd *cobra.Command, args []string)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		printHelp := false

		for _, arg := range args {
			if arg == "--help" || arg == "-h" {
				printHelp = true
			}
		}

		if printHelp {
			cmd.Help()
			os.Exit(0)
		} else {
			child(cmd, args)
		}
	}
}

func loadOptions(cmd *cobra.Command) (bot.Options, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).Warn("Failed to load env file")
		}
	}

	configPath, _ := cmd.Flags().GetString("config")
	opts, err := bot.LoadOptions(configPath, os.LookupEnv)

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		opts.LogLevel = level
	}
	return opts, err
}

func printConfig(cmd *cobra.Command, args []string) {
	opts, err := loadOptions(cmd)
	if err != nil && !errors.Is(err, bot.ErrMissingToken) {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	if opts.Token != "" {
		opts.Token = "<redacted>"
	}

	fmt.Println("JSON:")
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	enc.Encode(opts)
	fmt.Println("YAML:")
	yaml.NewEncoder(os.Stdout).Encode(opts)
}

func startBot(cmd *cobra.Command, args []string) {
	opts, err := loadOptions(cmd)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	if err := logger.SetLevel(opts.LogLevel); err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}

	s, err := bot.NewServer(opts)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start bot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = s.Run(ctx)
	if errors.Is(err, bot.ErrConflict) {
		logrus.WithError(err).Fatal("Another instance of this bot is running")
	}
	if err != nil {
		logrus.WithError(err).Fatal("Bot stopped")
	}

	logrus.Info("Bye")
}
