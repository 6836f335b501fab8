package main

import (
	"context"
	stdlog "log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jd-116/pushnotifier/pushnotifier"
)

// application bundles together the process-wide resources shared by every command
type application struct {
	envPath   string
	logFormat string
	verbose   bool

	logger    zerolog.Logger
	config    *pushnotifier.Config
	transport *pushnotifier.Transport
}

// Runs the selected command and releases the transport afterwards.
// This function blocks.
func main() {
	app := &application{logger: zerolog.Nop()}
	err := app.rootCommand().ExecuteContext(context.Background())

	// Disconnect automatically, however the command ended
	app.shutdown()

	if err != nil {
		os.Exit(1)
	}
}

func (a *application) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pushnotifier",
		Short:         "Send PushNotifier messages and manage app tokens",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envPath, "env", "", "path to .env file")
	flags.StringVar(&a.logFormat, "log-format", "console", "log format (one of 'json', 'console')")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log every API call")

	root.AddCommand(
		a.loginCommand(),
		a.refreshCommand(),
		a.tokenCommand(),
		a.devicesCommand(),
		a.sendCommand(),
		a.relayTokenCommand(),
		a.serveCommand(),
	)
	return root
}

// setup configures logging, loads the environment
// and connects the shared transport exactly once
func (a *application) setup(ctx context.Context) error {
	err := a.setupEnvironment()
	if err != nil {
		return err
	}

	config, err := pushnotifier.LoadConfig()
	if err != nil {
		return err
	}
	a.config = config

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	transport := pushnotifier.NewTransport(config, a.logger)
	err = transport.Connect(connectCtx)
	if err != nil {
		return errors.Wrap(err, "could not set up the PushNotifier transport")
	}
	a.transport = transport

	return nil
}

// setupEnvironment configures structured logging and loads the .env file if given
func (a *application) setupEnvironment() error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	switch a.logFormat {
	case "console":
		output := zerolog.ConsoleWriter{Out: os.Stderr}
		a.logger = zerolog.New(output).With().Timestamp().Logger()
	case "json":
		a.logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		return errors.Errorf("unknown log format '%s'", a.logFormat)
	}
	if a.verbose {
		a.logger = a.logger.Level(zerolog.DebugLevel)
	} else {
		a.logger = a.logger.Level(zerolog.InfoLevel)
	}
	stdlog.SetFlags(0)
	stdlog.SetOutput(a.logger)

	if a.envPath != "" {
		err := godotenv.Load(a.envPath)
		if err != nil {
			return errors.Wrapf(err, "error loading .env file '%s'", a.envPath)
		}
		a.logger.Debug().Str("env_path", a.envPath).Msg("loaded environment variables from file")
	}

	return nil
}

func (a *application) shutdown() {
	if a.transport == nil {
		return
	}

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer disconnectCancel()
	err := a.transport.Disconnect(disconnectCtx)
	if err != nil {
		a.logger.Error().Err(err).Msg("error disconnecting the PushNotifier transport")
	}
}
