package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jd-116/pushnotifier/auth"
	"github.com/jd-116/pushnotifier/env"
	"github.com/jd-116/pushnotifier/pushnotifier"
	"github.com/jd-116/pushnotifier/types"
)

const defaultMaxBodySize = 64 * datasize.KB

func (a *application) loginCommand() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a new app token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Resolved here so values from --env are visible
			if username == "" {
				username = env.LookupEnv("PUSHNOTIFIER_USERNAME", "")
			}
			if password == "" {
				password = env.LookupEnv("PUSHNOTIFIER_PASSWORD", "")
			}
			if username == "" || password == "" {
				return errors.New("both --username and --password are required")
			}

			session := pushnotifier.NewSession(a.transport, a.config, a.logger)
			token, err := session.Login(cmd.Context(), username, password, true)
			if err != nil {
				return err
			}

			printToken(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "PushNotifier username (defaults to $PUSHNOTIFIER_USERNAME)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "PushNotifier password (defaults to $PUSHNOTIFIER_PASSWORD)")
	return cmd
}

func (a *application) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the configured app token for a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}

			token, err := session.RefreshToken(cmd.Context(), true)
			if err != nil {
				return err
			}

			printToken(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func (a *application) tokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the current app token, renewing it if it is about to expire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}

			_, err = session.AppToken(cmd.Context())
			if err != nil {
				return err
			}

			printToken(cmd.OutOrStdout(), session.CurrentToken())
			return nil
		},
	}
}

// printToken writes the token in .env form so it can be fed back through --env
func printToken(w io.Writer, token pushnotifier.AppToken) {
	fmt.Fprintf(w, "PUSHNOTIFIER_APP_TOKEN=%s\n", token.Token)
	if token.NeverExpires() {
		fmt.Fprintln(w, "PUSHNOTIFIER_APP_TOKEN_EXPIRES_AT=0")
		return
	}

	remaining := durafmt.Parse(token.Remaining(time.Now())).LimitFirstN(2).String()
	fmt.Fprintf(w, "PUSHNOTIFIER_APP_TOKEN_EXPIRES_AT=%d # in %s\n", token.ExpiresAt.Unix(), remaining)
}

func (a *application) devicesCommand() *cobra.Command {
	var search string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices registered to the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}

			devices, err := session.GetDevices(cmd.Context())
			if err != nil {
				return err
			}
			devices = pushnotifier.FilterDevices(devices, search)

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(devices)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tMODEL\tIMAGE")
			for _, device := range devices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", device.ID, device.Title, device.Model, device.Image)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "fuzzy filter on device title or model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print devices as JSON")
	return cmd
}

func (a *application) sendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a notification to one or more devices",
	}

	cmd.AddCommand(
		a.sendKindCommand(types.KindText, "Send a text message"),
		a.sendKindCommand(types.KindURL, "Send a URL"),
		a.sendKindCommand(types.KindNotification, "Send a text message with a URL"),
	)
	return cmd
}

func (a *application) sendKindCommand(kind types.NotificationKind, short string) *cobra.Command {
	var deviceIDs []string
	var match, content, url string
	var silent bool

	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := a.openSession(ctx)
			if err != nil {
				return err
			}

			ids := deviceIDs
			if match != "" {
				devices, err := session.GetDevices(ctx)
				if err != nil {
					return err
				}
				matched := pushnotifier.FilterDevices(devices, match)
				if len(matched) == 0 {
					return errors.Errorf("no device matches '%s'", match)
				}
				ids = appendUnique(ids, pushnotifier.DeviceIDs(matched))
			}

			var delivered bool
			switch kind {
			case types.KindText:
				delivered, err = session.SendMessage(ctx, ids, content, silent)
			case types.KindURL:
				delivered, err = session.SendURL(ctx, ids, url, silent)
			case types.KindNotification:
				delivered, err = session.SendNotification(ctx, ids, content, url, silent)
			}
			if err != nil {
				return err
			}
			if !delivered {
				return errors.Errorf("%s notification was not delivered to every device", kind)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "delivered %s notification to %d device(s)\n", kind, len(ids))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&deviceIDs, "device", "d", nil, "device ID (repeatable)")
	flags.StringVarP(&match, "match", "m", "", "also send to devices whose title or model fuzzy-matches")
	flags.BoolVar(&silent, "silent", false, "suppress sound/alert on the device")
	if kind == types.KindText || kind == types.KindNotification {
		flags.StringVarP(&content, "content", "c", "", "message text")
	}
	if kind == types.KindURL || kind == types.KindNotification {
		flags.StringVar(&url, "url", "", "URL to send")
	}
	return cmd
}

func appendUnique(ids []string, more []string) []string {
	seen := make(map[string]bool, len(ids)+len(more))
	result := make([]string, 0, len(ids)+len(more))
	for _, id := range append(append([]string{}, ids...), more...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

func (a *application) relayTokenCommand() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "relay-token",
		Short: "Issue a bearer token for the relay",
		Args:  cobra.NoArgs,
		// Only needs the relay secret, not the PushNotifier credentials
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupEnvironment()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			jwtManager, err := auth.NewJWTManager()
			if err != nil {
				return err
			}

			token, err := jwtManager.IssueToken(subject, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "caller the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (0 never expires)")
	return cmd
}

func (a *application) serveCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay in front of one PushNotifier session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if port == 0 {
				port = 8080
				if env.IsSet("PORT") {
					port, err = env.GetIntEnv("relay port", "PORT")
					if err != nil {
						return err
					}
				}
			}

			maxBodySize := defaultMaxBodySize
			if env.IsSet("RELAY_MAX_BODY_SIZE") {
				maxBodySize, err = env.GetBytesEnv("relay max body size", "RELAY_MAX_BODY_SIZE")
				if err != nil {
					return err
				}
			}

			var deviceCacheTTL time.Duration
			if env.IsSet("RELAY_DEVICE_CACHE_TTL") {
				deviceCacheTTL, err = env.GetDurationEnv("relay device cache TTL", "RELAY_DEVICE_CACHE_TTL")
				if err != nil {
					return err
				}
			}

			jwtManager, err := auth.NewJWTManager()
			if err != nil {
				return err
			}
			if jwtManager.BypassAuth {
				a.logger.Warn().Msg("relay authentication is bypassed")
			}

			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			a.warnIfTokenLapses(session.CurrentToken())

			serverCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			done := make(chan os.Signal, 1)
			signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(done)

			// Propagate termination signals to the cancellation of the server context
			go func() {
				select {
				case <-done:
					cancel()
				case <-serverCtx.Done():
				}
			}()

			server := NewAPIServer(a.logger, session, jwtManager, int64(maxBodySize.Bytes()), deviceCacheTTL)
			return server.Serve(serverCtx, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (defaults to $PORT, then 8080)")
	return cmd
}

// warnIfTokenLapses flags a relay whose token will expire without being renewed,
// since listing and sends only renew with RenewBeforeCalls
func (a *application) warnIfTokenLapses(token pushnotifier.AppToken) bool {
	if a.config.RenewBeforeCalls || token.NeverExpires() {
		return false
	}

	a.logger.Warn().
		Time("expires_at", token.ExpiresAt).
		Msg("app token will not be renewed by the relay; " +
			"set PUSHNOTIFIER_RENEW_BEFORE_CALLS=true to renew it before calls")
	return true
}
