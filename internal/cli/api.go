package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rokkincat/trackload/internal/config"
	lhttp "github.com/rokkincat/trackload/internal/http"
	"github.com/rokkincat/trackload/internal/output"
	"github.com/rokkincat/trackload/internal/tracker"
)

const defaultCallTimeout = 30 * time.Second

// callFunc performs one authenticated call against the service.
type callFunc func(ctx context.Context, c *tracker.Client, s *tracker.Session, cfg *config.Config) (*lhttp.Response, error)

type apiFlags struct {
	format  string
	verbose bool
	noColor bool
}

// newAPICmds returns the one-shot commands. Each logs in, makes one call
// and prints the response.
func newAPICmds(opts *options) []*cobra.Command {
	var termsID int64

	session := newAPICmd(opts, "session", "Create a session and print it", nil)

	point := newAPICmd(opts, "point", "Submit a single location point", func(ctx context.Context, c *tracker.Client, s *tracker.Session, cfg *config.Config) (*lhttp.Response, error) {
		p := tracker.NewLocationPoint(tracker.PointOptions{
			UUID:      cfg.Point.UUID,
			UserID:    cfg.Point.UserID,
			Latitude:  cfg.Point.Latitude,
			Longitude: cfg.Point.Longitude,
		})
		return c.SubmitPoint(ctx, s.Token, p)
	})

	terms := newAPICmd(opts, "terms", "Record acceptance of a terms version", func(ctx context.Context, c *tracker.Client, s *tracker.Session, _ *config.Config) (*lhttp.Response, error) {
		return c.AcceptTerms(ctx, s.Token, termsID)
	})
	terms.Flags().Int64Var(&termsID, "terms-id", 1, "Terms version to accept")

	payPerformance := newAPICmd(opts, "pay-performance", "Fetch pay performance for --user-id", func(ctx context.Context, c *tracker.Client, s *tracker.Session, cfg *config.Config) (*lhttp.Response, error) {
		return c.PayPerformance(ctx, s.Token, cfg.Point.UserID)
	})

	dailyStats := newAPICmd(opts, "daily-stats", "Request the daily stats export", func(ctx context.Context, c *tracker.Client, s *tracker.Session, _ *config.Config) (*lhttp.Response, error) {
		return c.DailyStatsExport(ctx, s.Token)
	})

	return []*cobra.Command{session, point, terms, payPerformance, dailyStats}
}

// newAPICmd builds a one-shot command. A nil call prints the login response.
func newAPICmd(opts *options, use, short string, call callFunc) *cobra.Command {
	flags := &apiFlags{}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPICall(cmd, opts, flags, call)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format: text, json or yaml")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Show headers and timing")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runAPICall(cmd *cobra.Command, opts *options, flags *apiFlags, call callFunc) error {
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	errs := &config.ValidationErrors{}
	cfg.ValidateTarget(errs)
	if errs.HasErrors() {
		return errs
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := tracker.NewClient(cfg.Target.Host, lhttp.WithHTTPClient(lhttp.NewHTTPClient(lhttp.TransportConfig{
		Timeout:            cfg.HTTP.Timeout.GetDuration(defaultCallTimeout),
		IdleConnTimeout:    90 * time.Second,
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
	})))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, resp, err := client.LoginWithResponse(ctx, tracker.Credentials{
		Email:    cfg.Credentials.Email,
		Password: cfg.Credentials.Password,
	})
	name := tracker.RequestSession
	if err != nil {
		logger.Debug("login failed", zap.Error(err))
		if resp == nil {
			return err
		}
		// Show what the service said before failing.
		if perr := printCall(cmd, format, flags, name, "", resp, false); perr != nil {
			return perr
		}
		return err
	}
	logger.Debug("session created", zap.String("session", sess.ID))

	if call != nil {
		name = cmd.Name()
		if resp, err = call(ctx, client, sess, cfg); err != nil {
			return fmt.Errorf("%s request failed: %w", name, err)
		}
	}

	passed := tracker.CheckStatus(resp)
	if err := printCall(cmd, format, flags, name, sess.ID, resp, passed); err != nil {
		return err
	}
	if !passed {
		logStatusFailure(logger, name, resp)
		return fmt.Errorf("%w: %s returned %d", ErrCheckFailed, name, resp.StatusCode)
	}
	return nil
}

func printCall(cmd *cobra.Command, format output.Format, flags *apiFlags, name, sessionID string, resp *lhttp.Response, passed bool) error {
	formatter := output.NewFormatter(format, flags.verbose, flags.noColor)
	text, err := formatter.FormatResult(output.NewCallResult(name, sessionID, resp, passed))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func logStatusFailure(logger *zap.Logger, name string, resp *lhttp.Response) {
	fields := []zap.Field{zap.String("request", name), zap.Int("status", resp.StatusCode)}
	switch {
	case resp.IsServerError():
		logger.Warn("service failed the request", fields...)
	case resp.IsClientError():
		logger.Warn("service rejected the request", fields...)
	case resp.IsSuccess():
		logger.Warn("success status other than 200 or 201", fields...)
	default:
		logger.Warn("unexpected status", fields...)
	}
}
