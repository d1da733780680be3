package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/piconats/client"
)

var (
	requestTimeout time.Duration
)

func init() {
	RequestCmd.Flags().DurationVar(&requestTimeout, "timeout", 2*time.Second, "How long to wait for the reply")
}

var RequestCmd = &cobra.Command{
	Use:   "request <subject> <data>",
	Short: "Send a request and print the reply",
	Long: `Send a request and print the reply

Usage
	piconats request svc.time now --timeout 500ms
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		conf, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		s, err := dial(ctx, conf, log)
		if err != nil {
			return err
		}
		defer s.close()

		req := &client.Request{}
		if err := s.c.RequestStart(req, args[0], []byte(args[1]), requestTimeout); err != nil {
			return err
		}

		start := time.Now()
		status := client.RequestPending

		// a timeout comes back as RequestTimedOut, the error only repeats it
		err = s.run(ctx, func() bool {
			status, _ = s.c.RequestCheck(req)
			return status == client.RequestPending
		})
		if err != nil {
			return err
		}

		switch status {
		case client.RequestReady:
			log.Debug("Received reply",
				zap.String("inbox", req.Inbox()),
				zap.Duration("took", time.Since(start)),
				zap.Bool("truncated", req.Truncated()))

			fmt.Fprintln(cmd.OutOrStdout(), string(req.Response()))
			return nil

		case client.RequestPending:
			// interrupted
			return s.c.RequestCancel(req)

		default:
			return fmt.Errorf("No reply on %s within %s: %w", args[0], requestTimeout, client.ErrTimeout)
		}
	},
}
