package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	pubReply string
	pubCount int
)

func init() {
	flags := PubCmd.Flags()

	flags.StringVar(&pubReply, "reply", "", "A reply subject to send with the message")
	flags.IntVar(&pubCount, "count", 1, "How many times to publish the message")
}

var PubCmd = &cobra.Command{
	Use:   "pub <subject> <data>",
	Short: "Publish a message",
	Long: `Publish a message and wait for the server to have processed it

Usage
	piconats pub sensors.kitchen.temp 21.5 --count 10
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

		subject, data := args[0], []byte(args[1])
		for i := 0; i < pubCount; i++ {
			if err := s.c.PublishWithReply(subject, pubReply, data); err != nil {
				return err
			}
		}

		if err := s.flush(ctx); err != nil {
			return err
		}

		log.Info("Published",
			zap.String("subject", subject),
			zap.Int("count", pubCount),
			zap.Int("size", len(data)))

		return nil
	},
}
