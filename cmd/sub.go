package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/piconats/client"
	"github.com/luma/piconats/metrics"
	"github.com/luma/piconats/storage"
)

var (
	subQueue    string
	subCount    uint32
	subHTTPAddr string
	subSnapshot string
	subQuiet    bool
)

func init() {
	flags := SubCmd.Flags()

	flags.StringVarP(&subQueue, "queue", "q", "", "Join this queue group")
	flags.Uint32Var(&subCount, "count", 0, "Exit after this many messages, 0 to run until interrupted")
	flags.StringVar(&subHTTPAddr, "http", "", "Serve the monitor on this address, for example :8222")
	flags.StringVar(&subSnapshot, "snapshot", "", "Load the last messages from this file on start and save them on exit")
	flags.BoolVar(&subQuiet, "quiet", false, "Don't print messages")
}

var SubCmd = &cobra.Command{
	Use:   "sub <subject>",
	Short: "Subscribe to a subject and print what arrives",
	Long: `Subscribe to a subject and print what arrives

With --http the last message of every subject, the client's counters and
Prometheus metrics are served over HTTP while subscribed.

Usage
	piconats sub 'sensors.>' --http :8222 --snapshot last.json
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signalContext()
		defer signalStop()

		conf, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		store := storage.NewInmemoryStore()
		defer store.Close()

		if err := loadSnapshot(store, subSnapshot); err != nil {
			return err
		}

		collector := metrics.NewCollector(conf.Name)

		// the channel is closed by store.Close
		go func(updates <-chan *storage.Update) {
			for u := range updates {
				if ce := log.Check(zap.DebugLevel, "Last message updated"); ce != nil {
					ce.Write(zap.String("subject", u.Subject), zap.ByteString("entry", u.Entry))
				}
			}
		}(store.ListenToUpdates())

		var srv *http.Server
		if subHTTPAddr != "" {
			srv = &http.Server{
				Addr:    subHTTPAddr,
				Handler: NewMonitor(conf.DebugHTTP, log.Named("http"), store, collector),
			}

			// serve in a goroutine so it won't block the shutdown handling below
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Http server errored", zap.Error(err))
				}
			}()

			log.Info("Serving monitor", zap.String("addr", subHTTPAddr))
		}

		s, err := dial(ctx, conf, log)
		if err != nil {
			return err
		}

		var received uint32
		handler := client.MsgHandlerFunc(func(m *client.Msg) {
			received++

			if !subQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "[#%d] Received on %q: %s\n", received, m.Subject, m.Data)
			}

			err := store.Set(ctx, string(m.Subject), storage.Message{Data: m.Data, Reply: string(m.Reply)})
			if err != nil {
				log.Warn("Failed to store message", zap.ByteString("subject", m.Subject), zap.Error(err))
			}
		})

		sid, err := subscribe(s.c, args[0], subQueue, handler)
		if err != nil {
			s.close()
			return err
		}

		if subCount > 0 {
			if err := s.c.UnsubscribeAfter(sid, subCount); err != nil {
				s.close()
				return err
			}
		}

		log.Info("Subscribed", zap.String("subject", args[0]), zap.String("queue", subQueue), zap.Uint16("sid", sid))

		err = s.run(ctx, func() bool {
			collector.Set(metrics.SnapshotOf(s.c))
			return subCount == 0 || received < subCount
		})

		// Restore default behavior on the interrupt signal
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		if drainErr := s.drain(context.Background()); drainErr != nil {
			log.Warn("Failed to close", zap.Error(drainErr))
		}

		if srv != nil {
			// the server has 5 seconds to finish the request it is handling
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			srv.SetKeepAlivesEnabled(false)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		if err := saveSnapshot(store, subSnapshot); err != nil {
			log.Error("Failed to save snapshot", zap.String("path", subSnapshot), zap.Error(err))
		}

		log.Info("Exiting", zap.Uint32("received", received))
		return err
	},
}

func subscribe(c *client.Client, subject, queue string, handler client.MsgHandler) (uint16, error) {
	if queue != "" {
		return c.SubscribeQueue(subject, queue, handler)
	}
	return c.Subscribe(subject, handler)
}

func loadSnapshot(store storage.Store, path string) error {
	if path == "" {
		return nil
	}

	doc, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return store.Restore(doc)
}

func saveSnapshot(store storage.Store, path string) error {
	if path == "" {
		return nil
	}

	doc, err := store.Backup()
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, doc, 0600)
}
