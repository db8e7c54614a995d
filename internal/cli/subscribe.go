package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vietddude/cachekit"
)

var subscribeCount int

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [cache] [topic]",
	Short: "Print messages from a topic until interrupted",
	Args:  cobra.ExactArgs(2),
	Run:   runSubscribe,
}

func init() {
	subscribeCmd.Flags().IntVar(&subscribeCount, "count", 0, "stop after this many messages (0 = run until interrupted)")
	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) {
	client := newClient()
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := client.Subscribe(ctx, args[0], args[1])
	exitOnError("Subscribe", err)
	defer sub.Close()

	received := 0
	for ev := range sub.Events(ctx) {
		switch e := ev.(type) {
		case cachekit.TopicMessage:
			if e.IsBinary {
				fmt.Printf("#%d (%d bytes)\n", e.SequenceNumber, len(e.Binary))
			} else {
				fmt.Printf("#%d %s\n", e.SequenceNumber, e.Text)
			}
			received++
		case cachekit.Discontinuity:
			slog.Warn("Messages skipped", "last", e.LastSequence, "next", e.NewSequence)
		case cachekit.TopicError:
			slog.Error("Subscription ended", "reason", e.Reason(), "error", e.Err)
			_ = sub.Close()
			_ = client.Close()
			os.Exit(1)
		}
		if subscribeCount > 0 && received >= subscribeCount {
			break
		}
	}

	slog.Info("Subscription closed", "messages", received, "resubscribes", sub.ResubscribeCount())
}
