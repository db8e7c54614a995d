package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/cachekit"
)

var (
	setTTL      time.Duration
	callTimeout time.Duration
)

var getCmd = &cobra.Command{
	Use:   "get [cache] [key]",
	Short: "Read a value",
	Args:  cobra.ExactArgs(2),
	Run:   runGet,
}

var setCmd = &cobra.Command{
	Use:   "set [cache] [key] [value]",
	Short: "Store a value",
	Args:  cobra.ExactArgs(3),
	Run:   runSet,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [cache] [key]",
	Short: "Remove a value",
	Args:  cobra.ExactArgs(2),
	Run:   runDelete,
}

var publishCmd = &cobra.Command{
	Use:   "publish [cache] [topic] [message]",
	Short: "Publish a text message to a topic (never retried)",
	Args:  cobra.ExactArgs(3),
	Run:   runPublish,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 10*time.Second, "overall request timeout")
	setCmd.Flags().DurationVar(&setTTL, "ttl", 0, "time to live (0 uses the cache default)")

	rootCmd.AddCommand(getCmd, setCmd, deleteCmd, publishCmd)
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func exitOnError(op string, err error) {
	if err == nil {
		return
	}
	slog.Error(op+" failed", "reason", cachekit.ReasonOf(err), "error", err)
	os.Exit(1)
}

func runGet(cmd *cobra.Command, args []string) {
	client := newClient()
	defer client.Close()

	ctx, cancel := callContext()
	defer cancel()

	value, found, err := client.Get(ctx, args[0], args[1])
	exitOnError("Get", err)
	if !found {
		fmt.Println("(miss)")
		return
	}
	fmt.Println(string(value))
}

func runSet(cmd *cobra.Command, args []string) {
	client := newClient()
	defer client.Close()

	ctx, cancel := callContext()
	defer cancel()

	exitOnError("Set", client.Set(ctx, args[0], args[1], []byte(args[2]), setTTL))
	fmt.Println("OK")
}

func runDelete(cmd *cobra.Command, args []string) {
	client := newClient()
	defer client.Close()

	ctx, cancel := callContext()
	defer cancel()

	exitOnError("Delete", client.Delete(ctx, args[0], args[1]))
	fmt.Println("OK")
}

func runPublish(cmd *cobra.Command, args []string) {
	client := newClient()
	defer client.Close()

	ctx, cancel := callContext()
	defer cancel()

	exitOnError("Publish", client.Publish(ctx, args[0], args[1], args[2]))
	fmt.Println("OK")
}
