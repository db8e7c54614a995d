package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/cachekit/internal/core/domain"
	redisclient "github.com/vietddude/cachekit/internal/infra/redis"
)

var deleteCursor bool

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [cache] [topic] [sequence] [page]",
	Short: "Set the stored resume position of a topic",
	Long: `Set the stored resume position of a topic. The next subscription resumes
after the given sequence number. With --delete the cursor is removed and the
next subscription starts from the live tail.`,
	Args: cobra.RangeArgs(2, 4),
	Run:  runResetCursor,
}

var cursorsCmd = &cobra.Command{
	Use:   "cursors",
	Short: "List stored topic resume positions",
	Run:   runCursors,
}

func init() {
	resetCursorCmd.Flags().BoolVar(&deleteCursor, "delete", false, "remove the cursor instead of setting it")
	rootCmd.AddCommand(resetCursorCmd, cursorsCmd)
}

func openCursorStore() *redisclient.Client {
	if !appCfg.Redis.Enabled() {
		slog.Error("Cursor commands require redis.url to be configured")
		os.Exit(1)
	}
	rc, err := redisclient.NewClient(appCfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return rc
}

func runResetCursor(cmd *cobra.Command, args []string) {
	key := domain.TopicKey{CacheName: args[0], Topic: args[1]}

	rc := openCursorStore()
	defer func() {
		_ = rc.Close()
	}()
	ctx := context.Background()

	if deleteCursor {
		if err := rc.Delete(ctx, key); err != nil {
			slog.Error("Failed to delete cursor", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted cursor for %s\n", key)
		return
	}

	if len(args) < 3 {
		fmt.Println("A sequence number is required unless --delete is set")
		os.Exit(1)
	}
	seq, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		fmt.Printf("Invalid sequence number: %v\n", err)
		os.Exit(1)
	}
	var page uint64
	if len(args) == 4 {
		if page, err = strconv.ParseUint(args[3], 10, 64); err != nil {
			fmt.Printf("Invalid sequence page: %v\n", err)
			os.Exit(1)
		}
	}

	cur := domain.Cursor{Topic: key, SequenceNumber: seq, SequencePage: page, UpdatedAt: time.Now()}
	if err := rc.Save(ctx, cur); err != nil {
		slog.Error("Failed to reset cursor", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset cursor for %s to %d (page %d)\n", key, seq, page)
}

func runCursors(cmd *cobra.Command, args []string) {
	rc := openCursorStore()
	defer func() {
		_ = rc.Close()
	}()

	cursors, err := rc.List(context.Background())
	if err != nil {
		slog.Error("Failed to list cursors", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CACHE\tTOPIC\tSEQUENCE\tPAGE\tUPDATED")
	for _, c := range cursors {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			c.Topic.CacheName, c.Topic.Topic, c.SequenceNumber, c.SequencePage, c.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
