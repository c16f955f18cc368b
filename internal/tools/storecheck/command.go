package storecheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/parlorhq/session-service/internal/domain"
	"github.com/parlorhq/session-service/internal/security"
	"github.com/parlorhq/session-service/internal/store"
	"github.com/parlorhq/session-service/internal/tools/common"
	"github.com/parlorhq/session-service/internal/tools/ui"
)

type options struct {
	redisAddr     string
	redisPassword string
	redisDB       int
	prefix        string
	ci            bool
	timeout       time.Duration
}

// NewRootCommand builds the storecheck tool: a live round trip against
// the session store so operators can verify connectivity and TTL
// behavior before pointing traffic at it.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "storecheck", Short: "Verify the session store round trip"}
	cmd.PersistentFlags().StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "redis address")
	cmd.PersistentFlags().StringVar(&opts.redisPassword, "redis-password", "", "redis password")
	cmd.PersistentFlags().IntVar(&opts.redisDB, "redis-db", 0, "redis database")
	cmd.PersistentFlags().StringVar(&opts.prefix, "prefix", "storecheck", "key prefix for probe records")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "probe timeout")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Write, read, and delete a probe session",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "storecheck run", func(ctx context.Context) ([]string, error) {
				return probe(ctx, opts)
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "storecheck run", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func probe(ctx context.Context, opts *options) ([]string, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.redisAddr,
		Password: opts.redisPassword,
		DB:       opts.redisDB,
	})
	defer func() { _ = client.Close() }()

	st := store.NewRedisSessionStore(client, opts.prefix)
	var details []string

	if err := st.Ping(ctx); err != nil {
		return details, fmt.Errorf("redis ping: %w", err)
	}
	details = append(details, "redis ping: ok")

	opaque, err := security.NewOpaqueToken()
	if err != nil {
		return details, err
	}
	rec := domain.Record{UserID: 1, ExpiresAt: time.Now().Add(time.Minute)}
	if err := st.Put(ctx, opaque, rec, time.Minute); err != nil {
		return details, fmt.Errorf("put probe record: %w", err)
	}
	details = append(details, "put probe record: ok")

	got, err := st.Get(ctx, opaque)
	if err != nil {
		return details, fmt.Errorf("get probe record: %w", err)
	}
	if got.UserID != rec.UserID {
		return details, fmt.Errorf("probe record corrupted: user_id %d", got.UserID)
	}
	details = append(details, "get probe record: ok")

	if err := st.Delete(ctx, opaque); err != nil {
		return details, fmt.Errorf("delete probe record: %w", err)
	}
	if _, err := st.Get(ctx, opaque); !errors.Is(err, store.ErrNotFound) {
		return details, fmt.Errorf("probe record survived deletion: %v", err)
	}
	details = append(details, "delete probe record: ok")

	return details, nil
}
