// Command authcore-sweep removes expired session records from Redis.
// Run it from cron or a maintenance job; lazy deletion on the hot path
// handles sessions that are looked up, this tool reclaims the rest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvachell/authcore/session"
)

func main() {
	var (
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env is used")
		prefix    = flag.String("prefix", "as", "session key prefix")
		timeout   = flag.Duration("timeout", 5*time.Minute, "overall sweep deadline")
	)
	flag.Parse()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		fmt.Fprintln(os.Stderr, "redis address required (-redis-addr or REDIS_ADDR)")
		os.Exit(2)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store := session.NewStore(client, *prefix, 0)

	start := time.Now()
	swept, err := store.SweepExpired(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed after %d removals: %v\n", swept, err)
		os.Exit(1)
	}

	fmt.Printf("swept %d expired sessions in %s\n", swept, time.Since(start).Round(time.Millisecond))
}
