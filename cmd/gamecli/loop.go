package main

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"badc0de.net/pkg/gamenet/client"
)

// run ticks the client until ctx is done. Reconnecting is decided here: the
// client itself never retries.
func run(ctx context.Context, c *client.Client) error {
	ticker := time.NewTicker(*tick)
	defer ticker.Stop()

	connected := false
	failures := 0
	var retryAt time.Time

	for {
		select {
		case <-ctx.Done():
			if connected {
				shutdown(c)
			}
			return nil
		case now := <-ticker.C:
			if !connected {
				if now.Before(retryAt) {
					continue
				}
				if err := connect(ctx, c); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					failures++
					statusError("connecting: %v", err)
					if *maxAttempts > 0 && failures >= *maxAttempts {
						return errors.Errorf("giving up after %d attempts", failures)
					}
					retryAt = now.Add(*reconnectDelay)
					continue
				}
				failures = 0
				connected = true
				statusOK("connected to %s", c.Snapshot().Addr)
			}

			if c.Tick(now) == client.StatusDisconnected {
				connected = false
				retryAt = now.Add(*reconnectDelay)
				statusWarn("disconnected; reconnecting in %v", *reconnectDelay)
			}
		}
	}
}

func connect(ctx context.Context, c *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return c.Connect(ctx)
}

// shutdown gives queued packets a chance to go out before exiting.
func shutdown(c *client.Client) {
	c.Close()
	deadline := time.Now().Add(*closeTimeout)
	for time.Now().Before(deadline) {
		if c.Tick(time.Now()) == client.StatusDisconnected {
			glog.Infof("closed cleanly")
			return
		}
		time.Sleep(*tick)
	}
	glog.Warningf("connection did not close within %v", *closeTimeout)
}
