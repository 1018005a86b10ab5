// Command gamecli holds a session with a game server open, reconnecting
// whenever it drops.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"badc0de.net/pkg/flagutil/v1"
	"badc0de.net/pkg/gamenet/client"
	"badc0de.net/pkg/gamenet/config"
	"badc0de.net/pkg/gamenet/paths"
	"badc0de.net/pkg/gamenet/secrets"
)

var (
	configPath string

	tick           = flag.Duration("tick", 20*time.Millisecond, "how often the connection is serviced")
	reconnectDelay = flag.Duration("reconnect_delay", 5*time.Second, "wait between a disconnect and the next connection attempt")
	maxAttempts    = flag.Int("max_attempts", 0, "give up after this many failed connection attempts in a row; 0 means never")
	closeTimeout   = flag.Duration("close_timeout", time.Second, "how long queued packets get to be flushed on exit")
	debugWebServer = flag.String("debug_web_server_listen_address", "", "where the debug server will listen")
)

func main() {
	paths.SetupWritableFilePathFlag(config.FileName, "config", &configPath)
	flagutil.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		glog.Exitf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		glog.Exitf("%s: %v", configPath, err)
	}

	opts := client.Options{
		Host:              cfg.Host,
		Port:              cfg.Port,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		DrainPlaintext:    cfg.DrainPlaintext,
		Account:           cfg.Account,
		Password:          cfg.Password,
		ClientVersion:     cfg.ClientVersion,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}
	if cfg.TLS {
		opts.TLS, err = tlsConfig(cfg)
		if err != nil {
			glog.Exitf("setting up tls: %v", err)
		}
	}

	c := client.New(opts, config.NewFileStore(configPath, cfg), nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return run(ctx, c) })
	if *debugWebServer != "" {
		g.Go(func() error { return serveDebug(ctx, *debugWebServer, c) })
	}
	if err := g.Wait(); err != nil {
		glog.Exit(err)
	}
	glog.Flush()
}

func tlsConfig(cfg *config.Config) (*tls.Config, error) {
	if cfg.CAFile == "" {
		// System roots.
		return secrets.ClientTLSConfig(nil, cfg.ServerName), nil
	}
	path := paths.Find(cfg.CAFile)
	if path == "" {
		path = cfg.CAFile
	}
	pool, err := secrets.LoadCertPool(path)
	if err != nil {
		return nil, err
	}
	return secrets.ClientTLSConfig(pool, cfg.ServerName), nil
}
