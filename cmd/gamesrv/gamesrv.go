// Command gamesrv runs the reference login server, for trying out the client
// by hand.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	_ "golang.org/x/net/trace"

	"badc0de.net/pkg/flagutil/v1"
	"badc0de.net/pkg/gamenet/login"
	"badc0de.net/pkg/gamenet/secrets"
)

var (
	listenAddress  = flag.String("listen_address", ":7171", "where the login server will listen")
	accounts       = flag.String("accounts", "demo:demo", "comma separated account:password pairs")
	useTLS         = flag.Bool("tls", false, "require tls on every connection")
	certFile       = flag.String("cert_file", "", "PEM certificate for tls; a self-signed one is generated if empty")
	keyFile        = flag.String("key_file", "", "PEM key for -cert_file")
	writeCA        = flag.String("write_ca", "", "where to write the generated self-signed certificate, for the client's ca_file")
	downgrade      = flag.Bool("downgrade", false, "switch encrypted connections to plaintext after login")
	debugWebServer = flag.String("debug_web_server_listen_address", "", "where the debug server will listen")
)

func main() {
	flagutil.Parse()
	glog.Infoln("starting gamesrv")

	opts := login.Options{Downgrade: *downgrade}
	var err error
	if opts.Accounts, err = parseAccounts(*accounts); err != nil {
		glog.Exitf("-accounts: %v", err)
	}
	if *useTLS {
		if opts.TLS, err = serverTLS(); err != nil {
			glog.Exitf("setting up tls: %v", err)
		}
	}

	srv, err := login.NewServer(opts)
	if err != nil {
		glog.Exit(err)
	}

	if *debugWebServer != "" {
		http.HandleFunc("/debug/minimetrics", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "runtime.NumGoroutine(): %d\n", runtime.NumGoroutine())
		})
		go http.ListenAndServe(*debugWebServer, nil)
	}

	l, err := net.Listen("tcp", *listenAddress)
	if err != nil {
		glog.Exit(err)
	}
	glog.Infof("gamesrv now listening on %v (tls=%v downgrade=%v)", l.Addr(), *useTLS, *downgrade)
	glog.Exit(srv.Accept(l))
}

func parseAccounts(s string) (map[string]string, error) {
	m := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		acc, pwd, ok := strings.Cut(pair, ":")
		if !ok || acc == "" {
			return nil, errors.Errorf("bad account %q", pair)
		}
		m[acc] = pwd
	}
	return m, nil
}

func serverTLS() (*tls.Config, error) {
	if *certFile != "" {
		cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading key pair")
		}
		return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
	}

	cert, pemCert, err := secrets.SelfSigned("127.0.0.1", "::1", "localhost")
	if err != nil {
		return nil, err
	}
	if *writeCA != "" {
		if err := os.WriteFile(*writeCA, pemCert, 0o644); err != nil {
			return nil, errors.Wrap(err, "writing ca file")
		}
		glog.Infof("wrote self-signed certificate to %s", *writeCA)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
