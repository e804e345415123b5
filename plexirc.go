// plexirc is a single-process IRC relay server: one event loop multiplexes
// every connection, and an in-memory directory of sessions and channels
// mediates direct and channel messaging.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/armon/go-metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stapelberg/glog"

	"github.com/plexirc/plexirc/internal/config"
	"github.com/plexirc/plexirc/internal/ircserver"
	"github.com/plexirc/plexirc/internal/netloop"
)

var (
	configPath = flag.String("config",
		"",
		"Path to an optional TOML configuration file.")
	metricsListen = flag.String("metrics_listen",
		"",
		"[host]:port to serve HTTP /metrics and a status page on. Empty disables the listener.")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <port> <password>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	defer glog.Flush()
	glog.CopyStandardLogTo("INFO")

	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}

	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintln(os.Stderr, "Error: Invalid port number. Must be 1-65535")
		os.Exit(1)
	}
	password := flag.Arg(1)
	if password == "" {
		fmt.Fprintln(os.Stderr, "Error: Password cannot be empty")
		os.Exit(1)
	}

	cfg := config.DefaultConfig
	if *configPath != "" {
		cfg, err = config.FromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not load %s: %v\n", *configPath, err)
			os.Exit(1)
		}
	}

	// Counters emitted by the event loop end up in this sink; SIGUSR1
	// dumps them, and the state they describe is also on the status page.
	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inm)
	if _, err := metrics.NewGlobal(metrics.DefaultConfig("plexirc"), inm); err != nil {
		glog.Exitf("metrics: %v", err)
	}

	srv := ircserver.NewIRCServer(cfg.ServerName, password, time.Now())
	srv.Config = cfg

	loop, err := netloop.NewLoop(port, srv, cfg.ReceiveQueueBytes)
	if err != nil {
		glog.Exitf("%v", err)
	}

	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "plexirc %s: %d sessions, %d channels\n",
				cfg.ServerName, srv.NumSessions(), srv.NumChannels())
		})
		go func() {
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				glog.Errorf("metrics listener: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		glog.Infof("received signal %v, shutting down", sig)
		loop.Stop()
	}()

	glog.Infof("%s listening on port %d", cfg.ServerName, port)
	if err := loop.Run(); err != nil {
		glog.Exitf("event loop: %v", err)
	}
}
