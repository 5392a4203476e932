// MAVHUB - MAVLink message hub and router
//
// Concentrates bidirectional MAVLink v2 traffic between UDP, TCP,
// serial, REST/WebSocket and synthetic endpoints through a single
// in-process broadcast bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	_ "github.com/asgard/mavhub/internal/driver/fake"
	_ "github.com/asgard/mavhub/internal/driver/serial"
	_ "github.com/asgard/mavhub/internal/driver/tcp"
	_ "github.com/asgard/mavhub/internal/driver/udp"
	"github.com/asgard/mavhub/internal/endpointurl"
	"github.com/asgard/mavhub/internal/hub"
	"github.com/asgard/mavhub/internal/restapi"
)

var (
	version   = "0.1.0"
	buildDate = "unknown"
	gitSHA    = "unknown"
)

const (
	exitSuccess     = 0
	exitBadURL      = 1
	exitBindFailure = 2
	exitInternal    = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	listenRest := flag.String("listen-rest", ":8080", "address the REST/WebSocket bridge listens on")
	logLevel := flag.String("log-level", "info", "log level: trace, debug, info, warn, error")
	statsInterval := flag.Duration("stats-interval", 10*time.Second, "interval for periodic stats logging")
	busCapacity := flag.Int("bus-capacity", bus.DefaultCapacity, "per-subscriber broadcast bus capacity")
	flag.Parse()

	configureLogging(*logLevel)
	printBanner()

	endpoints := flag.Args()
	parsed := make([]endpointurl.Endpoint, 0, len(endpoints))
	for _, raw := range endpoints {
		ep, err := endpointurl.Parse(raw)
		if err != nil {
			logrus.WithError(err).WithField("url", raw).Error("failed to parse endpoint url")
			return exitBadURL
		}
		parsed = append(parsed, ep)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	h := hub.New(*busCapacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Run(ctx)
	}()

	restDriver := restapi.NewDriver("rest")
	if _, err := h.AddDriver(ctx, restDriver); err != nil {
		logrus.WithError(err).Error("failed to add rest driver")
		return exitInternal
	}

	for _, ep := range parsed {
		d, err := driver.New(ep.Scheme, ep.Name, ep.Options)
		if err != nil {
			logrus.WithError(err).WithField("url", ep.Name).Error("failed to construct driver")
			return exitBadURL
		}
		if _, err := h.AddDriver(ctx, d); err != nil {
			logrus.WithError(err).WithField("url", ep.Name).Error("failed to add driver")
			return exitInternal
		}
	}

	go logStatsPeriodically(ctx, h, *statsInterval)

	router := restapi.NewRouter(h, restDriver, restapi.BuildInfo{
		Name:      "mavhub",
		Version:   version,
		SHA:       gitSHA,
		BuildDate: buildDate,
		Authors:   "asgard",
	})

	server := &http.Server{Addr: *listenRest, Handler: router}

	ln, err := net.Listen("tcp", *listenRest)
	if err != nil {
		logrus.WithError(err).WithField("addr", *listenRest).Error("failed to bind rest listener")
		return exitBindFailure
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", *listenRest).Info("rest/websocket bridge listening")
		serveErrCh <- server.Serve(ln)
	}()

	logrus.Info("mavhub is running, press ctrl+c to stop")

	select {
	case <-sigCh:
		logrus.Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("rest server exited unexpectedly")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	cancel()
	wg.Wait()

	logrus.Info("mavhub shutdown complete")
	return exitSuccess
}

func logStatsPeriodically(ctx context.Context, h *hub.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := h.GetHubStats(ctx)
			if err != nil {
				return
			}
			rates := snap.Input.Rates()
			logrus.WithFields(logrus.Fields{
				"messages":      snap.Input.Messages,
				"bytes":         snap.Input.Bytes,
				"messages_/sec": rates.MessagesPerSecond,
			}).Info("hub stats")
		}
	}
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

func printBanner() {
	fmt.Printf(`
 __  __            _   _       _
|  \/  | __ ___   _| | | |_   _| |__
| |\/| |/ _` + "`" + ` \ \ / / |_| | | | | '_ \
| |  | | (_| |\ V /|  _  | |_| | |_) |
|_|  |_|\__,_| \_/ |_| |_|\__,_|_.__/

MAVLink hub/router v%s (%s, built %s)

`, version, gitSHA, buildDate)
}
