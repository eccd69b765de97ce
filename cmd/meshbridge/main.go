package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meshbridge/internal/adsb"
	"meshbridge/internal/bridge"
	"meshbridge/internal/config"
	"meshbridge/internal/icao"
	"meshbridge/internal/metrics"
	"meshbridge/internal/readsb"
	"meshbridge/internal/share"
	"meshbridge/internal/tracker"
	"meshbridge/internal/web"
	"meshbridge/pkg/utils"
)

var (
	sha1ver   string
	buildTime string
)

func main() {
	configFile := flag.String("config", "meshbridge.ini", "Path to configuration file")
	flag.Parse()

	log.Printf("meshbridge: Build %s, Time %s", sha1ver, buildTime)

	// Load configuration
	cfg, err := config.New(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Load the identifier map and keep it fresh
	addrs, err := icao.Load(cfg.ICAOMapFile)
	if err != nil {
		log.Fatalf("Failed to load identifier map: %v", err)
	}
	watchStop := make(chan struct{})
	defer close(watchStop)
	go func() {
		if err := addrs.Watch(watchStop); err != nil {
			log.Printf("Warning - identifier map watcher stopped: %v", err)
		}
	}()

	// Restore tracker registry
	trackers := tracker.New(cfg.TrackerMax)
	trackers.Load(cfg.TrackerFile)

	// Metrics
	sink, err := metrics.NewPromSink(nil)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// Downstream decoder connection; a failed first connect is not fatal,
	// delivery retries per send.
	client := readsb.New(cfg.ReadsbHost, cfg.ReadsbPort, sink)
	utils.CheckWarn(client.Connect(), "connecting to readsb")
	defer client.Close()

	// Peer sharing
	var sender bridge.LocationSender
	if cfg.ShareOutputIP != "" {
		s, err := share.NewSender(cfg.ShareOutputIP, cfg.ShareOutputPort)
		if err != nil {
			log.Fatalf("Failed to open share sender: %v", err)
		}
		defer s.Close()
		sender = s
	}

	var receiver *share.Receiver
	if cfg.ShareInputPort != 0 {
		receiver, err = share.NewReceiver(cfg.ShareBindIP, cfg.ShareInputPort, cfg.ShareAllow, sink)
		if err != nil {
			log.Fatalf("Failed to bind share receiver: %v", err)
		}
		receiver.Start()
		defer receiver.Close()
		log.Printf("Listening for shared locations on port %d", receiver.Port())
	}

	// Wire the bridge. The radio transport is provided by the deployment's
	// mesh driver; without one the bridge still serves peer and test input.
	b := bridge.New(cfg, addrs, trackers, adsb.Codec{}, client, sender, receiver, nil, sink)

	// Status server
	webServer := web.NewServer(cfg, trackers, sink.Handler())
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTPListen)
		if err := webServer.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Run the bridge until a signal or a fatal transport error
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Shutting down...")
		b.Stop()
	case err := <-errCh:
		if err != nil {
			log.Printf("Error: %v", err)
			os.Exit(1)
		}
	}
}
