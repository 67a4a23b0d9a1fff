package main

import (
	"github.com/alecthomas/kingpin"
	"github.com/ayushdevani01/real-time-video-chat-app/config"
	"github.com/ayushdevani01/real-time-video-chat-app/relay"
	log "github.com/sirupsen/logrus"
)

var (
	port    = kingpin.Flag("port", "Port to listen on. Overrides PORT").Short('p').String()
	verbose = kingpin.Flag("verbose", "Verbose logs").Short('v').Default("false").Bool()
)

func main() {
	kingpin.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	r := relay.New()
	go r.Run()

	server := relay.NewServer(cfg, r)
	if err := server.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to set up server: %v", err)
	}

	log.Infof("Signaling relay listening on port: %v", cfg.Port)
	log.Infof("Use the following URL to connect: %v", server.URL)

	c := make(chan struct{})
	<-c
}
