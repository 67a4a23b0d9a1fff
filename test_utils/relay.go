package test_utils

import (
	"fmt"
	"net"

	"github.com/ayushdevani01/real-time-video-chat-app/config"
	"github.com/ayushdevani01/real-time-video-chat-app/relay"
	log "github.com/sirupsen/logrus"
)

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port
	log.Debugf("Returning port: %v\n", port)
	return port, nil
}

// SetupRelay starts an in-process relay on a free port (or the given one)
// and returns its server. Callers dial server.URL and call
// server.Shutdown when done.
func SetupRelay(ports ...int) (*relay.Server, error) {
	var err error
	var port int
	if len(ports) == 0 {
		port, err = getFreePort()
		if err != nil {
			return nil, err
		}
	} else {
		port = ports[0]
	}

	cfg := &config.Config{
		Port:           fmt.Sprintf("%v", port),
		Environment:    "development",
		AllowedOrigins: []string{"*"},
	}

	r := relay.New()
	go r.Run()

	server := relay.NewServer(cfg, r)
	if err := server.Listen(fmt.Sprintf("127.0.0.1:%v", port)); err != nil {
		return nil, err
	}
	log.Debugf("Relay listening at %v", server.URL)
	return server, nil
}
