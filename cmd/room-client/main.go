package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/alecthomas/kingpin"
	videochat "github.com/ayushdevani01/real-time-video-chat-app"
	"github.com/ayushdevani01/real-time-video-chat-app/config"
	"github.com/ayushdevani01/real-time-video-chat-app/utils"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
)

var (
	app          = kingpin.New("room-client", "Headless participant for a video chat room. Joins, negotiates peer links and relays stdin as chat")
	signalServer = app.Flag("signal-server", "Relay address. Used for signaling between peers").Short('S').Required().String()
	room         = app.Flag("room", "Room to join").Short('r').Required().String()
	username     = app.Flag("username", "Display name").Short('u').Default("room-client").String()
	verbose      = app.Flag("verbose", "Verbose logs").Short('v').Default("false").Bool()
	rawProfiles  = app.Flag("profile", "Profile the application. Valid options are cpu,memory,block,mutex").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if len(*rawProfiles) > 0 {
		*rawProfiles = strings.ReplaceAll(*rawProfiles, " ", ",")
		profiles := strings.Split(*rawProfiles, ",")
		log.Debugf("Enabling profiles: %v", profiles)
		profileFunctions := []func(p *profile.Profile){profile.ProfilePath(".")}
		for _, p := range profiles {
			if p == "cpu" {
				profileFunctions = append(profileFunctions, profile.CPUProfile)
			} else if p == "memory" {
				profileFunctions = append(profileFunctions, profile.MemProfile)
			} else if p == "block" {
				profileFunctions = append(profileFunctions, profile.BlockProfile)
			} else if p == "mutex" {
				profileFunctions = append(profileFunctions, profile.MutexProfile)
			}
		}
		defer profile.Start(profileFunctions...).Stop()
	}

	cfg := config.Load()
	webrtcConfig := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: cfg.STUNServers,
			},
		},
	}

	session, err := videochat.NewSession(utils.WebsocketURL(*signalServer), *room, *username, nil, webrtcConfig)
	if err != nil {
		log.Fatalf("Failed to connect to relay: %v", err)
	}
	defer session.Close()

	go func() {
		for event := range session.Events() {
			switch e := event.(type) {
			case videochat.ParticipantJoined:
				log.Infof("%v (%v) joined", e.User.Username, e.User.ID)
			case videochat.ParticipantLeft:
				log.Infof("%v left", e.ID)
			case videochat.ChatReceived:
				log.Infof("<%v> %v", e.Message.Username, e.Message.Message)
			case videochat.RemoteTrackAdded:
				log.Infof("Receiving %v from %v (%v)", e.Track.Kind(), e.User.Username, e.User.ID)
			case videochat.LinkStateChanged:
				log.Debugf("Link to %v is now %v", e.User.ID, e.State)
			}
		}
	}()

	if err := session.Join(); err != nil {
		log.Fatalf("Failed to join room %v: %v", *room, err)
	}
	log.Infof("Joined room %v as %v (%v)", *room, *username, session.ID())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := session.SendChat(line); err != nil {
			log.Errorf("Failed to send chat message: %v", err)
		}
	}
}
