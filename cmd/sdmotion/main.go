// Command sdmotion streams Steam Deck motion sensor data as JSON datagrams
// over UDP. Clients subscribe by sending any UDP packet to the server port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/itsOwen/SteamDeckMotion/internal/hiddev"
	"github.com/itsOwen/SteamDeckMotion/internal/jsonserver"
	"github.com/itsOwen/SteamDeckMotion/internal/monitoring"
	"github.com/itsOwen/SteamDeckMotion/internal/sdgyro"
	"github.com/itsOwen/SteamDeckMotion/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run with a simulated controller device")
	verbose     = flag.Bool("verbose", false, "Enable frame-level debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("sdmotion %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	monitoring.Verbose = *verbose

	log.Printf("SteamDeck Motion Service version %s", version.Version)
	log.Print("Serving JSON motion data over UDP")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source sdgyro.FrameSource
	if *devMode {
		log.Print("Using simulated controller device.")
		r := hiddev.NewReader(sdgyro.NewSimulator(), hiddev.FrameLen)
		r.SetStartMarker(hiddev.DefaultStartMarker)
		source = r
	} else {
		log.Print("Using HIDAPI for Steam Deck Controls access.")
		r, err := hiddev.NewDeckReader()
		if err != nil {
			log.Fatalf("Steam Deck Controls' HID device not available: %v", err)
		}
		source = r
	}
	defer source.Close()

	adapter := sdgyro.NewAdapter(source, sdgyro.AdapterConfig{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-adapter.NoGyro():
				log.Print("MotionAdapter: Gyro reports all-zero axes. Sensor may be unavailable.")
			}
		}
	}()

	server := jsonserver.New(adapter, jsonserver.Config{Port: jsonserver.PortFromEnv()})
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("JsonServer: %v", err)
	}

	stop()
	wg.Wait()
	log.Print("SteamDeck Motion Service exiting.")
}
