// Command host_discovery_server runs the broadcast server: it owns a
// single laser session, serves it to any number of TCP clients, multiplexes
// periodic status snapshots to them, accepts framed commands back, and
// arbitrates a single primary client.
//
// Flags:
//
//	-addr:  TCP address the broadcast server listens on
//	-poll:  status broadcast interval
//	-port:  serial port name (autodetected if empty)
//	-serial: instrument serial number to match (autodetected if empty)
//	-debug: run against an in-memory DebugSession instead of real hardware
//	-monitor-addr: if set, also serve a read-only HTTP+WebSocket status feed
//	-monitor-poll: monitor feed polling interval
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CK6170/discovery-laser-go/internal/broadcast"
	"github.com/CK6170/discovery-laser-go/laser"
	"github.com/CK6170/discovery-laser-go/monitor"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:7777", "tcp listen address for the broadcast server")
		poll        = flag.Duration("poll", broadcast.DefaultPollingInterval, "status broadcast interval")
		portName    = flag.String("port", "", "serial port name (autodetected if empty)")
		serial      = flag.String("serial", "", "instrument serial number to match (autodetected if empty)")
		debug       = flag.Bool("debug", false, "use an in-memory debug session instead of real hardware")
		monitorAddr = flag.String("monitor-addr", "", "if set, also serve a read-only HTTP+WebSocket status feed on this address")
		monitorPoll = flag.Duration("monitor-poll", time.Second, "monitor feed polling interval")
	)
	flag.Parse()

	var session laser.Session
	if *debug {
		session = laser.NewDebugSession()
		log.Printf("running against an in-memory debug session")
	} else {
		sess, err := laser.Open(*portName, *serial)
		if err != nil {
			log.Fatalf("open laser: %v", err)
		}
		session = sess
	}

	srv, err := broadcast.New(session, *addr, *poll)
	if err != nil {
		log.Fatalf("start broadcast server: %v", err)
	}
	srv.Start()
	log.Printf("broadcast server listening on %s (model %v, serial %s)", srv.Addr(), session.Model(), session.SerialNumber())

	var mon *monitor.Monitor
	if *monitorAddr != "" {
		mon = monitor.New(*monitorAddr, srv, *monitorPoll)
		if err := mon.Start(); err != nil {
			log.Fatalf("start monitor feed: %v", err)
		}
		log.Printf("monitor feed listening on %s", mon.Addr())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Printf("shutting down")
	srv.Stop()
	if mon != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mon.Stop(ctx); err != nil {
			log.Printf("monitor shutdown: %v", err)
		}
	}
}
