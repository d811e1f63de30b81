// Command force_free_discovery is a one-shot operator tool that connects to
// a running broadcast server and issues FORGET PRIMARY CLIENT, rescuing an
// instrument whose primary client has gone away without releasing its
// claim.
//
// Flags:
//
//	-addr:  address of the running broadcast server
//	-model: expected model announced by the server's handshake (debug|discoverynx)
package main

import (
	"flag"
	"log"
	"strings"

	"github.com/CK6170/discovery-laser-go/client"
	"github.com/CK6170/discovery-laser-go/laserproto"
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:7777", "address of the running broadcast server")
		modelFlag = flag.String("model", "discoverynx", "expected model announced by the server's handshake: debug or discoverynx")
	)
	flag.Parse()

	model, err := parseModel(*modelFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	c, err := client.Connect(*addr, model)
	if err != nil {
		log.Fatalf("connect to %s: %v", *addr, err)
	}
	defer c.Close()

	if err := c.ForceForgetPrimaryClient(); err != nil {
		log.Fatalf("force forget primary client: %v", err)
	}
	log.Printf("primary-client slot cleared on %s", *addr)
}

func parseModel(s string) (laserproto.LaserModel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return laserproto.Debug, nil
	case "discoverynx":
		return laserproto.DiscoveryNX, nil
	default:
		return 0, &unknownModelError{s}
	}
}

type unknownModelError struct{ s string }

func (e *unknownModelError) Error() string {
	return "unknown -model value " + e.s + " (want debug or discoverynx)"
}
