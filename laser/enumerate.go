package laser

import (
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

// DiscoveryVendorID is the USB vendor ID for this family of instruments.
const DiscoveryVendorID = 0x0D4D // 3405 decimal

// AvailablePort describes one serial port the OS enumerator reports, along
// with whatever USB VID/PID/serial-number metadata it carries.
type AvailablePort struct {
	Name         string
	IsUSB        bool
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Model        laserproto.LaserModel
}

// AvailablePorts enumerates serial ports via go.bug.st/serial's
// cross-platform detailed lister. Ports that do not report USB VID/PID
// metadata are still returned (Model is Unrecognized, IsUSB false) so
// callers can still match by explicit port name.
func AvailablePorts() ([]AvailablePort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, &SerialError{Op: "enumerate", Err: err}
	}
	out := make([]AvailablePort, 0, len(details))
	for _, d := range details {
		if d == nil || d.Name == "" {
			continue
		}
		p := AvailablePort{Name: d.Name, IsUSB: d.IsUSB, Model: laserproto.Unrecognized}
		if d.IsUSB {
			p.VendorID = parseHex16(d.VID)
			p.ProductID = parseHex16(d.PID)
			p.SerialNumber = d.SerialNumber
			p.Model = laserproto.ModelFromProductID(p.ProductID)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// parseHex16 parses the hex VID/PID strings go.bug.st/serial's enumerator
// returns (e.g. "0D4D") into a uint16, tolerating a missing value.
func parseHex16(s string) uint16 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var v uint16
	for _, c := range s {
		var d uint16
		switch {
		case c >= '0' && c <= '9':
			d = uint16(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint16(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint16(c-'A') + 10
		default:
			return 0
		}
		v = v*16 + d
	}
	return v
}
