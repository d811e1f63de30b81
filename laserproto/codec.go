package laserproto

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode produces deterministic (canonical) CBOR: the same LaserStatus
// always encodes to the same bytes, so encoding and then decoding a value
// always round-trips to an equal value.
var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("laserproto: building CBOR encode mode: %v", err))
	}
	return m
}()

// EncodeLaserModel serializes a LaserModel for the handshake LASER_ID
// record.
func EncodeLaserModel(m LaserModel) ([]byte, error) {
	b, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("laserproto: encode LaserModel: %w", err)
	}
	return b, nil
}

// DecodeLaserModel deserializes a LaserModel, returning the number of bytes
// consumed so the caller can continue scanning the same buffer.
func DecodeLaserModel(b []byte) (LaserModel, int, error) {
	var m LaserModel
	rest, err := cbor.UnmarshalFirst(b, &m)
	if err != nil {
		return 0, 0, fmt.Errorf("laserproto: decode LaserModel: %w", err)
	}
	return m, len(b) - len(rest), nil
}

// EncodeCommand serializes a Command for a COMMAND_MARKER record.
func EncodeCommand(c Command) ([]byte, error) {
	b, err := encMode.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("laserproto: encode Command: %w", err)
	}
	return b, nil
}

// DecodeCommand deserializes a Command, returning the number of bytes
// consumed.
func DecodeCommand(b []byte) (Command, int, error) {
	var c Command
	rest, err := cbor.UnmarshalFirst(b, &c)
	if err != nil {
		return Command{}, 0, fmt.Errorf("laserproto: decode Command: %w", err)
	}
	return c, len(b) - len(rest), nil
}

// EncodeLaserStatus serializes a LaserStatus for a STATUS_MARKER record.
func EncodeLaserStatus(s LaserStatus) ([]byte, error) {
	b, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("laserproto: encode LaserStatus: %w", err)
	}
	return b, nil
}

// DecodeLaserStatus deserializes a LaserStatus, returning the number of
// bytes consumed.
func DecodeLaserStatus(b []byte) (LaserStatus, int, error) {
	var s LaserStatus
	rest, err := cbor.UnmarshalFirst(b, &s)
	if err != nil {
		return LaserStatus{}, 0, fmt.Errorf("laserproto: decode LaserStatus: %w", err)
	}
	return s, len(b) - len(rest), nil
}
