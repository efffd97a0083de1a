package scanner

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// BACnet/IP protocol constants.
const (
	BACnetPort = 47808 // 0xBAC0

	bvlcTypeIP             = 0x81
	bvlcOriginalUnicast    = 0x0A
	bvlcOriginalBroadcast  = 0x0B
	npduVersion            = 0x01
	apduUnconfirmedRequest = 0x10
	serviceUnconfirmedIAm  = 0x00
	bacnetObjectTypeDevice = 8
)

var segmentationNames = []string{
	"segmented-both", "segmented-transmit", "segmented-receive", "no-segmentation",
}

// BACnetDevice describes one controller that answered a Who-Is.
type BACnetDevice struct {
	Instance     uint32 `json:"instance"`
	MaxAPDU      uint32 `json:"max_apdu"`
	Segmentation string `json:"segmentation"`
	VendorID     uint32 `json:"vendor_id"`
	Address      string `json:"address"`
}

// buildWhoIs builds an unbounded global-broadcast Who-Is request:
// BVLC original-broadcast, NPDU with global destination and hop count 255,
// APDU unconfirmed-request Who-Is.
func buildWhoIs() []byte {
	return []byte{
		0x81, 0x0B, 0x00, 0x0C, // BVLC: type, original broadcast, length 12
		0x01, 0x20, 0xFF, 0xFF, 0x00, 0xFF, // NPDU: version, dest present, DNET 0xFFFF, DLEN 0, hop 255
		0x10, 0x08, // APDU: unconfirmed request, service Who-Is
	}
}

// parseIAm decodes an I-Am response packet. Packets carrying anything other
// than an I-Am (other broadcasts are common on a live BACnet segment) return
// an error and should be skipped, not reported.
func parseIAm(packet []byte) (*BACnetDevice, error) {
	if len(packet) < 4 || packet[0] != bvlcTypeIP {
		return nil, fmt.Errorf("not a BACnet/IP packet")
	}
	if fn := packet[1]; fn != bvlcOriginalUnicast && fn != bvlcOriginalBroadcast {
		return nil, fmt.Errorf("unexpected BVLC function 0x%02X", fn)
	}
	if length := binary.BigEndian.Uint16(packet[2:4]); int(length) != len(packet) {
		return nil, fmt.Errorf("BVLC length %d does not match packet size %d", length, len(packet))
	}

	// NPDU: skip addressing fields per the control byte.
	offset := 4
	if offset+2 > len(packet) || packet[offset] != npduVersion {
		return nil, fmt.Errorf("unsupported NPDU version")
	}
	control := packet[offset+1]
	offset += 2

	if control&0x20 != 0 { // destination specifier present
		if offset+3 > len(packet) {
			return nil, fmt.Errorf("truncated NPDU destination")
		}
		dlen := int(packet[offset+2])
		offset += 3 + dlen
	}
	if control&0x08 != 0 { // source specifier present
		if offset+3 > len(packet) {
			return nil, fmt.Errorf("truncated NPDU source")
		}
		slen := int(packet[offset+2])
		offset += 3 + slen
	}
	if control&0x20 != 0 { // hop count follows addressing
		offset++
	}

	if offset+2 > len(packet) {
		return nil, fmt.Errorf("truncated APDU")
	}
	if packet[offset] != apduUnconfirmedRequest || packet[offset+1] != serviceUnconfirmedIAm {
		return nil, fmt.Errorf("not an I-Am APDU")
	}
	offset += 2

	// I-Am parameters: object identifier, max APDU length, segmentation, vendor.
	objType, instance, offset, err := parseObjectID(packet, offset)
	if err != nil {
		return nil, err
	}
	if objType != bacnetObjectTypeDevice {
		return nil, fmt.Errorf("I-Am object type %d is not a device", objType)
	}

	maxAPDU, offset, err := parseUnsigned(packet, offset, 2) // tag 2 = unsigned
	if err != nil {
		return nil, fmt.Errorf("bad max-APDU field: %w", err)
	}
	segmentation, offset, err := parseUnsigned(packet, offset, 9) // tag 9 = enumerated
	if err != nil {
		return nil, fmt.Errorf("bad segmentation field: %w", err)
	}
	vendor, _, err := parseUnsigned(packet, offset, 2)
	if err != nil {
		return nil, fmt.Errorf("bad vendor field: %w", err)
	}

	segName := "unknown"
	if int(segmentation) < len(segmentationNames) {
		segName = segmentationNames[segmentation]
	}

	return &BACnetDevice{
		Instance:     instance,
		MaxAPDU:      maxAPDU,
		Segmentation: segName,
		VendorID:     vendor,
	}, nil
}

// parseObjectID decodes an application-tagged BACnetObjectIdentifier
// (tag 12, length 4): 10 bits of object type, 22 bits of instance.
func parseObjectID(packet []byte, offset int) (objType uint16, instance uint32, next int, err error) {
	if offset >= len(packet) || packet[offset] != 0xC4 {
		return 0, 0, 0, fmt.Errorf("expected object identifier tag at offset %d", offset)
	}
	if offset+5 > len(packet) {
		return 0, 0, 0, fmt.Errorf("truncated object identifier")
	}
	raw := binary.BigEndian.Uint32(packet[offset+1 : offset+5])
	return uint16(raw >> 22), raw & 0x3FFFFF, offset + 5, nil
}

// parseUnsigned decodes an application-tagged unsigned integer (or enumerated)
// of 1 to 4 bytes.
func parseUnsigned(packet []byte, offset int, wantTag byte) (value uint32, next int, err error) {
	if offset >= len(packet) {
		return 0, 0, fmt.Errorf("truncated at offset %d", offset)
	}
	tag := packet[offset]
	if tag>>4 != wantTag || tag&0x08 != 0 {
		return 0, 0, fmt.Errorf("expected application tag %d, got 0x%02X", wantTag, tag)
	}
	length := int(tag & 0x07)
	if length < 1 || length > 4 {
		return 0, 0, fmt.Errorf("unsupported unsigned length %d", length)
	}
	if offset+1+length > len(packet) {
		return 0, 0, fmt.Errorf("truncated unsigned value")
	}
	for _, b := range packet[offset+1 : offset+1+length] {
		value = value<<8 | uint32(b)
	}
	return value, offset + 1 + length, nil
}

// ScanBACnet broadcasts a Who-Is on the given network and collects I-Am
// responses until the wait window closes. Devices are deduplicated by
// instance number; the first response wins.
func ScanBACnet(ctx context.Context, broadcastAddr string, wait time.Duration) ([]BACnetDevice, error) {
	if broadcastAddr == "" {
		broadcastAddr = fmt.Sprintf("255.255.255.255:%d", BACnetPort)
	}

	dst, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid broadcast address %s: %w", broadcastAddr, err)
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.WriteTo(buildWhoIs(), dst); err != nil {
		return nil, fmt.Errorf("failed to send Who-Is: %w", err)
	}

	deadline := time.Now().Add(wait)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	seen := make(map[uint32]bool)
	var devices []BACnetDevice
	buf := make([]byte, 1500)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return devices, nil
			}
			return devices, fmt.Errorf("failed to read I-Am responses: %w", err)
		}

		dev, err := parseIAm(buf[:n])
		if err != nil {
			continue // not an I-Am; live segments carry plenty of other traffic
		}
		if seen[dev.Instance] {
			continue
		}
		seen[dev.Instance] = true

		dev.Address = addr.String()
		devices = append(devices, *dev)
	}
}
