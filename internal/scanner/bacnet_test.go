package scanner

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWhoIs(t *testing.T) {
	want := []byte{0x81, 0x0B, 0x00, 0x0C, 0x01, 0x20, 0xFF, 0xFF, 0x00, 0xFF, 0x10, 0x08}
	assert.Equal(t, want, buildWhoIs())
}

// buildIAm assembles an I-Am response packet for tests.
func buildIAm(instance uint32, maxAPDU uint16, segmentation byte, vendor uint16, withDest bool) []byte {
	npdu := []byte{0x01, 0x00}
	if withDest {
		npdu = []byte{0x01, 0x20, 0xFF, 0xFF, 0x00, 0xFF}
	}

	objID := uint32(bacnetObjectTypeDevice)<<22 | instance
	apdu := []byte{0x10, 0x00, 0xC4}
	apdu = binary.BigEndian.AppendUint32(apdu, objID)
	apdu = append(apdu, 0x22)
	apdu = binary.BigEndian.AppendUint16(apdu, maxAPDU)
	apdu = append(apdu, 0x91, segmentation, 0x22)
	apdu = binary.BigEndian.AppendUint16(apdu, vendor)

	packet := []byte{0x81, 0x0A, 0x00, 0x00}
	packet = append(packet, npdu...)
	packet = append(packet, apdu...)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(packet)))
	return packet
}

func TestParseIAm(t *testing.T) {
	t.Run("direct reply", func(t *testing.T) {
		dev, err := parseIAm(buildIAm(1234, 1476, 3, 260, false))
		require.NoError(t, err)
		assert.Equal(t, uint32(1234), dev.Instance)
		assert.Equal(t, uint32(1476), dev.MaxAPDU)
		assert.Equal(t, "no-segmentation", dev.Segmentation)
		assert.Equal(t, uint32(260), dev.VendorID)
	})

	t.Run("broadcast with NPDU destination", func(t *testing.T) {
		dev, err := parseIAm(buildIAm(99, 480, 0, 10, true))
		require.NoError(t, err)
		assert.Equal(t, uint32(99), dev.Instance)
		assert.Equal(t, "segmented-both", dev.Segmentation)
	})

	t.Run("not BACnet", func(t *testing.T) {
		_, err := parseIAm([]byte{0x45, 0x00, 0x00, 0x04})
		require.Error(t, err)
	})

	t.Run("wrong service is skipped", func(t *testing.T) {
		packet := buildIAm(1, 480, 0, 10, false)
		packet[7] = 0x08 // Who-Is, not I-Am
		_, err := parseIAm(packet)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not an I-Am")
	})

	t.Run("length mismatch", func(t *testing.T) {
		packet := buildIAm(1, 480, 0, 10, false)
		packet[3]++
		_, err := parseIAm(packet)
		require.Error(t, err)
	})

	t.Run("truncated APDU", func(t *testing.T) {
		packet := buildIAm(1, 480, 0, 10, false)
		packet = packet[:len(packet)-2]
		binary.BigEndian.PutUint16(packet[2:4], uint16(len(packet)))
		_, err := parseIAm(packet)
		require.Error(t, err)
	})
}

func TestParseUnsigned(t *testing.T) {
	t.Run("one byte", func(t *testing.T) {
		v, next, err := parseUnsigned([]byte{0x21, 0x7F}, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x7F), v)
		assert.Equal(t, 2, next)
	})

	t.Run("three bytes", func(t *testing.T) {
		v, _, err := parseUnsigned([]byte{0x23, 0x01, 0x02, 0x03}, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x010203), v)
	})

	t.Run("context tag rejected", func(t *testing.T) {
		_, _, err := parseUnsigned([]byte{0x29, 0x01}, 0, 2)
		require.Error(t, err)
	})
}
