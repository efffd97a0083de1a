package scanner

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16(t *testing.T) {
	// CRC-16/ARC check value, adjusted for the trailing ETX the DF1 frame
	// check includes: crc16 here covers data + 0x03.
	t.Run("empty covers just ETX", func(t *testing.T) {
		assert.Equal(t, crc16(nil), crc16([]byte{}))
	})

	t.Run("round trips through frame", func(t *testing.T) {
		app := buildDiagnosticStatus(3, 0, 1)
		frame := encodeDF1Frame(app)

		got, err := readDF1Frame(bufio.NewReader(bytes.NewReader(frame)))
		require.NoError(t, err)
		assert.Equal(t, app, got)
	})
}

func TestDLEStuffing(t *testing.T) {
	t.Run("doubles DLE bytes", func(t *testing.T) {
		assert.Equal(t, []byte{0x01, 0x10, 0x10, 0x02}, dleStuff([]byte{0x01, 0x10, 0x02}))
	})

	t.Run("round trips DLE-heavy payload", func(t *testing.T) {
		app := []byte{0x10, 0x10, 0x02, 0x10, 0x03, 0x10}
		frame := encodeDF1Frame(app)

		got, err := readDF1Frame(bufio.NewReader(bytes.NewReader(frame)))
		require.NoError(t, err)
		assert.Equal(t, app, got)
	})
}

func TestReadDF1Frame(t *testing.T) {
	t.Run("skips leading ACK", func(t *testing.T) {
		app := buildDiagnosticStatus(5, 0, 7)
		stream := append([]byte{df1DLE, df1ACK}, encodeDF1Frame(app)...)

		got, err := readDF1Frame(bufio.NewReader(bytes.NewReader(stream)))
		require.NoError(t, err)
		assert.Equal(t, app, got)
	})

	t.Run("NAK is an error", func(t *testing.T) {
		_, err := readDF1Frame(bufio.NewReader(bytes.NewReader([]byte{df1DLE, df1NAK})))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NAK")
	})

	t.Run("CRC mismatch", func(t *testing.T) {
		frame := encodeDF1Frame([]byte{0x01, 0x02, 0x03})
		frame[len(frame)-1] ^= 0xFF

		_, err := readDF1Frame(bufio.NewReader(bytes.NewReader(frame)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CRC mismatch")
	})

	t.Run("truncated stream", func(t *testing.T) {
		frame := encodeDF1Frame([]byte{0x01})
		_, err := readDF1Frame(bufio.NewReader(bytes.NewReader(frame[:4])))
		require.Error(t, err)
	})
}

func TestBuildDiagnosticStatus(t *testing.T) {
	app := buildDiagnosticStatus(0x03, 0x00, 0x0102)
	assert.Equal(t, []byte{0x03, 0x00, 0x06, 0x00, 0x02, 0x01, 0x03}, app)
}

func TestParseDiagnosticReply(t *testing.T) {
	t.Run("healthy SLC reply", func(t *testing.T) {
		// Binary mode/type fields precede the catalog string in the status
		// block; they must be non-printable or they would be read as part
		// of the identity.
		app := []byte{0x00, 0x03, 0x46, 0x00, 0x02, 0x01}
		app = append(app, 0xEE, 0x1B, 0x05)
		app = append(app, []byte("1747-L552")...)

		dev, err := parseDiagnosticReply(app, 0x0102)
		require.NoError(t, err)
		assert.Equal(t, byte(3), dev.Station)
		assert.Equal(t, byte(0), dev.Status)
		assert.Equal(t, "1747-L552", dev.Identity)
	})

	t.Run("status error still yields device", func(t *testing.T) {
		app := []byte{0x00, 0x05, 0x46, 0x10, 0x01, 0x00}
		dev, err := parseDiagnosticReply(app, 1)
		require.Error(t, err)
		require.NotNil(t, dev)
		assert.Equal(t, byte(5), dev.Station)
		assert.Equal(t, byte(0x10), dev.Status)
	})

	t.Run("transaction mismatch", func(t *testing.T) {
		app := []byte{0x00, 0x03, 0x46, 0x00, 0x09, 0x00}
		_, err := parseDiagnosticReply(app, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transaction mismatch")
	})

	t.Run("not a reply", func(t *testing.T) {
		app := buildDiagnosticStatus(3, 0, 1)
		_, err := parseDiagnosticReply(app, 1)
		require.Error(t, err)
	})
}

func TestPrintableTail(t *testing.T) {
	assert.Equal(t, "MLX1100", printableTail([]byte{0x00, 0xFF, 'M', 'L', 'X', '1', '1', '0', '0'}))
	assert.Equal(t, "", printableTail([]byte{0x00, 0x01}))
	assert.Equal(t, "abc", printableTail([]byte("abc")))
}
