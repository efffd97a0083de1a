package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeModbusFrame(t *testing.T) {
	// Read one holding register at address 0 from unit 1.
	frame := encodeModbusFrame(1, 1, buildReadRegistersPDU(funcReadHoldingRegisters, 0, 1))
	want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x00, 0x00, 0x00, 0x01}
	assert.Equal(t, want, frame)
}

func TestDecodeModbusFrame(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		pdu := buildReadRegistersPDU(funcReadHoldingRegisters, 0x0010, 4)
		frame := encodeModbusFrame(42, 7, pdu)

		unit, gotPDU, err := decodeModbusFrame(frame, 42)
		require.NoError(t, err)
		assert.Equal(t, byte(7), unit)
		assert.Equal(t, pdu, gotPDU)
	})

	t.Run("transaction mismatch", func(t *testing.T) {
		frame := encodeModbusFrame(1, 1, buildReadRegistersPDU(funcReadHoldingRegisters, 0, 1))
		_, _, err := decodeModbusFrame(frame, 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transaction ID mismatch")
	})

	t.Run("too short", func(t *testing.T) {
		_, _, err := decodeModbusFrame([]byte{0x00, 0x01}, 1)
		require.Error(t, err)
	})

	t.Run("length mismatch", func(t *testing.T) {
		frame := encodeModbusFrame(1, 1, buildReadRegistersPDU(funcReadHoldingRegisters, 0, 1))
		frame[5] = 0x09
		_, _, err := decodeModbusFrame(frame, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "length field")
	})
}

func TestParseReadRegistersPDU(t *testing.T) {
	t.Run("two holding registers", func(t *testing.T) {
		pdu := []byte{0x03, 0x04, 0x12, 0x34, 0xAB, 0xCD}
		registers, err := parseReadRegistersPDU(funcReadHoldingRegisters, pdu)
		require.NoError(t, err)
		assert.Equal(t, []uint16{0x1234, 0xABCD}, registers)
	})

	t.Run("input registers", func(t *testing.T) {
		pdu := []byte{0x04, 0x02, 0x00, 0x2A}
		registers, err := parseReadRegistersPDU(funcReadInputRegisters, pdu)
		require.NoError(t, err)
		assert.Equal(t, []uint16{42}, registers)
	})

	t.Run("exception", func(t *testing.T) {
		_, err := parseReadRegistersPDU(funcReadHoldingRegisters, []byte{0x83, 0x02})
		require.Error(t, err)

		var mbErr *ModbusError
		require.ErrorAs(t, err, &mbErr)
		assert.Equal(t, byte(0x02), mbErr.Code)
		assert.Contains(t, mbErr.Error(), "illegal data address")
	})

	t.Run("odd byte count", func(t *testing.T) {
		_, err := parseReadRegistersPDU(funcReadHoldingRegisters, []byte{0x03, 0x03, 0x01, 0x02, 0x03})
		require.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := parseReadRegistersPDU(funcReadHoldingRegisters, []byte{0x03, 0x04, 0x12})
		require.Error(t, err)
	})
}

func TestParseDeviceIDPDU(t *testing.T) {
	t.Run("three objects", func(t *testing.T) {
		pdu := []byte{
			0x2B, 0x0E, 0x01, 0x01, 0x00, 0x00, 0x03,
			0x00, 0x04, 'A', 'c', 'm', 'e',
			0x01, 0x05, 'B', 'R', 'W', '-', '1',
			0x02, 0x04, 'v', '2', '.', '1',
		}
		objects, err := parseDeviceIDPDU(pdu)
		require.NoError(t, err)
		assert.Equal(t, "Acme", objects[0x00])
		assert.Equal(t, "BRW-1", objects[0x01])
		assert.Equal(t, "v2.1", objects[0x02])
	})

	t.Run("exception", func(t *testing.T) {
		_, err := parseDeviceIDPDU([]byte{0xAB, 0x01})
		var mbErr *ModbusError
		require.ErrorAs(t, err, &mbErr)
		assert.Equal(t, byte(0x01), mbErr.Code)
	})

	t.Run("truncated object", func(t *testing.T) {
		pdu := []byte{0x2B, 0x0E, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x08, 'A'}
		_, err := parseDeviceIDPDU(pdu)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "truncated")
	})
}

func TestBuildDeviceIDPDU(t *testing.T) {
	assert.Equal(t, []byte{0x2B, 0x0E, 0x01, 0x00}, buildDeviceIDPDU())
}
