// Package scanner implements the byte-level device discovery probes used to
// walk the brewery floor: Modbus/TCP, BACnet/IP and Allen-Bradley DF1. Each
// probe follows the public protocol specification directly; frame encoding and
// decoding are kept as pure functions so they can be tested without hardware.
package scanner

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// Modbus/TCP protocol constants.
const (
	mbapHeaderLen    = 7
	modbusProtocolID = 0

	funcReadHoldingRegisters  = 0x03
	funcReadInputRegisters    = 0x04
	funcEncapsulatedInterface = 0x2B
	meiReadDeviceID           = 0x0E

	// Read Device Identification: basic category, starting at object 0.
	devIDReadBasic = 0x01

	exceptionBit = 0x80
)

// modbusExceptions maps Modbus exception codes to their spec names.
var modbusExceptions = map[byte]string{
	0x01: "illegal function",
	0x02: "illegal data address",
	0x03: "illegal data value",
	0x04: "slave device failure",
	0x05: "acknowledge",
	0x06: "slave device busy",
	0x0A: "gateway path unavailable",
	0x0B: "gateway target failed to respond",
}

// ModbusDevice describes one unit that answered the sweep.
type ModbusDevice struct {
	UnitID    byte     `json:"unit_id"`
	Vendor    string   `json:"vendor,omitempty"`
	Product   string   `json:"product,omitempty"`
	Revision  string   `json:"revision,omitempty"`
	Registers []uint16 `json:"registers,omitempty"` // First holding-register window, when readable
	Note      string   `json:"note,omitempty"`      // How the device was identified
}

// ModbusError is a decoded Modbus exception response.
type ModbusError struct {
	Function byte
	Code     byte
}

func (e *ModbusError) Error() string {
	name := modbusExceptions[e.Code]
	if name == "" {
		name = "unknown exception"
	}
	return fmt.Sprintf("modbus exception 0x%02X (%s) for function 0x%02X", e.Code, name, e.Function)
}

// encodeModbusFrame wraps a PDU in an MBAP header.
// Layout: transaction ID (2), protocol ID (2), length (2), unit ID (1), PDU.
func encodeModbusFrame(txID uint16, unitID byte, pdu []byte) []byte {
	frame := make([]byte, mbapHeaderLen+len(pdu))
	binary.BigEndian.PutUint16(frame[0:2], txID)
	binary.BigEndian.PutUint16(frame[2:4], modbusProtocolID)
	binary.BigEndian.PutUint16(frame[4:6], uint16(len(pdu)+1))
	frame[6] = unitID
	copy(frame[7:], pdu)
	return frame
}

// decodeModbusFrame validates an MBAP header and returns the unit ID and PDU.
func decodeModbusFrame(frame []byte, wantTxID uint16) (byte, []byte, error) {
	if len(frame) < mbapHeaderLen+1 {
		return 0, nil, fmt.Errorf("modbus frame too short: %d bytes", len(frame))
	}

	txID := binary.BigEndian.Uint16(frame[0:2])
	if txID != wantTxID {
		return 0, nil, fmt.Errorf("modbus transaction ID mismatch: got %d, want %d", txID, wantTxID)
	}

	if proto := binary.BigEndian.Uint16(frame[2:4]); proto != modbusProtocolID {
		return 0, nil, fmt.Errorf("unexpected modbus protocol ID: %d", proto)
	}

	length := binary.BigEndian.Uint16(frame[4:6])
	if int(length) != len(frame)-6 {
		return 0, nil, fmt.Errorf("modbus length field %d does not match frame size %d", length, len(frame)-6)
	}

	return frame[6], frame[7:], nil
}

// buildReadRegistersPDU builds a register read request PDU for function 0x03
// (holding) or 0x04 (input).
func buildReadRegistersPDU(function byte, addr, quantity uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = function
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)
	return pdu
}

// parseReadRegistersPDU decodes a register read response PDU.
// Exception responses are returned as *ModbusError.
func parseReadRegistersPDU(function byte, pdu []byte) ([]uint16, error) {
	if len(pdu) < 2 {
		return nil, fmt.Errorf("register response PDU too short: %d bytes", len(pdu))
	}

	if pdu[0] == function|exceptionBit {
		return nil, &ModbusError{Function: function, Code: pdu[1]}
	}
	if pdu[0] != function {
		return nil, fmt.Errorf("unexpected function code 0x%02X in register response", pdu[0])
	}

	byteCount := int(pdu[1])
	if byteCount%2 != 0 || len(pdu) < 2+byteCount {
		return nil, fmt.Errorf("malformed register response: byte count %d, PDU length %d", byteCount, len(pdu))
	}

	registers := make([]uint16, byteCount/2)
	for i := range registers {
		registers[i] = binary.BigEndian.Uint16(pdu[2+2*i : 4+2*i])
	}
	return registers, nil
}

// buildDeviceIDPDU builds a Read Device Identification request PDU
// (function 0x2B, MEI type 0x0E, basic category).
func buildDeviceIDPDU() []byte {
	return []byte{funcEncapsulatedInterface, meiReadDeviceID, devIDReadBasic, 0x00}
}

// parseDeviceIDPDU decodes a Read Device Identification response into the
// object map (0 = vendor, 1 = product code, 2 = revision).
func parseDeviceIDPDU(pdu []byte) (map[byte]string, error) {
	if len(pdu) < 2 {
		return nil, fmt.Errorf("device ID response PDU too short: %d bytes", len(pdu))
	}

	if pdu[0] == funcEncapsulatedInterface|exceptionBit {
		return nil, &ModbusError{Function: funcEncapsulatedInterface, Code: pdu[1]}
	}
	if pdu[0] != funcEncapsulatedInterface || len(pdu) < 7 {
		return nil, fmt.Errorf("unexpected device ID response header")
	}
	if pdu[1] != meiReadDeviceID {
		return nil, fmt.Errorf("unexpected MEI type 0x%02X", pdu[1])
	}

	// pdu[2] read code, pdu[3] conformity, pdu[4] more follows, pdu[5] next
	// object ID, pdu[6] number of objects.
	count := int(pdu[6])
	objects := make(map[byte]string, count)

	offset := 7
	for i := 0; i < count; i++ {
		if offset+2 > len(pdu) {
			return nil, fmt.Errorf("truncated device ID object list at object %d", i)
		}
		objID := pdu[offset]
		objLen := int(pdu[offset+1])
		offset += 2
		if offset+objLen > len(pdu) {
			return nil, fmt.Errorf("truncated device ID object 0x%02X", objID)
		}
		objects[objID] = string(pdu[offset : offset+objLen])
		offset += objLen
	}

	return objects, nil
}

// modbusExchange sends one request frame and reads one response frame.
func modbusExchange(conn net.Conn, timeout time.Duration, txID uint16, unitID byte, pdu []byte) ([]byte, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	if _, err := conn.Write(encodeModbusFrame(txID, unitID, pdu)); err != nil {
		return nil, fmt.Errorf("failed to write modbus request: %w", err)
	}

	header := make([]byte, mbapHeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, fmt.Errorf("failed to read modbus header: %w", err)
	}

	length := binary.BigEndian.Uint16(header[4:6])
	if length < 1 || length > 260 {
		return nil, fmt.Errorf("implausible modbus length field: %d", length)
	}

	rest := make([]byte, int(length)-1)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return nil, fmt.Errorf("failed to read modbus body: %w", err)
	}

	_, respPDU, err := decodeModbusFrame(append(header, rest...), txID)
	return respPDU, err
}

// ScanModbus sweeps the given unit IDs on one Modbus/TCP endpoint.
// For each unit it first asks for device identification; units that reject the
// request (common on cheap gateways) are probed with a holding-register read
// instead. A unit answering either way - even with an exception - is a device.
func ScanModbus(ctx context.Context, address string, units []byte, timeout time.Duration) ([]ModbusDevice, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	var devices []ModbusDevice
	txID := uint16(0)

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		dev := ModbusDevice{UnitID: unit}
		found := false

		txID++
		if pdu, err := modbusExchange(conn, timeout, txID, unit, buildDeviceIDPDU()); err == nil {
			if objects, err := parseDeviceIDPDU(pdu); err == nil {
				dev.Vendor = objects[0x00]
				dev.Product = objects[0x01]
				dev.Revision = objects[0x02]
				dev.Note = "device identification"
				found = true
			} else if _, ok := err.(*ModbusError); ok {
				// Device present, identification unsupported.
				found = true
				dev.Note = "responds, no identification"
			}
		}

		// Fall back to (or enrich with) a register window read. Holding
		// registers first; devices rejecting the function get an input
		// register read instead.
		for _, function := range []byte{funcReadHoldingRegisters, funcReadInputRegisters} {
			txID++
			pdu, err := modbusExchange(conn, timeout, txID, unit, buildReadRegistersPDU(function, 0, 4))
			if err != nil {
				break
			}
			registers, err := parseReadRegistersPDU(function, pdu)
			if err == nil {
				dev.Registers = registers
				if !found {
					dev.Note = "registers readable"
				}
				found = true
				break
			}
			mbErr, ok := err.(*ModbusError)
			if !ok {
				break
			}
			if !found {
				found = true
				dev.Note = "responds, registers unreadable"
			}
			// Only an illegal-function exception justifies retrying with
			// the other register space.
			if mbErr.Code != 0x01 {
				break
			}
		}

		if found {
			devices = append(devices, dev)
		}
	}

	return devices, nil
}
