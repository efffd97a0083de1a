package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// DF1 link-layer symbols.
const (
	df1DLE = 0x10
	df1STX = 0x02
	df1ETX = 0x03
	df1ACK = 0x06
	df1NAK = 0x0F

	// Diagnostic status: command 0x06, function 0x03. Answered by every
	// Allen-Bradley processor family, which is what makes it a good probe.
	df1CmdDiagnostic = 0x06
	df1FncStatus     = 0x03

	df1ReplyBit = 0x40
)

// DF1Device describes one station that answered the diagnostic status probe.
type DF1Device struct {
	Station  byte   `json:"station"`
	Status   byte   `json:"status"`
	Identity string `json:"identity,omitempty"` // Printable portion of the status block
	Raw      []byte `json:"-"`
}

// crc16 computes the DF1 frame check: CRC-16 with polynomial 0xA001 over the
// application bytes followed by the ETX symbol.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range append(append([]byte{}, data...), df1ETX) {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// dleStuff doubles every DLE byte in the application data so the link layer
// can distinguish data from control sequences.
func dleStuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		out = append(out, b)
		if b == df1DLE {
			out = append(out, df1DLE)
		}
	}
	return out
}

// encodeDF1Frame wraps application data in DLE STX ... DLE ETX CRC framing.
func encodeDF1Frame(app []byte) []byte {
	frame := []byte{df1DLE, df1STX}
	frame = append(frame, dleStuff(app)...)
	frame = append(frame, df1DLE, df1ETX)
	crc := crc16(app)
	return append(frame, byte(crc), byte(crc>>8))
}

// buildDiagnosticStatus builds the application layer of a diagnostic status
// command addressed to dst from src.
func buildDiagnosticStatus(dst, src byte, tns uint16) []byte {
	return []byte{dst, src, df1CmdDiagnostic, 0x00, byte(tns), byte(tns >> 8), df1FncStatus}
}

// parseDiagnosticReply decodes the application layer of a diagnostic status
// reply and extracts what identity the processor volunteers.
func parseDiagnosticReply(app []byte, wantTNS uint16) (*DF1Device, error) {
	if len(app) < 6 {
		return nil, fmt.Errorf("DF1 reply too short: %d bytes", len(app))
	}

	cmd := app[2]
	if cmd&df1ReplyBit == 0 || cmd&^df1ReplyBit != df1CmdDiagnostic {
		return nil, fmt.Errorf("unexpected DF1 command byte 0x%02X in reply", cmd)
	}

	tns := uint16(app[4]) | uint16(app[5])<<8
	if tns != wantTNS {
		return nil, fmt.Errorf("DF1 transaction mismatch: got %d, want %d", tns, wantTNS)
	}

	dev := &DF1Device{
		Station: app[1], // replying station is the source field
		Status:  app[3],
		Raw:     append([]byte{}, app[6:]...),
	}
	if dev.Status != 0 {
		return dev, fmt.Errorf("DF1 status error 0x%02X from station %d", dev.Status, dev.Station)
	}

	// The status block layout varies per processor family; the printable tail
	// is the catalog string (e.g. "1747-L552") on SLC and MicroLogix.
	dev.Identity = printableTail(dev.Raw)
	return dev, nil
}

// printableTail returns the longest printable-ASCII suffix run of b, trimmed.
func printableTail(b []byte) string {
	end := len(b)
	start := end
	for start > 0 && b[start-1] >= 0x20 && b[start-1] < 0x7F {
		start--
	}
	return strings.TrimSpace(string(b[start:end]))
}

// readDF1Frame consumes one DLE STX ... DLE ETX CRC frame from the stream,
// skipping any leading DLE ACK / DLE NAK symbols. Returns the unstuffed
// application bytes.
func readDF1Frame(r *bufio.Reader) ([]byte, error) {
	// Hunt for DLE STX, tolerating ACK/NAK chatter in between.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read DF1 stream: %w", err)
		}
		if b != df1DLE {
			continue
		}
		next, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read DF1 stream: %w", err)
		}
		if next == df1STX {
			break
		}
		if next == df1NAK {
			return nil, fmt.Errorf("DF1 station rejected the command (NAK)")
		}
		// DLE ACK or noise: keep hunting.
	}

	var app bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read DF1 frame body: %w", err)
		}
		if b != df1DLE {
			app.WriteByte(b)
			continue
		}

		next, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read DF1 frame body: %w", err)
		}
		switch next {
		case df1DLE:
			app.WriteByte(df1DLE) // stuffed data byte
		case df1ETX:
			crcLo, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("failed to read DF1 CRC: %w", err)
			}
			crcHi, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("failed to read DF1 CRC: %w", err)
			}
			got := uint16(crcLo) | uint16(crcHi)<<8
			if want := crc16(app.Bytes()); got != want {
				return nil, fmt.Errorf("DF1 CRC mismatch: got 0x%04X, want 0x%04X", got, want)
			}
			return app.Bytes(), nil
		default:
			return nil, fmt.Errorf("unexpected DF1 control sequence DLE 0x%02X inside frame", next)
		}
	}
}

// ScanDF1 sweeps DF1 station addresses through a serial-over-TCP gateway,
// sending each a diagnostic status command. Stations that do not answer
// within the timeout are skipped; link-level errors on one station do not
// abort the sweep.
func ScanDF1(ctx context.Context, address string, stations []byte, timeout time.Duration) ([]DF1Device, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	var devices []DF1Device

	const sourceStation = 0x00
	tns := uint16(1)

	for _, station := range stations {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return devices, fmt.Errorf("failed to set deadline: %w", err)
		}

		app := buildDiagnosticStatus(station, sourceStation, tns)
		if _, err := conn.Write(encodeDF1Frame(app)); err != nil {
			return devices, fmt.Errorf("failed to write DF1 command: %w", err)
		}

		replyApp, err := readDF1Frame(reader)
		if err != nil {
			tns++
			continue // silent or garbled station
		}

		if dev, err := parseDiagnosticReply(replyApp, tns); err == nil {
			devices = append(devices, *dev)
		} else if dev != nil {
			// Status error still proves a station is present.
			devices = append(devices, *dev)
		}
		tns++
	}

	return devices, nil
}
