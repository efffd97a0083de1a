package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/printer"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/scanner"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// PlantNetworkResource is the reservation name scans take so two instances
// never sweep the same OT segment at once.
const PlantNetworkResource = "plant-network"

var (
	scanOutput      string
	scanReserve     bool
	scanInstance    string
	scanBACnetWait  time.Duration
	scanDF1Stations []int
	scanModbusUnits []int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover industrial devices on the plant network",
	Long: `Discover industrial devices on the plant network.

Each subcommand sweeps one protocol. Scans are read-only probes, but on a
production segment they still generate traffic, so --reserve takes the
'plant-network' reservation for the duration of the sweep.`,
}

var scanModbusCmd = &cobra.Command{
	Use:   "modbus HOST:PORT",
	Short: "Sweep Modbus/TCP unit IDs on a gateway",
	Long: `Sweep Modbus/TCP unit IDs on a gateway.

Each unit is probed with a Read Device Identification request first; units
that reject it are retried with a one-register holding read. A unit that
answers either way (even with an exception) is reported as present.

Examples:
  # Sweep the configured unit range
  brewctl scan modbus 10.0.1.50:502

  # Probe specific units only
  brewctl scan modbus 10.0.1.50:502 --units 1,2,17`,
	Args: cobra.ExactArgs(1),
	RunE: runScanModbus,
}

var scanBACnetCmd = &cobra.Command{
	Use:   "bacnet BROADCAST:PORT",
	Short: "Broadcast a BACnet Who-Is and collect I-Am replies",
	Long: `Broadcast a BACnet Who-Is and collect I-Am replies.

Examples:
  # Sweep the local segment
  brewctl scan bacnet 10.0.1.255:47808

  # Wait longer for slow controllers
  brewctl scan bacnet 10.0.1.255:47808 --wait 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runScanBACnet,
}

var scanDF1Cmd = &cobra.Command{
	Use:   "df1 HOST:PORT",
	Short: "Probe Allen-Bradley DF1 stations through a serial gateway",
	Long: `Probe Allen-Bradley DF1 stations through a serial-over-TCP gateway.

Each station receives a diagnostic status request; a reply identifies the
processor (e.g. a SLC 5/05 reports its catalog number).

Examples:
  # Probe stations 0-7 (the default)
  brewctl scan df1 10.0.1.60:4001

  # Probe specific stations
  brewctl scan df1 10.0.1.60:4001 --stations 1,3`,
	Args: cobra.ExactArgs(1),
	RunE: runScanDF1,
}

func init() {
	scanCmd.PersistentFlags().StringVarP(&scanOutput, "output", "o", "default", "Output format (default or json)")
	scanCmd.PersistentFlags().BoolVar(&scanReserve, "reserve", false, "Reserve 'plant-network' for the duration of the scan")
	scanCmd.PersistentFlags().StringVar(&scanInstance, "as", "", "Instance identity for the reservation (defaults to $IOTSTACK_INSTANCE)")

	scanModbusCmd.Flags().IntSliceVar(&scanModbusUnits, "units", nil, "Unit IDs to probe (defaults to the configured range)")
	scanBACnetCmd.Flags().DurationVar(&scanBACnetWait, "wait", 5*time.Second, "How long to collect I-Am replies")
	scanDF1Cmd.Flags().IntSliceVar(&scanDF1Stations, "stations", []int{0, 1, 2, 3, 4, 5, 6, 7}, "Station numbers to probe")

	scanCmd.AddCommand(scanModbusCmd, scanBACnetCmd, scanDF1Cmd)
	rootCmd.AddCommand(scanCmd)
}

// withScanReservation runs fn, holding the plant-network reservation around it
// when --reserve was given.
func withScanReservation(ctx context.Context, note string, fn func(ctx context.Context) error) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	if !scanReserve {
		return fn(ctx)
	}

	name, err := instanceName(scanInstance, cfg)
	if err != nil {
		return err
	}

	client, err := boardClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.AcquireReservation(ctx, &taskboard.Reservation{
		Resource: PlantNetworkResource,
		Instance: name,
		Note:     note,
		TTL:      10 * time.Minute,
	})
	if err != nil {
		return printer.Error(
			"plant network is reserved",
			fmt.Sprintf("Error: %v", err),
			[]string{"Wait for the current scan to finish, or check:\n  brewctl watch"},
		)
	}
	defer func() {
		if err := client.ReleaseReservation(ctx, PlantNetworkResource, name); err != nil {
			printer.Warning("failed to release plant-network reservation: %v\n", err)
		}
	}()

	return fn(ctx)
}

func runScanModbus(cmd *cobra.Command, args []string) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	units := make([]byte, 0, len(scanModbusUnits))
	for _, u := range scanModbusUnits {
		if u < 1 || u > 247 {
			return printer.Error(
				fmt.Sprintf("invalid unit ID %d", u),
				"Modbus unit IDs run from 1 to 247.",
				nil,
			)
		}
		units = append(units, byte(u))
	}
	if len(units) == 0 {
		for u := cfg.Scanners.ModbusUnitMin; u <= cfg.Scanners.ModbusUnitMax; u++ {
			units = append(units, byte(u))
		}
	}

	return withScanReservation(context.Background(), "modbus sweep of "+args[0], func(ctx context.Context) error {
		printer.Step("Sweeping %d Modbus units on %s...\n", len(units), args[0])

		devices, err := scanner.ScanModbus(ctx, args[0], units, cfg.Scanners.Timeout())
		if err != nil {
			return fmt.Errorf("modbus scan failed: %w", err)
		}

		if scanOutput == "json" {
			return printJSON(devices)
		}

		if len(devices) == 0 {
			printer.Printf("No Modbus devices found\n")
			return nil
		}

		printer.Printf("%-6s %-20s %-20s %-10s %s\n", "UNIT", "VENDOR", "PRODUCT", "REVISION", "NOTE")
		for _, d := range devices {
			printer.Printf("%-6d %-20s %-20s %-10s %s\n",
				d.UnitID, orDash(d.Vendor), orDash(d.Product), orDash(d.Revision), d.Note)
		}
		printer.Printf("\n%d devices found\n", len(devices))
		return nil
	})
}

func runScanBACnet(cmd *cobra.Command, args []string) error {
	return withScanReservation(context.Background(), "bacnet sweep of "+args[0], func(ctx context.Context) error {
		printer.Step("Broadcasting Who-Is to %s (collecting for %s)...\n", args[0], scanBACnetWait)

		devices, err := scanner.ScanBACnet(ctx, args[0], scanBACnetWait)
		if err != nil {
			return fmt.Errorf("bacnet scan failed: %w", err)
		}

		if scanOutput == "json" {
			return printJSON(devices)
		}

		if len(devices) == 0 {
			printer.Printf("No BACnet devices answered\n")
			return nil
		}

		printer.Printf("%-10s %-22s %-10s %-20s %s\n", "INSTANCE", "ADDRESS", "MAX-APDU", "SEGMENTATION", "VENDOR")
		for _, d := range devices {
			printer.Printf("%-10d %-22s %-10d %-20s %d\n",
				d.Instance, d.Address, d.MaxAPDU, d.Segmentation, d.VendorID)
		}
		printer.Printf("\n%d devices found\n", len(devices))
		return nil
	})
}

func runScanDF1(cmd *cobra.Command, args []string) error {
	cfg, err := loadStack()
	if err != nil {
		return err
	}

	stations := make([]byte, 0, len(scanDF1Stations))
	for _, s := range scanDF1Stations {
		if s < 0 || s > 254 {
			return printer.Error(
				fmt.Sprintf("invalid station number %d", s),
				"DF1 station numbers run from 0 to 254.",
				nil,
			)
		}
		stations = append(stations, byte(s))
	}

	return withScanReservation(context.Background(), "df1 sweep of "+args[0], func(ctx context.Context) error {
		printer.Step("Probing %d DF1 stations through %s...\n", len(stations), args[0])

		devices, err := scanner.ScanDF1(ctx, args[0], stations, cfg.Scanners.Timeout())
		if err != nil {
			return fmt.Errorf("df1 scan failed: %w", err)
		}

		if scanOutput == "json" {
			return printJSON(devices)
		}

		if len(devices) == 0 {
			printer.Printf("No DF1 stations answered\n")
			return nil
		}

		printer.Printf("%-9s %-8s %s\n", "STATION", "STATUS", "IDENTITY")
		for _, d := range devices {
			printer.Printf("%-9d 0x%02X     %s\n", d.Station, d.Status, orDash(d.Identity))
		}
		printer.Printf("\n%d stations found\n", len(devices))
		return nil
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
