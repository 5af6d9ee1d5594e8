// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/inertial_mlc/internal/imu"
	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
	"github.com/relabs-tech/inertial_mlc/internal/metrics"
	"github.com/relabs-tech/inertial_mlc/internal/sensors"
)

// deviceManager is what the one-shot commands need from sensors.IMUManager.
type deviceManager interface {
	ReadPage(addr uint16, n int) ([]byte, error)
	WritePage(addr uint16, data []byte) error
	ApplyUCFFile(path string) (int, error)
	ExportRegisterConfig(bank ism330dhcx.Bank) (map[byte]byte, error)
	ReadAllRegisters(bank ism330dhcx.Bank) (map[byte]byte, error)
	Route(pin ism330dhcx.Pin) (ism330dhcx.RouteTable, error)
	SetRoute(pin ism330dhcx.Pin, t ism330dhcx.RouteTable) error
	SetODR(sensor string, hz float64) (ism330dhcx.ODR, error)
	Status() (imu.Status, error)
}

// withDevice opens and configures the device from the loaded configuration,
// runs fn and releases the bus.
func withDevice(fn func(deviceManager) error) error {
	mgr := sensors.NewIMUManager(metrics.Default, nil)
	if err := mgr.Init(); err != nil {
		return err
	}
	defer mgr.Close()
	return fn(mgr)
}

func parsePageAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v >= ism330dhcx.PagedMemorySize {
		return 0, fmt.Errorf("invalid page address %q", s)
	}
	return uint16(v), nil
}

func pageRead(mgr deviceManager, out io.Writer, addrArg, lenArg string) error {
	addr, err := parsePageAddr(addrArg)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(lenArg)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid length %q", lenArg)
	}
	data, err := mgr.ReadPage(addr, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "read %s from 0x%03X\n", humanize.Bytes(uint64(len(data))), addr)
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(out, "0x%03X: % x\n", int(addr)+off, data[off:end])
	}
	return nil
}

func pageWrite(mgr deviceManager, out io.Writer, addrArg, dataArg string) error {
	addr, err := parsePageAddr(addrArg)
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(strings.TrimPrefix(dataArg, "0x"))
	if err != nil || len(data) == 0 {
		return fmt.Errorf("invalid hex data %q", dataArg)
	}
	if err := mgr.WritePage(addr, data); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s to 0x%03X\n", humanize.Bytes(uint64(len(data))), addr)
	return nil
}

func ucfLoad(mgr deviceManager, out io.Writer, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	n, err := mgr.ApplyUCFFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %s steps from %s (%s)\n", humanize.Comma(int64(n)), path, humanize.Bytes(uint64(fi.Size())))
	return nil
}

// Snapshot is the YAML document written by the snapshot command.
type Snapshot struct {
	Device string                       `yaml:"device"`
	Time   time.Time                    `yaml:"time"`
	Status imu.Status                   `yaml:"status"`
	Banks  map[string]map[string]string `yaml:"banks"`
}

func takeSnapshot(mgr deviceManager, banks []ism330dhcx.Bank, all bool) (*Snapshot, error) {
	st, err := mgr.Status()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Device: "ISM330DHCX",
		Time:   time.Now().UTC(),
		Status: st,
		Banks:  make(map[string]map[string]string, len(banks)),
	}
	for _, b := range banks {
		var regs map[byte]byte
		if all {
			regs, err = mgr.ReadAllRegisters(b)
		} else {
			regs, err = mgr.ExportRegisterConfig(b)
		}
		if err != nil {
			return nil, fmt.Errorf("%s bank: %w", b, err)
		}
		m := make(map[string]string, len(regs))
		for addr, v := range regs {
			m[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", v)
		}
		snap.Banks[b.String()] = m
	}
	return snap, nil
}

func writeSnapshot(snap *Snapshot, out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return err
	}
	return enc.Close()
}

func routeShow(mgr deviceManager, out io.Writer) error {
	for _, pin := range []ism330dhcx.Pin{ism330dhcx.Pin1, ism330dhcx.Pin2} {
		t, err := mgr.Route(pin)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", pin, t)
	}
	return nil
}

func routeSet(mgr deviceManager, out io.Writer, pinArg, sources string) error {
	pin, err := ism330dhcx.ParsePin(pinArg)
	if err != nil {
		return err
	}
	t, err := ism330dhcx.ParseRouteTable(sources)
	if err != nil {
		return err
	}
	if err := mgr.SetRoute(pin, t); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", pin, t)
	return nil
}

func odrSet(mgr deviceManager, out io.Writer, sensor, hzArg string) error {
	hz, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(hzArg), "hz"), 64)
	if err != nil {
		return fmt.Errorf("invalid rate %q", hzArg)
	}
	odr, err := mgr.SetODR(sensor, hz)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: requested %gHz, running at %s\n", sensor, hz, odr)
	return nil
}

var PageCmd = &cobra.Command{
	Use:   "page",
	Short: "read or write the embedded function paged memory",
}

var pageReadCmd = &cobra.Command{
	Use:     "read <addr> <len>",
	Short:   "dump len bytes of paged memory starting at addr",
	Example: `  dhcxctl page read 0x17C 4`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(mgr deviceManager) error {
			return pageRead(mgr, cmd.OutOrStdout(), args[0], args[1])
		})
	},
}

var pageWriteCmd = &cobra.Command{
	Use:     "write <addr> <hex>",
	Short:   "write hex encoded bytes to paged memory starting at addr",
	Example: `  dhcxctl page write 0x17C 0a0b`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(mgr deviceManager) error {
			return pageWrite(mgr, cmd.OutOrStdout(), args[0], args[1])
		})
	},
}

var UCFCmd = &cobra.Command{
	Use:   "ucf",
	Short: "apply FSM/MLC programs",
}

var ucfLoadCmd = &cobra.Command{
	Use:     "load <file.ucf>",
	Short:   "apply a UCF program and re-resolve the output data rates",
	Example: `  dhcxctl ucf load ./wrist_tilt.ucf`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(mgr deviceManager) error {
			return ucfLoad(mgr, cmd.OutOrStdout(), args[0])
		})
	},
}

func init() {
	PageCmd.AddCommand(pageReadCmd)
	PageCmd.AddCommand(pageWriteCmd)
	UCFCmd.AddCommand(ucfLoadCmd)
	RouteCmd.AddCommand(routeShowCmd)
	RouteCmd.AddCommand(routeSetCmd)
	ODRCmd.AddCommand(odrSetCmd)
}

func SnapshotCmdFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("bank", []string{"user", "embedded-func"}, "banks to dump")
	cmd.Flags().Bool("all", false, "include read-only registers")
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
}

var SnapshotCmd = &cobra.Command{
	Use:        "snapshot",
	SuggestFor: []string{"snap", "dump"},
	Short:      "dump status and register banks as YAML",
	Long: `snapshot records the device status and the register banks as YAML.
By default only read/write registers are included, which makes the output a
configuration record. Registers with read side effects are never read.`,
	Example: `  dhcxctl snapshot -o before.yaml
  dhcxctl snapshot --bank user --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("bank")
		all, _ := cmd.Flags().GetBool("all")
		output, _ := cmd.Flags().GetString("output")

		banks := make([]ism330dhcx.Bank, 0, len(names))
		for _, n := range names {
			b, err := ism330dhcx.ParseBank(n)
			if err != nil {
				return err
			}
			banks = append(banks, b)
		}
		sort.Slice(banks, func(i, j int) bool { return banks[i] < banks[j] })

		return withDevice(func(mgr deviceManager) error {
			snap, err := takeSnapshot(mgr, banks, all)
			if err != nil {
				return err
			}
			if output == "" {
				return writeSnapshot(snap, cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := writeSnapshot(snap, f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
	},
}

var RouteCmd = &cobra.Command{
	Use:   "route",
	Short: "show or change interrupt pin routing",
}

var routeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the sources routed to INT1 and INT2",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(mgr deviceManager) error {
			return routeShow(mgr, cmd.OutOrStdout())
		})
	},
}

var routeSetCmd = &cobra.Command{
	Use:   "set <int1|int2> <sources>",
	Short: "replace the routing of a pin",
	Long: `set replaces every source routed to the pin with the comma separated
list given. "none" clears the pin.`,
	Example: `  dhcxctl route set int1 fifo_th,mlc1
  dhcxctl route set int2 none`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(mgr deviceManager) error {
			return routeSet(mgr, cmd.OutOrStdout(), args[0], args[1])
		})
	},
}

var ODRCmd = &cobra.Command{
	Use:   "odr",
	Short: "change output data rates",
}

var odrSetCmd = &cobra.Command{
	Use:   "set <accel|gyro> <hz>",
	Short: "request an output data rate",
	Long: `set requests a rate for the sensor. The rate is rounded up to the next
supported one and raised to the FSM/MLC floor while an engine runs.`,
	Example: `  dhcxctl odr set accel 52`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(mgr deviceManager) error {
			return odrSet(mgr, cmd.OutOrStdout(), args[0], args[1])
		})
	},
}
