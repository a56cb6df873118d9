package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sportsbar-av/internal/bridges/cec"
)

func newCECCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cec",
		Short: "Inspect and drive the CEC adapter",
	}
	cmd.AddCommand(newCECAdaptersCommand(ctx))
	cmd.AddCommand(newCECScanCommand(ctx))
	cmd.AddCommand(newCECPowerCommand(ctx))
	cmd.AddCommand(newCECSendCommand(ctx))
	return cmd
}

func newCECAdaptersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List attached CEC adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := ctx.gateway()
			if err != nil {
				return err
			}
			defer gw.Shutdown()

			adapters, err := gw.Initialize(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(adapters))
			for _, a := range adapters {
				rows = append(rows, []string{a.Port, a.Type, a.VendorID, a.ProductID, a.Firmware})
			}
			return ctx.emit(adapters,
				[]string{"Port", "Type", "Vendor", "Product", "Firmware"},
				rows, nil)
		},
	}
}

func newCECScanCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the CEC bus for devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := ctx.gateway()
			if err != nil {
				return err
			}
			defer gw.Shutdown()

			devices, err := gw.ScanDevices(cmd.Context(), force)
			if err != nil {
				return err
			}
			return ctx.emit(devices, deviceHeaders(), deviceRows(devices), deviceAligns())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Ignore the scan cache")
	return cmd
}

func newCECPowerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "power ADDRESS",
		Short: "Query the power status of a logical address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseLogicalAddress(args[0])
			if err != nil {
				return err
			}
			gw, err := ctx.gateway()
			if err != nil {
				return err
			}
			defer gw.Shutdown()

			status, err := gw.GetPowerStatus(cmd.Context(), addr)
			if err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(ctx.out, map[string]any{"address": addr, "power_status": status})
			}
			fmt.Fprintf(ctx.out, "Device %d: %s\n", addr, status)
			return nil
		},
	}
}

func newCECSendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send COMMAND ADDRESS",
		Short: "Send a named CEC command",
		Long:  "Send a named CEC command. Known commands: " + strings.Join(cec.Commands(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cec.IsCommand(args[0]) {
				return fmt.Errorf("unknown command %q (known: %s)", args[0], strings.Join(cec.Commands(), ", "))
			}
			addr, err := parseLogicalAddress(args[1])
			if err != nil {
				return err
			}
			gw, err := ctx.gateway()
			if err != nil {
				return err
			}
			defer gw.Shutdown()

			if err := gw.SendCommand(cmd.Context(), args[0], addr); err != nil {
				return err
			}
			if ctx.wantJSON() {
				return writeJSON(ctx.out, map[string]any{"command": args[0], "address": addr, "sent": true})
			}
			fmt.Fprintf(ctx.out, "Sent %s to device %d\n", args[0], addr)
			return nil
		},
	}
}

func parseLogicalAddress(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 15 {
		return 0, fmt.Errorf("logical address must be 0-15, got %q", s)
	}
	return n, nil
}

func deviceHeaders() []string {
	return []string{"Addr", "Type", "Physical", "Vendor", "Name", "Power", "Active"}
}

func deviceAligns() []columnAlignment {
	return []columnAlignment{alignRight}
}

func deviceRows(devices []cec.Device) [][]string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{
			strconv.Itoa(d.LogicalAddress),
			d.Type,
			d.PhysicalAddress,
			d.Vendor,
			d.OSDName,
			d.PowerStatus,
			yesNo(d.ActiveSource),
		})
	}
	return rows
}
