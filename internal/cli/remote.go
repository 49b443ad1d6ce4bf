package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/turtacn/Optibench/internal/client"
	"github.com/turtacn/Optibench/pkg/protocol"
)

var (
	uploadShape []int
	uploadDType string
	timeout     time.Duration
)

func newClient() *client.Client {
	if addr != "" {
		return client.New(addr)
	}
	return client.New(cfg.Server.Address)
}

// report prints ok and turns a false result into a non-zero exit.
func report(cmd *cobra.Command, method string, ok bool, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ok)
	if !ok {
		return fmt.Errorf("%s: the host reported failure, see its log", method)
	}
	return nil
}

func stageArg(args []string) (protocol.StageType, error) {
	return protocol.ParseStageType(args[0])
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a raw little-endian frame (\"-\" reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		ok, err := newClient().UploadFrame(cmd.Context(), data, uploadShape, uploadDType)
		return report(cmd, protocol.MethodUploadFrame, ok, err)
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Drive a motorized stage (rotation|zaxis, or 1|2)",
}

var stageConnectCmd = &cobra.Command{
	Use:  "connect STAGE",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := stageArg(args)
		if err != nil {
			return err
		}
		ok, err := newClient().StageConnect(cmd.Context(), t)
		return report(cmd, protocol.MethodStageConnect, ok, err)
	},
}

var stageHomeCmd = &cobra.Command{
	Use:  "home STAGE",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := stageArg(args)
		if err != nil {
			return err
		}
		ok, err := newClient().StageHome(cmd.Context(), t, timeout)
		return report(cmd, protocol.MethodStageHome, ok, err)
	},
}

var stagePositionCmd = &cobra.Command{
	Use:  "position STAGE",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := stageArg(args)
		if err != nil {
			return err
		}
		pos, err := newClient().StageGetPosition(cmd.Context(), t)
		if err != nil {
			return err
		}
		if pos == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "null")
			return fmt.Errorf("%s: no position, is the stage connected?", protocol.MethodStageGetPosition)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(*pos, 'f', -1, 64))
		return nil
	},
}

var stageMoveCmd = &cobra.Command{
	Use:  "move STAGE POSITION",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := stageArg(args)
		if err != nil {
			return err
		}
		pos, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("position %q: %w", args[1], err)
		}
		ok, err := newClient().StageMoveTo(cmd.Context(), t, pos, timeout)
		return report(cmd, protocol.MethodStageMoveTo, ok, err)
	},
}

var stageDisconnectCmd = &cobra.Command{
	Use:  "disconnect STAGE",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := stageArg(args)
		if err != nil {
			return err
		}
		ok, err := newClient().StageDisconnect(cmd.Context(), t)
		return report(cmd, protocol.MethodStageDisconnect, ok, err)
	},
}

var stageStatusCmd = &cobra.Command{
	Use:  "status STAGE",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := stageArg(args)
		if err != nil {
			return err
		}
		connected, err := newClient().StageIsConnected(cmd.Context(), t)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), connected)
		return nil
	},
}

var ahkCmd = &cobra.Command{
	Use:   "ahk",
	Short: "Drive the desktop automation tool on the host",
}

var ahkCaptureCmd = &cobra.Command{
	Use:  "capture",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newClient().AHKCapturePosition(cmd.Context())
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "null")
			return fmt.Errorf("%s: no position captured", protocol.MethodAHKCapturePos)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
			strconv.FormatFloat(p.X, 'f', -1, 64), strconv.FormatFloat(p.Y, 'f', -1, 64))
		return nil
	},
}

var ahkClickCmd = &cobra.Command{
	Use:  "click X Y",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var xy [2]float64
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("coordinate %q: %w", a, err)
			}
			xy[i] = v
		}
		ok, err := newClient().AHKClickAt(cmd.Context(), xy[0], xy[1])
		return report(cmd, protocol.MethodAHKClickAt, ok, err)
	},
}

var ahkConfigCmd = &cobra.Command{
	Use:  "config",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newClient().AHKGetConfig(cmd.Context())
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, m[k])
		}
		return nil
	},
}

var displayCmd = &cobra.Command{
	Use:   "display",
	Short: "Inspect the spatial light modulator",
}

var displayInfoCmd = &cobra.Command{
	Use:  "info",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient().DisplayInfo(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\nshape: %v\n", info.Mode, info.Shape)
		return nil
	},
}

func addClientCommands(root *cobra.Command) {
	uploadCmd.Flags().IntSliceVar(&uploadShape, "shape", nil, "frame shape, e.g. 1152,1920")
	uploadCmd.Flags().StringVar(&uploadDType, "dtype", "uint8", "element type (uint8, <u2, float32, ...)")
	_ = uploadCmd.MarkFlagRequired("shape")

	for _, c := range []*cobra.Command{stageHomeCmd, stageMoveCmd} {
		c.Flags().DurationVar(&timeout, "timeout", 0, "motion timeout (0 uses the host default)")
	}
	stageCmd.AddCommand(stageConnectCmd, stageHomeCmd, stagePositionCmd, stageMoveCmd, stageDisconnectCmd, stageStatusCmd)
	ahkCmd.AddCommand(ahkCaptureCmd, ahkClickCmd, ahkConfigCmd)
	displayCmd.AddCommand(displayInfoCmd)

	root.AddCommand(uploadCmd, stageCmd, ahkCmd, displayCmd)
}

// Personal.AI order the ending
