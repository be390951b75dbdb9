package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cvsouth/phttp-go/client"
	"github.com/cvsouth/phttp-go/pathselect"
	"github.com/cvsouth/phttp-go/payload"
	"github.com/cvsouth/phttp-go/peerid"
	"github.com/cvsouth/phttp-go/request"
	"github.com/cvsouth/phttp-go/segment"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a node identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := peerid.Generate()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "peer id: %s\n", id.PeerID)
			fmt.Fprintf(out, "seed:    %s\n", hex.EncodeToString(id.PrivateKey.Seed()))
			return nil
		},
	}
}

func newRouteCommand() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Select a route from the configured node pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(configFile)
			if err != nil {
				return err
			}
			defer e.close()
			sel, err := e.client.Route()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pathselect.PrettyPrint(sel))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file")
	return cmd
}

func newPrepareCommand() *cobra.Command {
	var (
		configFile string
		call       client.Call
		hops       int
		outFile    string
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Box and segment a request for a selected route",
		Example: `  # Prepare a JSON-RPC call and write its segments to a file
  phttp-client prepare -c client.toml --provider https://rpc.example \
    --body '{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}' \
    -H Content-Type=application/json -o segments.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if call.Provider == "" {
				return fmt.Errorf("required flag provider not set")
			}
			if hops >= 0 {
				call.Hops = &hops
			}
			e, err := loadEnv(configFile)
			if err != nil {
				return err
			}
			defer e.close()

			p, err := e.client.Prepare(call)
			if err != nil {
				return err
			}
			defer p.Close()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, request.PrettyPrint(p.Request))
			fmt.Fprintf(out, "route:    %s\n", pathselect.PrettyPrint(p.Selection))
			fmt.Fprintf(out, "segments: %d\n", len(p.Segments))
			if outFile == "" {
				return nil
			}
			return writeSegments(outFile, p.Segments)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file")
	cmd.Flags().StringVar(&call.Provider, "provider", "", "endpoint the exit node calls")
	cmd.Flags().StringVar(&call.Body, "body", "", "request body")
	cmd.Flags().StringToStringVarP(&call.Headers, "header", "H", nil, "request header as key=value")
	cmd.Flags().IntVar(&hops, "hops", -1, "number of relay hops, negative leaves it to the network")
	cmd.Flags().BoolVar(&call.MeasureRPCLatency, "measure-latency", false, "ask the exit to report call durations")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write segments to this file")
	return cmd
}

func writeSegments(path string, segs []segment.Segment) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	w := segment.NewWriter(f)
	for _, s := range segs {
		if err := w.WriteSegment(s); err != nil {
			f.Close()
			return fmt.Errorf("write segment %d: %w", s.Nr, err)
		}
	}
	return f.Close()
}

func newOpenCommand() *cobra.Command {
	var (
		seed   string
		inFile string
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the requests in a segment file as the exit node",
		Example: `  # Open segments written by prepare with the exit's seed
  phttp-client open --seed <hex seed> -i segments.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identityFromSeed(seed)
			if err != nil {
				return err
			}
			exit, err := client.NewExit(id, "", nil, nil, nil)
			if err != nil {
				return err
			}
			f, err := os.Open(inFile)
			if err != nil {
				return err
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			r := segment.NewReader(bufio.NewReader(f))
			for {
				s, err := r.ReadSegment()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				in, err := exit.Receive(s)
				if err != nil {
					return fmt.Errorf("request %s: %w", s.RequestID, err)
				}
				if in == nil {
					continue
				}
				fmt.Fprintf(out, "request %s from e%s\n", in.RequestID, peerid.Short(in.EntryPeerID))
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(in.Payload)
				in.Close()
				if err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "hex ed25519 seed of the exit (see keygen)")
	cmd.Flags().StringVarP(&inFile, "in", "i", "", "segment file written by prepare")
	cmd.MarkFlagRequired("seed")
	cmd.MarkFlagRequired("in")
	return cmd
}

func identityFromSeed(seed string) (*peerid.Identity, error) {
	raw, err := hex.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid argument seed: %w", err)
	}
	return peerid.FromSeed(raw)
}

func newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Encode or decode exit info advertisements",
	}
	cmd.AddCommand(newInfoEncodeCommand(), newInfoDecodeCommand())
	return cmd
}

func newInfoEncodeCommand() *cobra.Command {
	var (
		seed          string
		version       string
		relayShortIDs []string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode the info advertisement of an exit identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identityFromSeed(seed)
			if err != nil {
				return err
			}
			exit, err := client.NewExit(id, version, relayShortIDs, nil, nil)
			if err != nil {
				return err
			}
			info, err := exit.Info()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "hex ed25519 seed of the exit (see keygen)")
	cmd.Flags().StringVar(&version, "version", "2.0.0", "advertised exit version")
	cmd.Flags().StringSliceVar(&relayShortIDs, "relay-short-ids", nil, "relay id suffixes the exit accepts")
	cmd.MarkFlagRequired("seed")
	return cmd
}

func newInfoDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <info>",
		Short: "Decode an info advertisement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := payload.DecodeInfo(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}
