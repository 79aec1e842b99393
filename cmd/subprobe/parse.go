package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/nao1215/subprobe/internal/model"
	"github.com/nao1215/subprobe/internal/subscription"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// maxParseInput caps the payload read by the parse command.
const maxParseInput = 10 * 1024 * 1024

// NewParseCmd creates the parse command.
func NewParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Decode a subscription payload and list its nodes",
		Long: `Parse decodes a saved subscription body the same way run does and lists
the nodes it yields, without downloading anything or starting the engine.

Use "-" to read from standard input.

Examples:
  subprobe parse subscription.txt
  curl -s https://example.com/sub | subprobe parse -
  subprobe parse --skipped clash.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runParseCmd,
	}

	cmd.Flags().Bool("skipped", false, "Also list the entries that were skipped and why")

	return cmd
}

func runParseCmd(cmd *cobra.Command, args []string) error {
	showSkipped, err := cmd.Flags().GetBool("skipped")
	if err != nil {
		return err
	}

	raw, err := readPayload(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	payload := subscription.Decode(raw)
	nodes, stats, skipped := subscription.ParsePayload(payload)
	unique := lo.UniqBy(nodes, func(n model.Node) string { return n.Fingerprint() })

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Format:      %s (%d base64 layers)\n", payload.Kind, payload.Layers)
	fmt.Fprintf(out, "Parsed:      %d\n", stats.Parsed)
	fmt.Fprintf(out, "Unsupported: %d\n", stats.Unsupported)
	fmt.Fprintf(out, "Malformed:   %d\n", stats.Malformed)
	fmt.Fprintf(out, "Duplicates:  %d\n", len(nodes)-len(unique))

	if len(nodes) > 0 {
		fmt.Fprintln(out)
		for i, n := range nodes {
			server, port := n.Outbound.Endpoint()
			fmt.Fprintf(out, "%4d  %-12s %-32s %s\n",
				i+1, n.Outbound.Protocol(), net.JoinHostPort(server, strconv.Itoa(port)), n.Tag)
		}
	}

	if showSkipped && len(skipped) > 0 {
		fmt.Fprintln(out, "\nSkipped:")
		for _, perr := range skipped {
			fmt.Fprintf(out, "  - %v\n", perr)
		}
	}

	return nil
}

// readPayload reads path, or in when path is "-".
func readPayload(path string, in io.Reader) (string, error) {
	var r io.Reader
	if path == "-" {
		r = in
	} else {
		f, err := os.Open(path) //nolint:gosec // User-provided payload path is intentional
		if err != nil {
			return "", fmt.Errorf("failed to open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxParseInput+1))
	if err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	if len(data) > maxParseInput {
		return "", fmt.Errorf("payload exceeds %d bytes", maxParseInput)
	}
	return string(data), nil
}
