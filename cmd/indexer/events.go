package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"eventRelay/internal/bootstrap"
	"eventRelay/internal/config"
	"eventRelay/internal/registry"
)

func runEvents(cmd *cobra.Command, _ []string) error {
	manifestPath, _ := cmd.Flags().GetString("manifest")
	contracts, _ := cmd.Flags().GetStringSlice("contracts")
	topicInputs, _ := cmd.Flags().GetStringSlice("topic")

	topics, err := parseTopicIDs(topicInputs)
	if err != nil {
		return err
	}

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	reg, err := bootstrap.BuildRegistry(manifest, nil, nil, bootstrap.Options{Contracts: contracts})
	if err != nil {
		return err
	}

	routes := selectRoutes(reg, topics)
	if len(routes) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no routes matched")
		return nil
	}
	return printRoutes(cmd.OutOrStdout(), routes)
}

// parseTopicIDs reads 32-byte hex topic ids; blank entries are ignored.
func parseTopicIDs(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		raw, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", input, err)
		}
		if len(raw) != common.HashLength {
			return nil, fmt.Errorf("topic %s: want %d bytes, got %d", input, common.HashLength, len(raw))
		}
		topics = append(topics, common.BytesToHash(raw))
	}
	return topics, nil
}

func selectRoutes(reg *registry.Registry, topics []common.Hash) []*registry.EventInformation {
	if len(topics) == 0 {
		return reg.Events()
	}
	out := make([]*registry.EventInformation, 0, len(topics))
	for _, topicID := range topics {
		if event, ok := reg.FindEvent(topicID); ok {
			out = append(out, event)
		}
	}
	return out
}

func printRoutes(w io.Writer, events []*registry.EventInformation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tEVENT\tCONTRACT\tDEPLOYMENTS")
	for _, event := range events {
		deployments := make([]string, 0, len(event.Contract.Details))
		for _, d := range event.Contract.Details {
			deployments = append(deployments, d.Network+":"+d.Address)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", event.TopicID.Hex(), event.Name, event.Contract.Name, strings.Join(deployments, ","))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write routes: %w", err)
	}
	return nil
}
