// Package bootstrap turns a contract manifest into a populated registry.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/chain"
	"eventRelay/internal/config"
	"eventRelay/internal/decoder"
	"eventRelay/internal/registry"
	"eventRelay/internal/storage"
)

// Options selects what BuildRegistry registers.
type Options struct {
	// Contracts limits registration to the named contracts. Empty means all.
	Contracts []string
	// Registry options passed to registry.New.
	RegistryOptions []registry.Option
}

// BuildRegistry registers every event of every manifest contract and
// completes the registry. Each route writes its decoded batches to sinks.
// providers may miss a network when the registry is only used to decode logs
// offline.
func BuildRegistry(m *config.Manifest, providers map[string]chain.Provider, sinks []storage.Storage, opts Options) (*registry.Registry, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest is nil")
	}

	selected, err := selectContracts(m.Contracts, opts.Contracts)
	if err != nil {
		return nil, err
	}

	reg := registry.New(opts.RegistryOptions...)
	for _, contract := range selected {
		abiText, err := loadABI(m, contract.ABI)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", contract.Name, err)
		}
		parsed, err := decoder.ParseABI(abiText)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", contract.Name, err)
		}

		for _, eventName := range contract.Events {
			binding, err := decoder.ForEvent(parsed, eventName)
			if err != nil {
				return nil, fmt.Errorf("contract %s: %w", contract.Name, err)
			}

			info := registry.ContractInfo{
				Name:    contract.Name,
				ABI:     abiText,
				Details: deployments(contract, providers),
			}
			event, err := binding.Route(info, sinks...)
			if err != nil {
				return nil, fmt.Errorf("contract %s event %s: %w", contract.Name, eventName, err)
			}
			if err := reg.Register(event); err != nil {
				return nil, fmt.Errorf("contract %s event %s: %w", contract.Name, eventName, err)
			}
		}
	}
	return reg.Complete(), nil
}

func selectContracts(all []config.Contract, names []string) ([]config.Contract, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]config.Contract, len(all))
	for _, c := range all {
		byName[c.Name] = c
	}
	out := make([]config.Contract, 0, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown contract: %s", name)
		}
		out = append(out, c)
	}
	return out, nil
}

func loadABI(m *config.Manifest, ref string) (string, error) {
	if text, ok := decoder.BuiltinABI(ref); ok {
		return text, nil
	}
	data, err := os.ReadFile(m.ABIPath(ref))
	if err != nil {
		return "", fmt.Errorf("read abi: %w", err)
	}
	return string(data), nil
}

// deployments leaves the decoder unset; the route binds its own.
func deployments(contract config.Contract, providers map[string]chain.Provider) []registry.NetworkContract {
	out := make([]registry.NetworkContract, 0, len(contract.Deployments))
	for _, d := range contract.Deployments {
		nc := registry.NetworkContract{
			Network:    d.Network,
			Address:    common.HexToAddress(d.Address).Hex(),
			Provider:   providers[d.Network],
			StartBlock: d.StartBlock,
			EndBlock:   d.EndBlock,
		}
		if d.PollingEvery > 0 {
			every := d.PollingEvery
			nc.PollingEvery = &every
		}
		out = append(out, nc)
	}
	return out
}

// Deployment finds the deployment of a route at address on network.
func Deployment(event *registry.EventInformation, network string, address common.Address) (*registry.NetworkContract, bool) {
	for i := range event.Contract.Details {
		d := &event.Contract.Details[i]
		if d.Network == network && d.ContractAddress() == address {
			return d, true
		}
	}
	return nil, false
}
