package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Manifest lists the networks and contracts to index.
type Manifest struct {
	Networks  []Network  `yaml:"networks"`
	Contracts []Contract `yaml:"contracts"`

	// Dir is the manifest directory; relative ABI paths resolve against it.
	Dir string `yaml:"-"`
}

type Network struct {
	Name   string `yaml:"name"`
	RPCURL string `yaml:"rpc_url"`
}

type Contract struct {
	Name        string       `yaml:"name"`
	ABI         string       `yaml:"abi"`
	Events      []string     `yaml:"events"`
	Deployments []Deployment `yaml:"deployments"`
}

type Deployment struct {
	Network      string        `yaml:"network"`
	Address      string        `yaml:"address"`
	StartBlock   *uint64       `yaml:"start_block"`
	EndBlock     *uint64       `yaml:"end_block"`
	PollingEvery time.Duration `yaml:"polling_every"`
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// LoadManifest reads, interpolates env vars, parses YAML, and validates.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, errors.New("manifest path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal([]byte(interpolated), &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.Dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func loadDotEnv(manifestPath string) error {
	envPath := filepath.Join(filepath.Dir(manifestPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := map[string]struct{}{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing[name] = struct{}{}
		return match
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(names, ", "))
	}
	return out, nil
}

// Validate performs small, direct schema checks.
func (m *Manifest) Validate() error {
	if len(m.Networks) == 0 {
		return errors.New("at least one network is required")
	}
	if len(m.Contracts) == 0 {
		return errors.New("at least one contract is required")
	}

	networks := map[string]struct{}{}
	for _, n := range m.Networks {
		if n.Name == "" {
			return errors.New("network name is required")
		}
		if _, exists := networks[n.Name]; exists {
			return fmt.Errorf("duplicate network: %s", n.Name)
		}
		if n.RPCURL == "" {
			return fmt.Errorf("network %s: rpc_url is required", n.Name)
		}
		networks[n.Name] = struct{}{}
	}

	contracts := map[string]struct{}{}
	for _, c := range m.Contracts {
		if _, exists := contracts[c.Name]; exists {
			return fmt.Errorf("duplicate contract: %s", c.Name)
		}
		contracts[c.Name] = struct{}{}
		if err := c.Validate(networks); err != nil {
			return fmt.Errorf("contract %s: %w", c.Name, err)
		}
	}
	return nil
}

func (c *Contract) Validate(networks map[string]struct{}) error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.ABI == "" {
		return errors.New("abi is required")
	}
	if len(c.Events) == 0 {
		return errors.New("at least one event is required")
	}
	if len(c.Deployments) == 0 {
		return errors.New("at least one deployment is required")
	}
	for i, d := range c.Deployments {
		if _, ok := networks[d.Network]; !ok {
			return fmt.Errorf("deployment %d: unknown network: %s", i, d.Network)
		}
		if !common.IsHexAddress(d.Address) {
			return fmt.Errorf("deployment %d: invalid address: %s", i, d.Address)
		}
		if d.StartBlock != nil && d.EndBlock != nil && *d.StartBlock > *d.EndBlock {
			return fmt.Errorf("deployment %d: start_block %d after end_block %d", i, *d.StartBlock, *d.EndBlock)
		}
		if d.PollingEvery < 0 {
			return fmt.Errorf("deployment %d: negative polling_every", i)
		}
	}
	return nil
}

// RPCURLs maps network name to RPC endpoint.
func (m *Manifest) RPCURLs() map[string]string {
	out := make(map[string]string, len(m.Networks))
	for _, n := range m.Networks {
		out[n.Name] = n.RPCURL
	}
	return out
}

// ABIPath resolves a contract ABI reference that is a file path.
func (m *Manifest) ABIPath(ref string) string {
	if filepath.IsAbs(ref) || m.Dir == "" {
		return ref
	}
	return filepath.Join(m.Dir, ref)
}
