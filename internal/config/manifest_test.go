package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const manifestYAML = `
networks:
  - name: bsc
    rpc_url: ${BSC_RPC}
contracts:
  - name: pool
    abi: builtin:v3pool
    events: [Swap, Mint]
    deployments:
      - network: bsc
        address: "0x1111111111111111111111111111111111111111"
        start_block: 100
        end_block: 200
        polling_every: 5s
      - network: bsc
        address: "0x2222222222222222222222222222222222222222"
`

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifestInterpolatesEnv(t *testing.T) {
	t.Setenv("BSC_RPC", "http://bsc-rpc")
	path := writeManifest(t, t.TempDir(), manifestYAML)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := m.RPCURLs()["bsc"]; got != "http://bsc-rpc" {
		t.Fatalf("rpc_url not interpolated, got %q", got)
	}

	deployments := m.Contracts[0].Deployments
	if len(deployments) != 2 {
		t.Fatalf("deployments: %d", len(deployments))
	}
	first := deployments[0]
	if first.StartBlock == nil || *first.StartBlock != 100 || first.EndBlock == nil || *first.EndBlock != 200 {
		t.Fatalf("block bounds: %+v", first)
	}
	if first.PollingEvery != 5*time.Second {
		t.Fatalf("polling_every: %s", first.PollingEvery)
	}
	if deployments[1].StartBlock != nil || deployments[1].EndBlock != nil {
		t.Fatalf("absent bounds must stay nil: %+v", deployments[1])
	}
}

func TestLoadManifestReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BSC_RPC=http://from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	path := writeManifest(t, dir, manifestYAML)
	t.Cleanup(func() { os.Unsetenv("BSC_RPC") })

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := m.RPCURLs()["bsc"]; got != "http://from-dotenv" {
		t.Fatalf("rpc_url from .env, got %q", got)
	}
	if got := m.ABIPath("abi/pool.json"); got != filepath.Join(dir, "abi/pool.json") {
		t.Fatalf("abi path: %s", got)
	}
}

func TestLoadManifestFailsOnMissingEnv(t *testing.T) {
	os.Unsetenv("BSC_RPC")
	path := writeManifest(t, t.TempDir(), manifestYAML)
	_, err := LoadManifest(path)
	if err == nil || !strings.Contains(err.Error(), "BSC_RPC") {
		t.Fatalf("expected missing env error, got %v", err)
	}
}

func TestManifestValidate(t *testing.T) {
	start, end := uint64(10), uint64(5)
	base := func() Manifest {
		return Manifest{
			Networks: []Network{{Name: "bsc", RPCURL: "http://rpc"}},
			Contracts: []Contract{{
				Name:        "pool",
				ABI:         "builtin:v3pool",
				Events:      []string{"Swap"},
				Deployments: []Deployment{{Network: "bsc", Address: "0x1111111111111111111111111111111111111111"}},
			}},
		}
	}

	cases := map[string]func(m *Manifest){
		"unknown network": func(m *Manifest) { m.Contracts[0].Deployments[0].Network = "eth" },
		"invalid address": func(m *Manifest) { m.Contracts[0].Deployments[0].Address = "0x12" },
		"no deployments":  func(m *Manifest) { m.Contracts[0].Deployments = nil },
		"no events":       func(m *Manifest) { m.Contracts[0].Events = nil },
		"duplicate contract": func(m *Manifest) {
			m.Contracts = append(m.Contracts, m.Contracts[0])
		},
		"start after end": func(m *Manifest) {
			m.Contracts[0].Deployments[0].StartBlock = &start
			m.Contracts[0].Deployments[0].EndBlock = &end
		},
		"missing rpc": func(m *Manifest) { m.Networks[0].RPCURL = "" },
	}

	valid := base()
	if err := valid.Validate(); err != nil {
		t.Fatalf("base manifest invalid: %v", err)
	}
	for name, mutate := range cases {
		m := base()
		mutate(&m)
		if err := m.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
