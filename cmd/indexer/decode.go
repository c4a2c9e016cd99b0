package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventRelay/internal/bootstrap"
	"eventRelay/internal/config"
	"eventRelay/internal/model"
	"eventRelay/internal/registry"
	"eventRelay/internal/storage"
)

// decodeChunk is how many input lines are grouped per topic before dispatch.
const decodeChunk = 512

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	manifest, err := config.LoadManifest(cfg.Manifest)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	reg, err := bootstrap.BuildRegistry(manifest, nil, []storage.Storage{outWriter},
		bootstrap.Options{
			Contracts: cfg.Contracts,
			RegistryOptions: []registry.Option{
				registry.WithLogger(logger),
				registry.WithDecodeErrorSink(errWriter),
			},
		},
	)
	if err != nil {
		return err
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("network", cfg.Network),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Int("routes", len(reg.Events())),
	)

	d := &offlineDecoder{reg: reg, network: cfg.Network, errors: errWriter}
	total, err := d.decodeStream(ctx, inputFile)
	if err != nil {
		return err
	}

	if err := outWriter.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := errWriter.Close(); err != nil {
		return fmt.Errorf("close errors: %w", err)
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", outWriter.count),
		zap.Int("skipped", d.skipped),
		zap.Int("failed", errWriter.count),
	)
	return nil
}

type offlineDecoder struct {
	reg     *registry.Registry
	network string
	errors  *jsonlWriter
	skipped int
}

// decodeStream reads raw logs and triggers the registry once per topic per
// chunk, keeping input order within each topic.
func (d *offlineDecoder) decodeStream(ctx context.Context, input io.Reader) (int, error) {
	scanner := bufio.NewScanner(input)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		total  int
		order  []common.Hash
		groups = make(map[common.Hash][]registry.LogWithContract)
	)
	flush := func() error {
		for _, topicID := range order {
			if err := d.reg.Trigger(ctx, topicID, groups[topicID]); err != nil {
				return err
			}
		}
		order = order[:0]
		groups = make(map[common.Hash][]registry.LogWithContract)
		return nil
	}

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var log model.RawLog
		if err := json.Unmarshal(line, &log); err != nil {
			rec := model.DecodeError{Network: d.network, Data: string(line), Error: err.Error()}
			if werr := d.errors.PutDecodeError(rec); werr != nil {
				return total, werr
			}
			continue
		}

		item, ok := d.route(log)
		if !ok {
			d.skipped++
			continue
		}
		topicID := log.Topics[0]
		if _, seen := groups[topicID]; !seen {
			order = append(order, topicID)
		}
		groups[topicID] = append(groups[topicID], item)

		if total%decodeChunk == 0 {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("scan input: %w", err)
	}
	return total, flush()
}

// route pairs a log with the deployment that emitted it. Logs of unknown
// topics or from addresses outside the manifest are skipped.
func (d *offlineDecoder) route(log model.RawLog) (registry.LogWithContract, bool) {
	topicID, ok := log.Topic0()
	if !ok {
		return registry.LogWithContract{}, false
	}
	event, ok := d.reg.FindEvent(topicID)
	if !ok {
		return registry.LogWithContract{}, false
	}
	deployment, ok := bootstrap.Deployment(event, d.network, log.Address)
	if !ok {
		return registry.LogWithContract{}, false
	}
	return registry.LogWithContract{Log: log, Contract: deployment}, true
}

// jsonlWriter writes one file from a single goroutine; it is both the event
// sink and the decode error sink of the decode command.
type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int
	closed bool
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	w.count++
	return nil
}

func (w *jsonlWriter) PutEvents(_ context.Context, events []model.EventRecord) error {
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

func (w *jsonlWriter) PutDecodeError(rec model.DecodeError) error {
	return w.Write(rec)
}

// Close flushes and closes the file. Later calls return nil, so a deferred
// Close after an explicit one is harmless.
func (w *jsonlWriter) Close() error {
	if w == nil || w.closed {
		return nil
	}
	w.closed = true
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
