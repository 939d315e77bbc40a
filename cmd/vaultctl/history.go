package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sushiBar/internal/config"
	"sushiBar/internal/events"
	"sushiBar/internal/model"
	"sushiBar/internal/storage"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Decode the event journal into typed events",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().String("history-out", "./data/typed_events.jsonl", "output typed events JSONL")
	cmd.Flags().String("history-errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) (err error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.EventsOut == "" {
		return fmt.Errorf("events path is required")
	}

	decoder, err := events.NewDecoder()
	if err != nil {
		return err
	}

	outWriter, err := newJSONLWriter(cfg.HistoryOut)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := outWriter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close history: %w", cerr)
		}
	}()

	errWriter, err := newJSONLWriter(cfg.HistoryErrors)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := errWriter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close decode errors: %w", cerr)
		}
	}()

	var failed int
	var writeErr error
	records, err := storage.NewJsonlStorage(cfg.EventsOut).ReadLogs(func(line int, err error) {
		failed++
		if werr := writeDecodeError(errWriter, model.DecodeError{Line: line, Error: err.Error()}); werr != nil && writeErr == nil {
			writeErr = werr
		}
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}

	var decoded, skipped int
	for _, record := range records {
		if len(record.Topics) == 0 || !decoder.CanDecode(record.Topics[0]) {
			skipped++
			continue
		}
		event, err := decoder.Decode(record)
		if err != nil {
			failed++
			if werr := writeDecodeError(errWriter, decodeErrorFromRecord(record, err)); werr != nil {
				return werr
			}
			continue
		}
		if err := outWriter.Write(event); err != nil {
			return err
		}
		decoded++
	}

	logger.Info("history complete",
		zap.String("in", cfg.EventsOut),
		zap.String("out", cfg.HistoryOut),
		zap.Int("total", len(records)),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "decoded %d events, %d failed, %d skipped\n", decoded, failed, skipped)
	return nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
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
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}
	return model.DecodeError{
		Seq:     record.Seq,
		Address: record.Address,
		Topic0:  topic0,
		Error:   err.Error(),
	}
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) error {
	if writer == nil {
		return nil
	}
	if err := writer.Write(errRecord); err != nil {
		return fmt.Errorf("write decode error: %w", err)
	}
	return nil
}
