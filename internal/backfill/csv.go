package backfill

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fks/market-data/internal/types"
)

// FileCSVSink appends fetched chunks and writes split exports as CSV
// files under BaseDir, grounded on
// _examples/sawpanic-cryptorun/src/internal/artifacts/writer.go's
// temp-file-then-rename atomic write pattern.
type FileCSVSink struct {
	BaseDir string
}

// NewFileCSVSink builds a sink rooted at baseDir. The directory is not
// created here; writes create it when absent.
func NewFileCSVSink(baseDir string) *FileCSVSink {
	return &FileCSVSink{BaseDir: baseDir}
}

// AppendCSV appends bars to a per-(asset,interval) running CSV file.
func (s *FileCSVSink) AppendCSV(asset types.ActiveAsset, interval string, bars []types.MarketBar) error {
	if len(bars) == 0 {
		return nil
	}
	path := filepath.Join(s.BaseDir, fmt.Sprintf("%s_%s.csv", asset.Symbol, interval))
	return appendRows(path, bars)
}

// WriteSplitCSV writes one split segment to its own CSV file, rewritten
// atomically on every materialization.
func (s *FileCSVSink) WriteSplitCSV(asset types.ActiveAsset, interval string, split types.DatasetSplit, bars []types.MarketBar) error {
	path := filepath.Join(s.BaseDir, fmt.Sprintf("%s_%s_%s.csv", asset.Symbol, interval, split))
	return writeRowsAtomic(path, bars)
}

func appendRows(path string, bars []types.MarketBar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("backfill: create csv dir: %w", err)
	}
	isNew := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("backfill: open csv for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(barCSVHeader); err != nil {
			return err
		}
	}
	for _, bar := range bars {
		if err := w.Write(barToRow(bar)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeRowsAtomic(finalPath string, bars []types.MarketBar) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return fmt.Errorf("backfill: create csv dir: %w", err)
	}
	tempPath := finalPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("backfill: create temp csv: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(barCSVHeader); err != nil {
		f.Close()
		return err
	}
	for _, bar := range bars {
		if err := w.Write(barToRow(bar)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("backfill: rename temp csv: %w", err)
	}
	return nil
}

var barCSVHeader = []string{"ts", "open", "high", "low", "close", "volume"}

func barToRow(bar types.MarketBar) []string {
	return []string{
		strconv.FormatInt(bar.TS.Unix(), 10),
		strconv.FormatFloat(bar.Open, 'f', -1, 64),
		strconv.FormatFloat(bar.High, 'f', -1, 64),
		strconv.FormatFloat(bar.Low, 'f', -1, 64),
		strconv.FormatFloat(bar.Close, 'f', -1, 64),
		strconv.FormatFloat(bar.Volume, 'f', -1, 64),
	}
}
