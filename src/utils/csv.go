package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/options-screener/src/eventmodels"
)

// watchlist import lines written for the trading workstation: DES,SYMBOL,STK,SMART/AMEX,,,,
const desPrefix = "DES,"

// ReadWatchlist parses either the headed earnings csv or the DES import format.
// Rows with an invalid symbol are kept so that the screener reports them.
func ReadWatchlist(r io.Reader) (eventmodels.Watchlist, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadWatchlist: failed to read: %w", err)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries eventmodels.Watchlist
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(desPrefix)) {
		entries, err = readDESWatchlist(data)
	} else {
		err = gocsv.UnmarshalBytes(data, &entries)
	}

	if err != nil {
		return nil, fmt.Errorf("ReadWatchlist: %w", err)
	}

	for i, e := range entries {
		if err := e.Validate(); err != nil {
			log.Warnf("ReadWatchlist: row %d: %v", i+1, err)
		}
	}

	return entries, nil
}

func readDESWatchlist(data []byte) (eventmodels.Watchlist, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse DES watchlist: %w", err)
	}

	var entries eventmodels.Watchlist
	for _, rec := range records {
		if len(rec) < 2 || strings.TrimSpace(rec[0]) != "DES" {
			continue
		}

		entries = append(entries, &eventmodels.WatchlistEntry{Symbol: strings.TrimSpace(rec[1])})
	}

	return entries, nil
}

func ReadWatchlistFile(path string) (eventmodels.Watchlist, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadWatchlistFile: %w", err)
	}

	defer file.Close()

	watchlist, err := ReadWatchlist(file)
	if err != nil {
		return nil, fmt.Errorf("ReadWatchlistFile: %s: %w", path, err)
	}

	log.Infof("read %d symbols from %s", len(watchlist), path)
	return watchlist, nil
}

// WriteDESWatchlist writes one DES import line per distinct symbol.
func WriteDESWatchlist(w io.Writer, watchlist eventmodels.Watchlist) error {
	writer := csv.NewWriter(w)
	for _, symbol := range watchlist.Symbols() {
		if err := writer.Write([]string{"DES", symbol.String(), "STK", "SMART/AMEX", "", "", "", ""}); err != nil {
			return fmt.Errorf("WriteDESWatchlist: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func WriteScreeningResults(w io.Writer, results []*eventmodels.ScreeningResult) error {
	rows := make([]*eventmodels.ScreeningResultCSV, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.ToCSV())
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("WriteScreeningResults: error marshalling results: %w", err)
	}

	return nil
}

func createExportFile(outFile string) (*os.File, error) {
	if dir := filepath.Dir(outFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating %s: %w", dir, err)
		}
	}

	file, err := os.Create(outFile)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", outFile, err)
	}

	return file, nil
}

// ExportDESWatchlist writes the watchlist as a workstation import file.
func ExportDESWatchlist(outFile string, watchlist eventmodels.Watchlist) error {
	file, err := createExportFile(outFile)
	if err != nil {
		return fmt.Errorf("ExportDESWatchlist: %w", err)
	}

	defer file.Close()

	if err := WriteDESWatchlist(file, watchlist); err != nil {
		return err
	}

	log.Infof("Exported %d symbols to %s", len(watchlist.Symbols()), outFile)
	return nil
}

func ExportScreeningResults(outFile string, results []*eventmodels.ScreeningResult) error {
	file, err := createExportFile(outFile)
	if err != nil {
		return fmt.Errorf("ExportScreeningResults: %w", err)
	}

	defer file.Close()

	if err := WriteScreeningResults(file, results); err != nil {
		return err
	}

	log.Infof("Exported %d screening results to %s", len(results), outFile)
	return nil
}
