package perfmetrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CsvHeader defines the CSV header for transfer logging
const CsvHeader = "Timestamp,Client,Direction,FileName,Bytes,Framing,TimeSec,ThroughputMBps\n"

// DefaultFileName is the CSV file written inside the metrics directory.
const DefaultFileName = "transfers.csv"

// Record is one completed transfer.
type Record struct {
	Time       time.Time
	Client     string
	Direction  string // "upload" or "download"
	FileName   string
	Bytes      int64
	Framing    string
	Duration   time.Duration
	Throughput float64 // MB/s
}

// LogTransferToCSV appends rec to dir/fileName, writing the header when the
// file is new.
func LogTransferToCSV(dir, fileName string, rec Record) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	filePath := filepath.Join(dir, fileName)

	fileExists := true
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		fileExists = false
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	if !fileExists {
		if _, err := file.WriteString(CsvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	timestamp := rec.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	client := rec.Client
	if client == "" {
		client = "fileshare_client"
	}

	writer := csv.NewWriter(file)
	record := []string{
		timestamp.Format(time.RFC3339),
		client,
		rec.Direction,
		rec.FileName,
		strconv.FormatInt(rec.Bytes, 10),
		rec.Framing,
		strconv.FormatFloat(rec.Duration.Seconds(), 'f', 3, 64),
		strconv.FormatFloat(rec.Throughput, 'f', 2, 64),
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}
