package export

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/minus34/gnaf-loader/backfill"
)

// AuditRecord is the Parquet schema of the audit snapshot, one row per
// boundary tagged address. The LGA fields stay optional: the residual
// unassigned addresses are part of the audit output.
type AuditRecord struct {
	GnafPID      string  `parquet:"name=gnaf_pid, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=REQUIRED"`
	LocalityPID  string  `parquet:"name=locality_pid, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=REQUIRED"`
	LocalityName string  `parquet:"name=locality_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=REQUIRED"`
	Postcode     *string `parquet:"name=postcode, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=OPTIONAL"`
	State        string  `parquet:"name=state, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=REQUIRED"`
	LGAPID       *string `parquet:"name=lga_pid, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=OPTIONAL"`
	LGAName      *string `parquet:"name=lga_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=OPTIONAL"`
}

// SnapshotWriter streams audit rows into a local Parquet file.
type SnapshotWriter struct {
	file    source.ParquetFile
	writer  *writer.ParquetWriter
	written int64
}

func NewSnapshotWriter(path string) (*SnapshotWriter, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(AuditRecord), 4)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	return &SnapshotWriter{file: fw, writer: pw}, nil
}

func (w *SnapshotWriter) Write(row backfill.AuditRow) error {
	rec := AuditRecord{
		GnafPID:      row.GnafPID,
		LocalityPID:  row.LocalityPID,
		LocalityName: row.LocalityName,
		Postcode:     row.Postcode,
		State:        row.State,
		LGAPID:       row.LGAPID,
		LGAName:      row.LGAName,
	}

	if err := w.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write snapshot record: %w", err)
	}
	w.written++
	return nil
}

// Close flushes the Parquet footer and returns the record count.
func (w *SnapshotWriter) Close() (int64, error) {
	if err := w.writer.WriteStop(); err != nil {
		w.file.Close()
		return w.written, fmt.Errorf("failed to finalise snapshot: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return w.written, fmt.Errorf("failed to close snapshot file: %w", err)
	}
	return w.written, nil
}
