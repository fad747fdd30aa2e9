package eventlog

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = 500

type parquetRow struct {
	ID         string `parquet:"name=id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Height     int64  `parquet:"name=height, type=INT64"`
	Position   int32  `parquet:"name=position, type=INT32"`
	CallID     string `parquet:"name=call_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Method     string `parquet:"name=method, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Signer     string `parquet:"name=signer, type=UTF8, encoding=PLAIN_DICTIONARY"`
	StateRoot  string `parquet:"name=state_root, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Type       string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Topics     string `parquet:"name=topics, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Attributes string `parquet:"name=attributes, type=UTF8, encoding=PLAIN_DICTIONARY"`
	CreatedAt  string `parquet:"name=created_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes every archived event matching filter to path and
// returns the number of rows written. filter.Limit is ignored.
func (s *Store) ExportParquet(ctx context.Context, filter Filter, path string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("eventlog: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("eventlog: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	page := filter
	page.Limit = exportPageSize
	for {
		records, err := s.List(ctx, page)
		if err != nil {
			pw.WriteStop()
			file.Close()
			return written, err
		}
		for _, rec := range records {
			row := &parquetRow{
				ID:         rec.ID.String(),
				Height:     int64(rec.Height),
				Position:   int32(rec.Position),
				CallID:     rec.CallID,
				Method:     rec.Method,
				Signer:     rec.Signer,
				StateRoot:  rec.StateRoot,
				Type:       rec.Type,
				Topics:     rec.Topics,
				Attributes: rec.Attributes,
				CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("eventlog: parquet write: %w", err)
			}
			written++
		}
		if len(records) < exportPageSize {
			break
		}
		last := records[len(records)-1]
		page.after = &cursor{height: last.Height, position: last.Position}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("eventlog: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("eventlog: close parquet file: %w", err)
	}
	return written, nil
}
