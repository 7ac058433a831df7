// Package export writes the post-backfill audit snapshot to a Parquet file
// and optionally ships it to S3, replacing the aws cli sync step of the old
// shell pipeline.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/backfill"
	"github.com/minus34/gnaf-loader/database"
	"github.com/minus34/gnaf-loader/settings"
)

// Run scans the boundary tagged address table and writes it to
// <export dir>/address-audit-<vintage>.parquet. When an S3 bucket is
// configured the file is uploaded after a successful write.
func Run(ctx context.Context, config settings.Config) error {
	pool, err := database.GetDBPool("gnaf", config.Database)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.ExportDirectory, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	filename := fmt.Sprintf("address-audit-%s.parquet", config.Vintage)
	path := filepath.Join(config.ExportDirectory, filename)

	sw, err := NewSnapshotWriter(path)
	if err != nil {
		return err
	}

	summary, err := backfill.AuditScan(ctx, pool, config.GnafSchema(), sw.Write)
	if err != nil {
		sw.Close()
		return err
	}

	written, err := sw.Close()
	if err != nil {
		return err
	}

	log.Infof("Wrote %d audit records to %s (%d without an LGA)", written, path, summary.Unassigned)

	if config.S3Bucket != "" {
		key := fmt.Sprintf("%s/%s/%s", config.S3Prefix, config.Vintage, filename)
		if err := uploadToS3(ctx, config.S3Bucket, key, path); err != nil {
			return err
		}
		log.Infof("Uploaded snapshot to s3://%s/%s", config.S3Bucket, key)
	}

	return nil
}
