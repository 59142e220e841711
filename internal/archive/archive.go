//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package archive is the EOD archival export supplement: after each
// backfill run, newly-written EOD rows are serialized to CSV and
// uploaded to an S3-compatible bucket for point-in-time audit and
// reprocessing. It adapts the Massive flat-files client's S3
// construction and key layout (originally a read-only bulk-download
// surface this realtime core otherwise never touches) into a
// write-only path.
package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mya15oct/stock-backend/internal/backfill"
)

// Asset/data-type prefix this archival path writes under, matching the
// flat-files client's own key layout for daily aggregates.
const (
	assetUSStocks  = "us_stocks_sip"
	dataTypeDayAgg = "day_aggs_v1"
)

// Uploader uploads EOD rows to S3 as append-friendly per-symbol CSV
// objects, one per (date, symbol).
type Uploader struct {
	client *s3.Client
	bucket string
}

// NewUploader builds an Uploader configured with static credentials
// and path-style addressing, the same S3 client shape the flat-files
// reader uses.
func NewUploader(accessKey, secretKey, endpoint, bucket string) *Uploader {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})

	return &Uploader{client: client, bucket: bucket}
}

// ArchiveEOD serializes one symbol's EOD bar to a single-row CSV
// object and uploads it. Key layout follows the flat-files client's
// "{assetClass}/{dataType}/{year}/{month}/{date}/{symbol}.csv" pattern.
func (u *Uploader) ArchiveEOD(ctx context.Context, date time.Time, symbol string, bar backfill.VendorBar) error {
	key := buildKey(date, symbol)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"symbol", "date", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("archive: write csv header: %w", err)
	}
	if err := w.Write([]string{
		symbol,
		date.Format("2006-01-02"),
		strconv.FormatFloat(bar.Open, 'f', -1, 64),
		strconv.FormatFloat(bar.High, 'f', -1, 64),
		strconv.FormatFloat(bar.Low, 'f', -1, 64),
		strconv.FormatFloat(bar.Close, 'f', -1, 64),
		strconv.FormatFloat(bar.Volume, 'f', -1, 64),
	}); err != nil {
		return fmt.Errorf("archive: write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("archive: flush csv: %w", err)
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("archive: upload %s: %w", key, err)
	}

	return nil
}

func buildKey(date time.Time, symbol string) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%s/%s.csv",
		assetUSStocks, dataTypeDayAgg, date.Year(), date.Month(), date.Format("2006-01-02"), symbol)
}
