package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"macromap/services"
	"macromap/utils"
)

var (
	exportBucket string
	exportKey    string
	exportStdout bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of every stored restaurant to S3",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportBucket, "bucket", "", "S3 bucket (default S3_BUCKET)")
	exportCmd.Flags().StringVar(&exportKey, "key", "", "Object key (default snapshots/restaurants-<ts>.json)")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Print the snapshot instead of uploading")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := snapshot(ctx, a.store)
	if err != nil {
		return err
	}
	if exportStdout {
		_, err := cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}

	bucket := exportBucket
	if bucket == "" {
		bucket = a.cfg.S3Bucket
	}
	if bucket == "" {
		return errors.New("no bucket: pass --bucket or set S3_BUCKET")
	}
	key := exportKey
	if key == "" {
		key = utils.SnapshotKey("", time.Now())
	}

	client, err := utils.NewS3Client(ctx, a.cfg.AWSRegion)
	if err != nil {
		return err
	}
	loc, err := utils.UploadSnapshot(ctx, client, bucket, key, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), loc)
	return nil
}

func snapshot(ctx context.Context, store services.RestaurantStore) ([]byte, error) {
	all, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load restaurants: %w", err)
	}
	return json.MarshalIndent(all, "", "  ")
}
