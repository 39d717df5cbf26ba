package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

const (
	datasetPrefix = "datasets"
	stagingPrefix = "staging"
	contentType   = "application/json"
)

// DatasetStore keeps dataset artifacts as JSON documents in object storage.
// Writes go through a staging key and are copied to the final key only once
// the upload completed, so a failed write never leaves a partial artifact
// under the dataset's name.
type DatasetStore struct {
	client *Client
	logger logging.Logger
}

// NewDatasetStore builds a store on the shared client.
func NewDatasetStore(client *Client, logger logging.Logger) *DatasetStore {
	return &DatasetStore{client: client, logger: logger}
}

var _ dataset.Store = (*DatasetStore)(nil)

func datasetKey(name string) string { return path.Join(datasetPrefix, name+".json") }
func stagingKey(name string) string { return path.Join(stagingPrefix, name+".json") }

// Put uploads the dataset artifact.
func (s *DatasetStore) Put(ctx context.Context, d *dataset.Dataset) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode dataset")
	}

	api := s.client.API()
	bucket := s.client.Bucket()
	staging := stagingKey(d.Name)

	_, err = api.PutObject(ctx, bucket, staging, bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload dataset")
	}

	_, err = api.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: bucket, Object: datasetKey(d.Name)},
		minio.CopySrcOptions{Bucket: bucket, Object: staging},
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to publish dataset")
	}

	if err := api.RemoveObject(ctx, bucket, staging, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Warn("failed to remove staging object",
			logging.String("dataset", d.Name),
			logging.Error(err),
		)
	}

	s.logger.Info("dataset stored",
		logging.String("dataset", d.Name),
		logging.Int("samples", len(d.Samples)),
		logging.Int("bytes", len(raw)),
	)
	return nil
}

// Get loads a dataset artifact by name.
func (s *DatasetStore) Get(ctx context.Context, name string) (*dataset.Dataset, error) {
	obj, err := s.client.API().GetObject(ctx, s.client.Bucket(), datasetKey(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to open dataset object")
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, errors.Newf(errors.ErrCodeDatasetNotFound, "dataset %s not found", name)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read dataset object")
	}

	var d dataset.Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatasetCorrupt, "failed to decode dataset artifact")
	}
	return &d, nil
}

// Exists reports whether a dataset artifact is stored under name.
func (s *DatasetStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.API().StatObject(ctx, s.client.Bucket(), datasetKey(name), minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat dataset object")
	}
	return true, nil
}

// Delete removes a dataset artifact.
func (s *DatasetStore) Delete(ctx context.Context, name string) error {
	if err := s.client.API().RemoveObject(ctx, s.client.Bucket(), datasetKey(name), minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to delete dataset object")
	}
	return nil
}
