// Copyright 2024 the Agent Stats Exporter authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage is an interface over file/blob storage.
package storage

import (
	"context"
	"fmt"
)

// ContentTypeCSV is the content type of exported reports.
const ContentTypeCSV = "text/csv"

// Blobstore defines the minimum interface for a blob storage system.
type Blobstore interface {
	// CreateObject creates or overwrites an object in the storage system. The
	// object is written in a single call; a failed write leaves no object at
	// the key.
	CreateObject(ctx context.Context, bucket, key string, contents []byte, contentType string) error
}

// BlobstoreFor returns the blob store for the given config.
func BlobstoreFor(ctx context.Context, cfg *Config) (Blobstore, error) {
	switch typ := cfg.Type; typ {
	case BlobstoreTypeAWSS3:
		return NewAWSS3(ctx, cfg)
	case BlobstoreTypeAzureBlobStorage:
		return NewAzureBlobstore(ctx, cfg)
	case BlobstoreTypeGoogleCloudStorage:
		return NewGoogleCloudStorage(ctx)
	case BlobstoreTypeFilesystem:
		return NewFilesystemStorage(ctx)
	case BlobstoreTypeMemory:
		return NewMemory(ctx)
	case BlobstoreTypeNoop:
		return NewNoop(ctx)
	default:
		return nil, fmt.Errorf("unknown blob store type: %v", typ)
	}
}
