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

package storage

import (
	"context"
	"testing"
)

func TestBlobstoreFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		typ  BlobstoreType
		want Blobstore
		err  bool
	}{
		{name: "filesystem", typ: BlobstoreTypeFilesystem, want: &FilesystemStorage{}},
		{name: "memory", typ: BlobstoreTypeMemory, want: &Memory{}},
		{name: "noop", typ: BlobstoreTypeNoop, want: &Noop{}},
		{name: "aws_s3", typ: BlobstoreTypeAWSS3, want: &AWSS3{}},
		{name: "azure_missing_account", typ: BlobstoreTypeAzureBlobStorage, err: true},
		{name: "unknown", typ: BlobstoreType("FLOPPY"), err: true},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			cfg := &Config{Type: tc.typ, AWSRegion: "us-east-1"}

			got, err := BlobstoreFor(ctx, cfg)
			if (err != nil) != tc.err {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.err {
				return
			}

			switch tc.want.(type) {
			case *FilesystemStorage:
				if _, ok := got.(*FilesystemStorage); !ok {
					t.Errorf("expected %T to be *FilesystemStorage", got)
				}
			case *Memory:
				if _, ok := got.(*Memory); !ok {
					t.Errorf("expected %T to be *Memory", got)
				}
			case *Noop:
				if _, ok := got.(*Noop); !ok {
					t.Errorf("expected %T to be *Noop", got)
				}
			case *AWSS3:
				if _, ok := got.(*AWSS3); !ok {
					t.Errorf("expected %T to be *AWSS3", got)
				}
			}
		})
	}
}
