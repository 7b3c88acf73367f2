/*
 * Copyright 2024 Nexus Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package filedb

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/nexus-data/nexus-core/pkg/nexuserr"
)

// Attachment is a named, content-addressed blob attached to a catalog
// node (license text, calibration certificate, README), as referenced
// by the catalog attachment endpoints.
type Attachment struct {
	CatalogID        string
	Name             string
	ContentType      string
	SizeBytes        int64
	SHA256           string
	StoredCompressed bool
}

// StoreAttachment compresses body with zstd and writes it under the
// attachment's catalog, returning the recorded Attachment metadata.
//
// StoreAttachment fails with a *nexuserr.Error of KindLocked if another writer or
// deleter currently holds the same attachment path.
func (l Layout) StoreAttachment(catalogID, name, contentType string, body []byte) (Attachment, error) {
	path := l.AttachmentPath(catalogID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Attachment{}, fmt.Errorf("filedb: create attachment directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		// An existing attachment is replaced by removing then recreating;
		// a concurrent writer racing this same sequence surfaces as Locked.
		if rmErr := os.Remove(path); rmErr != nil {
			return Attachment{}, nexuserr.Locked("filedb: attachment %s/%s is locked: %v", catalogID, name, rmErr)
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return Attachment{}, nexuserr.Locked("filedb: attachment %s/%s is locked: %v", catalogID, name, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return Attachment{}, fmt.Errorf("filedb: create zstd writer: %w", err)
	}
	if _, err := enc.Write(body); err != nil {
		enc.Close()
		return Attachment{}, fmt.Errorf("filedb: compress attachment body: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Attachment{}, fmt.Errorf("filedb: finalize attachment body: %w", err)
	}

	sum := sha256.Sum256(body)
	return Attachment{
		CatalogID:        catalogID,
		Name:             name,
		ContentType:      contentType,
		SizeBytes:        int64(len(body)),
		SHA256:           fmt.Sprintf("%x", sum),
		StoredCompressed: true,
	}, nil
}

// LoadAttachment reads and decompresses the body of a previously stored
// attachment.
func (l Layout) LoadAttachment(catalogID, name string) ([]byte, error) {
	path := l.AttachmentPath(catalogID, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nexuserr.NotFound("filedb: attachment %s/%s not found", catalogID, name)
		}
		return nil, fmt.Errorf("filedb: open attachment: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("filedb: create zstd reader: %w", err)
	}
	defer dec.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return nil, fmt.Errorf("filedb: decompress attachment body: %w", err)
	}
	return buf.Bytes(), nil
}

// DeleteAttachment removes a stored attachment body.
func (l Layout) DeleteAttachment(catalogID, name string) error {
	path := l.AttachmentPath(catalogID, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nexuserr.NotFound("filedb: attachment %s/%s not found", catalogID, name)
		}
		return nexuserr.Locked("filedb: attachment %s/%s is locked: %v", catalogID, name, err)
	}
	return nil
}
