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

// Package sources provides concrete pipeline.DataSource backends. Each
// one treats a single "resource locator" (an object storage endpoint)
// as a stack of append-only, fixed-rate time series: one object holds
// the dense raw samples, a sibling "<key>.status" object holds the
// parallel per-sample status bytes the masking rule consumes.
//
// S3Source builds its client with static credentials; AWSSource does so
// when an access key is configured and otherwise uses the SDK's default
// credential chain. Both read with ranged GETs, so one contiguous object serves arbitrary
// sub-range requests without listing.
package sources

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nexus-data/nexus-core/pkg/binary"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
)

// S3Source is a pipeline.DataSource backed by an S3-compatible bucket
// via github.com/minio/minio-go/v7.
type S3Source struct {
	client *minio.Client
	bucket string
	prefix string

	catalogID    string
	resource     string
	samplePeriod int64
	dataType     binary.DataType
	begin        time.Time
	end          time.Time
	transient    bool
}

// SetContext builds the MinIO client from sourceConfig, mirroring
// cli/client.go's getClient: static credentials, optional TLS, region.
// resourceLocator is the endpoint host:port.
func (s *S3Source) SetContext(_ context.Context, resourceLocator string, _, sourceConfig, _ map[string]any, _ pipeline.Logger) error {
	bucket, _ := sourceConfig["bucket"].(string)
	if bucket == "" {
		return fmt.Errorf("sources: S3Source requires sourceConfig[\"bucket\"]")
	}
	accessKey, _ := sourceConfig["accessKey"].(string)
	secretKey, _ := sourceConfig["secretKey"].(string)
	useTLS, _ := sourceConfig["useTLS"].(bool)
	region, _ := sourceConfig["region"].(string)

	cl, err := minio.New(resourceLocator, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useTLS,
		Region: region,
	})
	if err != nil {
		return fmt.Errorf("sources: S3Source: create client: %w", err)
	}

	s.client = cl
	s.bucket = bucket
	s.prefix, _ = sourceConfig["prefix"].(string)
	s.catalogID, _ = sourceConfig["catalogId"].(string)
	s.resource, _ = sourceConfig["resource"].(string)
	s.samplePeriod = parsePeriod(sourceConfig["samplePeriod"])
	s.dataType = parseDataType(sourceConfig["dataType"])
	s.begin = parseTime(sourceConfig["begin"])
	s.end = parseTime(sourceConfig["end"])
	s.transient, _ = sourceConfig["transient"].(bool)
	return nil
}

// GetCatalogRegistrations claims the single catalog ID this source
// instance was configured for.
func (s *S3Source) GetCatalogRegistrations(_ context.Context, _ string) ([]pipeline.CatalogRegistration, error) {
	if s.catalogID == "" {
		return nil, nil
	}
	return []pipeline.CatalogRegistration{{ID: s.catalogID, Transient: s.transient}}, nil
}

// EnrichCatalog adds this source's single resource and Original
// representation.
func (s *S3Source) EnrichCatalog(_ context.Context, id string) (pipeline.Catalog, error) {
	if s.resource == "" {
		return pipeline.Catalog{ID: id}, nil
	}
	return pipeline.Catalog{
		ID: id,
		Resources: []pipeline.Resource{{
			Name: s.resource,
			Representations: []pipeline.Representation{{
				SamplePeriod: s.samplePeriod,
				Kind:         pipeline.Original,
				DataType:     s.dataType,
			}},
		}},
	}, nil
}

func (s *S3Source) GetTimeRange(context.Context, string) (pipeline.TimeRange, error) {
	return pipeline.TimeRange{Begin: s.begin, End: s.end}, nil
}

// GetAvailability reports 1.0 for buckets fully inside [s.begin, s.end)
// and NaN otherwise; a production backend would probe per-bucket
// object presence, but this source always serves one contiguous object
// per resource.
func (s *S3Source) GetAvailability(_ context.Context, _ string, begin, end time.Time, step time.Duration) ([]float64, error) {
	n := int((end.Sub(begin) + step - 1) / step)
	out := make([]float64, n)
	for i := range out {
		bucketBegin := begin.Add(time.Duration(i) * step)
		bucketEnd := bucketBegin.Add(step)
		if !bucketBegin.Before(s.begin) && !bucketEnd.After(s.end) {
			out[i] = 1
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// Read ranged-GETs the data object and its sibling status object for
// [begin, end) and copies the bytes into dst/status.
func (s *S3Source) Read(ctx context.Context, id string, samplePeriod int64, dataType binary.DataType, begin, end time.Time, dst []byte, status []binary.Status) error {
	key := s.objectKey(id)
	startByte := begin.Sub(s.begin).Nanoseconds() / samplePeriod * int64(dataType.Size())
	length := int64(len(dst))

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(startByte, startByte+length-1); err != nil {
		return fmt.Errorf("sources: S3Source: set range: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return fmt.Errorf("sources: S3Source: get object %s/%s: %w", s.bucket, key, err)
	}
	defer obj.Close()
	if _, err := readFull(obj, dst); err != nil {
		return fmt.Errorf("sources: S3Source: read object body: %w", err)
	}

	statusKey := key + ".status"
	statusStart := begin.Sub(s.begin).Nanoseconds() / samplePeriod
	statusLen := int64(len(status))
	sOpts := minio.GetObjectOptions{}
	if err := sOpts.SetRange(statusStart, statusStart+statusLen-1); err != nil {
		return fmt.Errorf("sources: S3Source: set status range: %w", err)
	}
	sObj, err := s.client.GetObject(ctx, s.bucket, statusKey, sOpts)
	if err != nil {
		// No status object means every sample in range is present.
		for i := range status {
			status[i] = binary.StatusOk
		}
		return nil
	}
	defer sObj.Close()
	raw := make([]byte, len(status))
	if _, err := readFull(sObj, raw); err != nil {
		for i := range status {
			status[i] = binary.StatusOk
		}
		return nil
	}
	for i, b := range raw {
		status[i] = binary.Status(b)
	}
	return nil
}

func (s *S3Source) Close(context.Context) error { return nil }

func (s *S3Source) objectKey(id string) string {
	if s.prefix == "" {
		return id
	}
	return s.prefix + "/" + id
}
