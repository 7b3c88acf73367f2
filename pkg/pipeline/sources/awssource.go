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

package sources

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nexus-data/nexus-core/pkg/binary"
	"github.com/nexus-data/nexus-core/pkg/pipeline"
)

// AWSSource is a pipeline.DataSource backed by the AWS SDK v2 S3
// client. It serves the same object layout as S3Source (a data object
// plus a sibling "<key>.status" object per resource), so a pipeline can
// stack both backends against different endpoints.
type AWSSource struct {
	client *s3.Client
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

// SetContext builds the SDK client from sourceConfig. resourceLocator,
// when non-empty, overrides the endpoint (path-style, for S3-compatible
// deployments); otherwise the SDK's own resolution applies.
func (s *AWSSource) SetContext(ctx context.Context, resourceLocator string, _, sourceConfig, _ map[string]any, _ pipeline.Logger) error {
	bucket, _ := sourceConfig["bucket"].(string)
	if bucket == "" {
		return fmt.Errorf("sources: AWSSource requires sourceConfig[\"bucket\"]")
	}
	accessKey, _ := sourceConfig["accessKey"].(string)
	secretKey, _ := sourceConfig["secretKey"].(string)
	region, _ := sourceConfig["region"].(string)
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("sources: AWSSource: load config: %w", err)
	}

	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if resourceLocator != "" {
			scheme := "https://"
			if useTLS, ok := sourceConfig["useTLS"].(bool); ok && !useTLS {
				scheme = "http://"
			}
			o.BaseEndpoint = aws.String(scheme + resourceLocator)
			o.UsePathStyle = true
		}
	})

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

func (s *AWSSource) GetCatalogRegistrations(_ context.Context, _ string) ([]pipeline.CatalogRegistration, error) {
	if s.catalogID == "" {
		return nil, nil
	}
	return []pipeline.CatalogRegistration{{ID: s.catalogID, Transient: s.transient}}, nil
}

func (s *AWSSource) EnrichCatalog(_ context.Context, id string) (pipeline.Catalog, error) {
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

func (s *AWSSource) GetTimeRange(context.Context, string) (pipeline.TimeRange, error) {
	return pipeline.TimeRange{Begin: s.begin, End: s.end}, nil
}

func (s *AWSSource) GetAvailability(_ context.Context, _ string, begin, end time.Time, step time.Duration) ([]float64, error) {
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

// Read ranged-GETs the data object and its status sibling.
func (s *AWSSource) Read(ctx context.Context, id string, samplePeriod int64, dataType binary.DataType, begin, end time.Time, dst []byte, status []binary.Status) error {
	key := s.objectKey(id)
	startByte := begin.Sub(s.begin).Nanoseconds() / samplePeriod * int64(dataType.Size())
	endByte := startByte + int64(len(dst)) - 1

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", startByte, endByte)),
	})
	if err != nil {
		return fmt.Errorf("sources: AWSSource: get object %s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	if _, err := readFull(out.Body, dst); err != nil {
		return fmt.Errorf("sources: AWSSource: read object body: %w", err)
	}

	statusStart := begin.Sub(s.begin).Nanoseconds() / samplePeriod
	statusEnd := statusStart + int64(len(status)) - 1
	sOut, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key + ".status"),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", statusStart, statusEnd)),
	})
	if err != nil {
		// No status object means every sample in range is present.
		for i := range status {
			status[i] = binary.StatusOk
		}
		return nil
	}
	defer sOut.Body.Close()
	raw := make([]byte, len(status))
	if _, err := readFull(sOut.Body, raw); err != nil {
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

func (s *AWSSource) Close(context.Context) error { return nil }

func (s *AWSSource) objectKey(id string) string {
	if s.prefix == "" {
		return id
	}
	return s.prefix + "/" + id
}
