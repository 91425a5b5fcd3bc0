//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

package protocols

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// S3API is the subset of the S3 client used by S3Strategy.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Settings configures S3Strategy.
type S3Settings struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Suffix          string `mapstructure:"suffix"`
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// S3Strategy reads every object under a bucket prefix.
type S3Strategy struct {
	mu       sync.Mutex
	settings S3Settings
	opts     *Options
	session  session
}

func NewS3Strategy(settings S3Settings, options ...Option) *S3Strategy {
	return &S3Strategy{
		settings: settings,
		opts:     buildOptions("s3", options),
	}
}

// SetConnectionSettings replaces the settings used by the next read.
func (s *S3Strategy) SetConnectionSettings(settings S3Settings) error {
	if s.session.busy() {
		return core.ErrReadInProgress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *S3Strategy) Settings() S3Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// GetData lists the matching objects and returns a stream of object bodies.
func (s *S3Strategy) GetData(ctx context.Context) (*stream.Stream, error) {
	settings := s.Settings()
	if settings.Bucket == "" {
		return nil, &core.SourceError{Op: "validate", Source: s.opts.Name, Err: fmt.Errorf("bucket is required")}
	}

	client := s.opts.S3Client
	if client == nil {
		cfg, err := loadAWSConfig(ctx, settings)
		if err != nil {
			return nil, &core.SourceError{Op: "aws_config", Source: s.opts.Name, Err: err}
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if settings.Endpoint != "" {
				o.BaseEndpoint = aws.String(settings.Endpoint)
			}
			o.UsePathStyle = settings.PathStyle
		})
	}

	keys, err := listObjects(ctx, client, settings)
	if err != nil {
		return nil, &core.SourceError{Op: "list_objects", Source: s.opts.Name, Err: err}
	}

	handle, err := s.session.begin()
	if err != nil {
		return nil, err
	}
	feed := &feedReader{
		name:   s.opts.Name,
		keys:   keys,
		handle: handle,
		logger: s.opts.Logger,
		fetch: func(ctx context.Context, key string) ([]byte, error) {
			out, err := client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(settings.Bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, err
			}
			defer out.Body.Close()
			return io.ReadAll(out.Body)
		},
	}
	return s.session.open(handle, s.opts, feed.read, nil), nil
}

// Destroy aborts the active read.
func (s *S3Strategy) Destroy() error {
	return s.session.destroy()
}

func loadAWSConfig(ctx context.Context, settings S3Settings) (aws.Config, error) {
	var configOpts []func(*config.LoadOptions) error
	if settings.Region != "" {
		configOpts = append(configOpts, config.WithRegion(settings.Region))
	}
	if settings.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(settings.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if settings.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				settings.AccessKeyID,
				settings.SecretAccessKey,
				settings.SessionToken,
			),
		)
	}
	return cfg, nil
}

func listObjects(ctx context.Context, client s3.ListObjectsV2APIClient, settings S3Settings) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(settings.Bucket)}
	if settings.Prefix != "" {
		input.Prefix = aws.String(settings.Prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if settings.Suffix != "" && !strings.HasSuffix(key, settings.Suffix) {
				continue
			}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
