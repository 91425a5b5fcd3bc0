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
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/stream"
)

// This file implements the paginated MongoDB protocol. It shares the cursor
// algorithm of the SQL protocol; pages are Find calls with skip and limit.

// MongoSettings configures MongoStrategy.
type MongoSettings struct {
	URI          string                 `mapstructure:"uri"`
	Database     string                 `mapstructure:"database"`
	Collection   string                 `mapstructure:"collection"`
	Filter       map[string]interface{} `mapstructure:"filter"`
	Projection   map[string]interface{} `mapstructure:"projection"`
	SortBy       string                 `mapstructure:"sort_by"`
	Username     string                 `mapstructure:"username"`
	Password     string                 `mapstructure:"password"`
	AuthDatabase string                 `mapstructure:"auth_database"`
	Timeout      time.Duration          `mapstructure:"timeout"`
	FindOptions  FindOptions            `mapstructure:"find_options"`
}

// MongoStrategy reads a collection page by page.
type MongoStrategy struct {
	mu       sync.Mutex
	settings MongoSettings
	opts     *Options
	session  session
}

func NewMongoStrategy(settings MongoSettings, options ...Option) *MongoStrategy {
	return &MongoStrategy{
		settings: settings,
		opts:     buildOptions("mongo", options),
	}
}

// SetConnectionSettings replaces the settings used by the next read.
func (m *MongoStrategy) SetConnectionSettings(settings MongoSettings) error {
	if m.session.busy() {
		return core.ErrReadInProgress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
	return nil
}

func (m *MongoStrategy) Settings() MongoSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// GetData connects and returns a stream of []core.Record pages.
func (m *MongoStrategy) GetData(ctx context.Context) (*stream.Stream, error) {
	settings := m.Settings()
	if settings.Database == "" || settings.Collection == "" {
		return nil, &core.SourceError{Op: "validate", Source: m.opts.Name, Err: fmt.Errorf("database and collection are required")}
	}

	connect := m.opts.Connector
	if connect == nil {
		connect = func(ctx context.Context) (PageSource, error) {
			return openMongo(ctx, settings)
		}
	}
	return paginate(ctx, &m.session, m.opts, connect, settings.FindOptions)
}

// Destroy disconnects the client of the active read.
func (m *MongoStrategy) Destroy() error {
	return m.session.destroy()
}

func openMongo(ctx context.Context, settings MongoSettings) (PageSource, error) {
	clientOpts := options.Client().ApplyURI(settings.URI)
	if settings.Timeout > 0 {
		clientOpts.SetConnectTimeout(settings.Timeout)
	}
	if settings.Username != "" && settings.Password != "" {
		auth := options.Credential{
			Username:   settings.Username,
			Password:   settings.Password,
			AuthSource: settings.AuthDatabase,
		}
		if auth.AuthSource == "" {
			auth.AuthSource = settings.Database
		}
		clientOpts.SetAuth(auth)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.WithMessage(err, "connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.WithMessage(err, "ping")
	}

	filter := bson.M{}
	for k, v := range settings.Filter {
		filter[k] = v
	}
	sortBy := settings.SortBy
	if sortBy == "" {
		sortBy = "_id"
	}

	return &mongoPageSource{
		client:     client,
		collection: client.Database(settings.Database).Collection(settings.Collection),
		filter:     filter,
		projection: settings.Projection,
		sort:       bson.D{{Key: sortBy, Value: 1}},
	}, nil
}

type mongoPageSource struct {
	client     *mongo.Client
	collection *mongo.Collection
	filter     bson.M
	projection map[string]interface{}
	sort       bson.D
}

func (m *mongoPageSource) FetchPage(ctx context.Context, offset, limit int) ([]core.Record, error) {
	findOpts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(m.sort)
	if len(m.projection) > 0 {
		findOpts.SetProjection(m.projection)
	}

	cursor, err := m.collection.Find(ctx, m.filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.WithMessage(err, "decode")
	}

	records := make([]core.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, convertBSONDocument(doc))
	}
	return records, nil
}

func (m *mongoPageSource) Close() error {
	return m.client.Disconnect(context.Background())
}

func convertBSONDocument(doc bson.M) core.Record {
	record := make(core.Record, len(doc))
	for key, value := range doc {
		record[key] = convertBSONValue(value)
	}
	return record
}

// convertBSONValue converts BSON values to appropriate Go types
func convertBSONValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time()
	case primitive.Decimal128:
		return v.String()
	case primitive.Binary:
		return v.Data
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0)
	case primitive.Undefined, primitive.Null:
		return nil
	case bson.M:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			result[k] = convertBSONValue(val)
		}
		return result
	case bson.D:
		result := make(map[string]interface{}, len(v))
		for _, e := range v {
			result[e.Key] = convertBSONValue(e.Value)
		}
		return result
	case bson.A:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertBSONValue(val)
		}
		return result
	default:
		return v
	}
}
