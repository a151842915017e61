package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/types/gallery"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// photoDocument mirrors the galleryphotos collection written by the
// original Node backend, so both can share one database.
type photoDocument struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	Filename   string        `bson:"filename"`
	Album      *string       `bson:"album"`
	Caption    string        `bson:"caption"`
	Validated  bool          `bson:"validated"`
	UploadedAt time.Time     `bson:"uploadedAt"`
}

func (d photoDocument) record() gallery.PhotoRecord {
	return gallery.PhotoRecord{
		ID:         d.ID.Hex(),
		Filename:   d.Filename,
		Album:      d.Album,
		Caption:    d.Caption,
		Validated:  d.Validated,
		UploadedAt: d.UploadedAt,
	}
}

type Mongo struct {
	client *mongo.Client
	photos *mongo.Collection
	now    func() time.Time
}

func NewMongo(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	slog.Info("Connected to MongoDB", slog.String("database", cfg.Mongo.Database))

	m := &Mongo{
		client: client,
		photos: client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection),
		now:    time.Now,
	}

	if err := m.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.photos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "album", Value: 1}, {Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "validated", Value: 1}, {Key: "uploadedAt", Value: -1}},
		},
	})
	return err
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreatePhoto(ctx context.Context, photo gallery.NewPhoto) (gallery.PhotoRecord, error) {
	doc := photoDocument{
		Filename:   photo.Filename,
		Album:      photo.Album,
		Caption:    photo.Caption,
		UploadedAt: m.now().UTC(),
	}

	res, err := m.photos.InsertOne(ctx, doc)
	if err != nil {
		return gallery.PhotoRecord{}, err
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return gallery.PhotoRecord{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	doc.ID = oid

	return doc.record(), nil
}

func (m *Mongo) CreatePhotos(ctx context.Context, photos []gallery.NewPhoto) (int, error) {
	if len(photos) == 0 {
		return 0, nil
	}

	now := m.now().UTC()
	docs := make([]interface{}, 0, len(photos))
	for _, photo := range photos {
		docs = append(docs, photoDocument{
			Filename:   photo.Filename,
			Album:      photo.Album,
			Caption:    photo.Caption,
			UploadedAt: now,
		})
	}

	res, err := m.photos.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}

	return len(res.InsertedIDs), nil
}

func (m *Mongo) ListPhotos(ctx context.Context, filter gallery.PhotoFilter) ([]gallery.PhotoRecord, error) {
	query := bson.M{}
	if filter.Validated != nil {
		query["validated"] = *filter.Validated
	}
	if filter.Album != nil {
		query["album"] = *filter.Album
	}

	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := m.photos.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []photoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	photos := make([]gallery.PhotoRecord, 0, len(docs))
	for _, d := range docs {
		photos = append(photos, d.record())
	}

	return photos, nil
}

func (m *Mongo) ListAlbums(ctx context.Context) ([]gallery.AlbumGroup, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "album", Value: bson.D{{Key: "$ne", Value: nil}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "uploadedAt", Value: 1}, {Key: "filename", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$album"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "first", Value: bson.D{{Key: "$first", Value: "$filename"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := m.photos.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Name  string `bson:"_id"`
		Count int    `bson:"count"`
		First string `bson:"first"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	albums := make([]gallery.AlbumGroup, 0, len(rows))
	for _, r := range rows {
		albums = append(albums, gallery.AlbumGroup{Name: r.Name, Count: r.Count, CoverFilename: r.First})
	}

	return albums, nil
}

func (m *Mongo) DeletePhoto(ctx context.Context, filename string, album *string) (int64, error) {
	// a nil album matches documents whose album is null or missing
	res, err := m.photos.DeleteOne(ctx, bson.M{"filename": filename, "album": album})
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}

func (m *Mongo) ValidatePhoto(ctx context.Context, id string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := m.photos.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"validated": true}})
	if err != nil {
		return false, err
	}

	return res.MatchedCount > 0, nil
}

func (m *Mongo) ValidatePhotos(ctx context.Context, ids []string) (int64, error) {
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return 0, nil
	}

	res, err := m.photos.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}},
		bson.M{"$set": bson.M{"validated": true}},
	)
	if err != nil {
		return 0, err
	}

	return res.MatchedCount, nil
}

func (m *Mongo) DeleteUnvalidated(ctx context.Context) (int64, error) {
	res, err := m.photos.DeleteMany(ctx, bson.M{"validated": false})
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}

func (m *Mongo) DeleteAlbum(ctx context.Context, album string) (int64, error) {
	res, err := m.photos.DeleteMany(ctx, bson.M{"album": album})
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}
