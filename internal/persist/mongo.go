package persist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pageeditor/internal/domain"
)

const defaultCollection = "editor_configs"

// mongoRecord is how a document is stored: the key is the _id and the
// serialized document is kept verbatim.
type mongoRecord struct {
	Key       string    `bson:"_id"`
	Config    string    `bson:"config_json"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// mongoStore implements domain.ConfigStore on a MongoDB collection.
type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func newMongoStore(ctx context.Context, cfg domain.BackendConfig, password string) (*mongoStore, error) {
	uri, dbName := buildMongoURI(cfg, password)

	// Mask password in URI for logging
	logURI := uri
	if password != "" && strings.Contains(logURI, password) {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Printf("[MONGO] Connecting with URI: %s", logURI)
	log.Printf("[MONGO] Database: %s", dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		log.Printf("[MONGO] Connect failed: %v", err)
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}
	return &mongoStore{
		client: client,
		coll:   client.Database(dbName).Collection(collection),
	}, nil
}

// buildMongoURI returns the connection URI and database name for cfg. A host
// that is already a mongodb:// or mongodb+srv:// URI is used as is, with
// password placeholders filled in.
func buildMongoURI(cfg domain.BackendConfig, password string) (string, string) {
	var uri string
	if strings.HasPrefix(cfg.Host, "mongodb+srv://") || strings.HasPrefix(cfg.Host, "mongodb://") {
		uri = cfg.Host
		// Replace <password> placeholder commonly found in Atlas connection strings
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
	} else {
		port := cfg.Port
		if port == 0 {
			port = 27017
		}
		if cfg.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.Username, password, cfg.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", cfg.Host, port)
		}
		if len(cfg.Extra) > 0 {
			params := make([]string, 0, len(cfg.Extra))
			for k, v := range cfg.Extra {
				params = append(params, k+"="+v)
			}
			sort.Strings(params)
			uri += "/?" + strings.Join(params, "&")
		}
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	if dbName == "" {
		dbName = "pageeditor"
	}
	return uri, dbName
}

// databaseFromURI extracts the path segment of user:pass@host/DB_NAME?params.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return ""
	}
	path := rest[slash+1:]
	if q := strings.Index(path, "?"); q != -1 {
		path = path[:q]
	}
	return path
}

func (m *mongoStore) LoadConfig(ctx context.Context, key string) ([]byte, error) {
	var rec mongoRecord
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: load %s: %w", key, err)
	}
	return []byte(rec.Config), nil
}

func (m *mongoStore) SaveConfig(ctx context.Context, key string, doc []byte) error {
	rec := mongoRecord{Key: key, Config: string(doc), UpdatedAt: time.Now().UTC()}
	_, err := m.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		rec,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo: save %s: %w", key, err)
	}
	return nil
}

func (m *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
