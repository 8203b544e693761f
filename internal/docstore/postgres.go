package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio/api/internal/util"
)

// Postgres stores documents in a jsonb table. Changes fan out to in-process
// subscribers directly; with a Redis client attached they are also published
// over pub/sub so other API instances observe them.
type Postgres struct {
	db       *sql.DB
	broker   *broker
	rdb      *redis.Client
	instance string
	cancel   context.CancelFunc
	done     chan struct{}
}

const changeChannel = "portfolio:docstore:changes"

type changeEvent struct {
	Origin     string          `json:"origin"`
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Doc        json.RawMessage `json:"doc"`
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:       db,
		broker:   newBroker(),
		instance: util.NewID("node"),
	}
}

// NewPostgresWithRedis attaches a Redis pub/sub bridge for cross-instance
// change notification.
func NewPostgresWithRedis(db *sql.DB, rdb *redis.Client) *Postgres {
	p := NewPostgres(db)
	p.rdb = rdb

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.listen(ctx)
	return p
}

func (p *Postgres) Get(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND key=$2`,
		collection, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", docKey(collection, key), err)
	}
	return data, nil
}

func (p *Postgres) Set(ctx context.Context, collection, key string, doc json.RawMessage) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()
	`, collection, key, []byte(doc))
	if err != nil {
		return fmt.Errorf("set document %s: %w", docKey(collection, key), err)
	}
	p.notify(collection, key, doc)
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, key string, fields map[string]json.RawMessage) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal field patch: %w", err)
	}

	// jsonb || merges top-level fields in one statement
	var merged []byte
	err = p.db.QueryRowContext(ctx, `
		UPDATE documents SET data = data || $3::jsonb, updated_at=NOW()
		WHERE collection=$1 AND key=$2
		RETURNING data
	`, collection, key, patch).Scan(&merged)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update document %s: %w", docKey(collection, key), err)
	}
	p.notify(collection, key, merged)
	return nil
}

func (p *Postgres) Subscribe(collection, key string, onChange ChangeHandler, onError ErrorHandler) func() {
	unsubscribe := p.broker.subscribe(collection, key, onChange, onError)

	// Deliver the current snapshot off the caller's goroutine.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		doc, err := p.Get(ctx, collection, key)
		if errors.Is(err, ErrNotFound) {
			return
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(doc)
		}
	}()
	return unsubscribe
}

func (p *Postgres) Close() error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

func (p *Postgres) notify(collection, key string, doc json.RawMessage) {
	p.broker.publish(collection, key, doc)

	if p.rdb == nil {
		return
	}
	payload, err := json.Marshal(changeEvent{
		Origin:     p.instance,
		Collection: collection,
		Key:        key,
		Doc:        doc,
	})
	if err != nil {
		log.Printf("docstore: marshal change event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, changeChannel, payload).Err(); err != nil {
		log.Printf("docstore: publish change for %s: %v", docKey(collection, key), err)
	}
}

// listen re-broadcasts changes published by other instances.
func (p *Postgres) listen(ctx context.Context) {
	defer close(p.done)

	pubsub := p.rdb.Subscribe(ctx, changeChannel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var event changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("docstore: bad change event: %v", err)
				continue
			}
			if event.Origin == p.instance {
				continue
			}
			p.broker.publish(event.Collection, event.Key, event.Doc)
		}
	}
}
