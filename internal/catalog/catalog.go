// Package catalog keeps a Postgres ledger of completed retrievals.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/rtm0/erawp/internal/ecmwf"
	"github.com/rtm0/erawp/internal/mars"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS erai_retrievals (
		id SERIAL PRIMARY KEY,
		dataset VARCHAR(64),
		target TEXT,
		size BIGINT,
		params JSONB,
		retrieved_at TIMESTAMPTZ
	);`

const insertRetrieval = `
	INSERT INTO erai_retrievals (
		dataset,
		target,
		size,
		params,
		retrieved_at
	)
	VALUES ($1,$2,$3,$4,$5);`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Catalog records retrievals.
type Catalog struct {
	db    execer
	close func() error
	now   func() time.Time
}

// Open connects to Postgres and makes sure the ledger table exists.
func Open(ctx context.Context, dsn string) (*Catalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open catalog database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not reach catalog database")
	}
	c, err := newCatalog(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.close = db.Close
	return c, nil
}

func newCatalog(ctx context.Context, db execer) (*Catalog, error) {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, errors.Wrap(err, "could not create catalog table")
	}
	return &Catalog{db: db, now: time.Now}, nil
}

// Record stores one completed retrieval.
func (c *Catalog) Record(ctx context.Context, req mars.Request, res *ecmwf.Result) error {
	params, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "could not encode request")
	}
	var size int64
	if res != nil {
		size = res.Size
	}
	if _, err := c.db.ExecContext(ctx, insertRetrieval,
		req.Dataset(),
		req.Target(),
		size,
		string(params),
		c.now().UTC(),
	); err != nil {
		return errors.Wrapf(err, "could not record retrieval of %q", req.Target())
	}
	return nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}
