package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotStore persists a hypergraph to Postgres and restores it again.
// It works purely through the hypergraph's enumeration and Put methods, so it
// stays an external collaborator of the engine rather than part of it.
type SnapshotStore struct {
	db *pgxpool.Pool
}

func NewSnapshotStore(db *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS atoms (
			handle           BIGINT PRIMARY KEY,
			kind             SMALLINT NOT NULL,
			name             TEXT NOT NULL,
			strength         REAL NOT NULL,
			confidence       REAL NOT NULL,
			sti              SMALLINT NOT NULL,
			lti              SMALLINT NOT NULL,
			vlti             INT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL,
			last_accessed_at TIMESTAMPTZ NOT NULL,
			access_count     BIGINT NOT NULL,
			UNIQUE (kind, name)
		)`)
	if err != nil {
		return fmt.Errorf("create atoms table: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS links (
			handle     BIGINT PRIMARY KEY,
			kind       SMALLINT NOT NULL,
			outgoing   BIGINT[] NOT NULL,
			strength   REAL NOT NULL,
			confidence REAL NOT NULL,
			sti        SMALLINT NOT NULL,
			lti        SMALLINT NOT NULL,
			vlti       INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create links table: %w", err)
	}
	return nil
}

// Save writes a full snapshot of the hypergraph, replacing any previous one.
// The write is transactional: a failed snapshot leaves the old one intact.
func (s *SnapshotStore) Save(ctx context.Context, g *Hypergraph) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE atoms, links`); err != nil {
		return err
	}

	for _, a := range g.Atoms() {
		_, err := tx.Exec(ctx,
			`INSERT INTO atoms (handle, kind, name, strength, confidence, sti, lti, vlti, created_at, last_accessed_at, access_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			int64(a.Handle), int16(a.Kind), a.Name, a.TV.Strength, a.TV.Confidence,
			a.AV.STI, a.AV.LTI, int32(a.AV.VLTI), a.CreatedAt, a.LastAccessedAt, int64(a.AccessCount))
		if err != nil {
			return fmt.Errorf("insert atom %d: %w", a.Handle, err)
		}
	}

	for _, l := range g.Links() {
		outgoing := make([]int64, len(l.Outgoing))
		for i, h := range l.Outgoing {
			outgoing[i] = int64(h)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO links (handle, kind, outgoing, strength, confidence, sti, lti, vlti, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			int64(l.Handle), int16(l.Kind), outgoing, l.TV.Strength, l.TV.Confidence,
			l.AV.STI, l.AV.LTI, int32(l.AV.VLTI), l.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert link %d: %w", l.Handle, err)
		}
	}

	return tx.Commit(ctx)
}

// Load restores the latest snapshot into the given hypergraph.
func (s *SnapshotStore) Load(ctx context.Context, g *Hypergraph) (atoms, links int, err error) {
	rows, err := s.db.Query(ctx,
		`SELECT handle, kind, name, strength, confidence, sti, lti, vlti, created_at, last_accessed_at, access_count
		 FROM atoms ORDER BY handle`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			handle      int64
			kind        int16
			a           domain.Atom
			vlti        int32
			accessCount int64
		)
		if err := rows.Scan(&handle, &kind, &a.Name, &a.TV.Strength, &a.TV.Confidence,
			&a.AV.STI, &a.AV.LTI, &vlti, &a.CreatedAt, &a.LastAccessedAt, &accessCount); err != nil {
			return atoms, links, err
		}
		a.Handle = uint64(handle)
		a.Kind = domain.AtomKind(kind)
		a.AV.VLTI = uint16(vlti)
		a.AccessCount = uint32(accessCount)
		g.PutAtom(a)
		atoms++
	}
	if err := rows.Err(); err != nil {
		return atoms, links, err
	}
	rows.Close()

	linkRows, err := s.db.Query(ctx,
		`SELECT handle, kind, outgoing, strength, confidence, sti, lti, vlti, created_at
		 FROM links ORDER BY handle`)
	if err != nil {
		return atoms, links, err
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var (
			handle   int64
			kind     int16
			outgoing []int64
			l        domain.Link
			vlti     int32
		)
		if err := linkRows.Scan(&handle, &kind, &outgoing, &l.TV.Strength, &l.TV.Confidence,
			&l.AV.STI, &l.AV.LTI, &vlti, &l.CreatedAt); err != nil {
			return atoms, links, err
		}
		l.Handle = uint64(handle)
		l.Kind = domain.LinkKind(kind)
		l.AV.VLTI = uint16(vlti)
		l.Outgoing = make([]uint64, len(outgoing))
		for i, h := range outgoing {
			l.Outgoing[i] = uint64(h)
		}
		g.PutLink(l)
		links++
	}
	return atoms, links, linkRows.Err()
}
