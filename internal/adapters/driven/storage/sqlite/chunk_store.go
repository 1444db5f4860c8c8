package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// Replace deletes the source's chunks and inserts the given ones in one transaction.
func (s *chunkStore) Replace(ctx context.Context, sourceID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, source_id, owner_id, client_id, idx, text, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		now := s.store.now()
		for i := range chunks {
			c := &chunks[i]
			if c.SourceID != "" && c.SourceID != sourceID {
				return fmt.Errorf("%w: chunk %s belongs to source %s", domain.ErrInvalidInput, c.ID, c.SourceID)
			}
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			if _, err := stmt.ExecContext(ctx, c.ID, sourceID, c.OwnerID, nullString(c.ClientID),
				c.Index, c.Text, embeddingValue(c.Embedding), createdAt); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// ListBySource returns the chunks of a source ordered by index.
func (s *chunkStore) ListBySource(ctx context.Context, sourceID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_id, owner_id, client_id, idx, text, embedding, created_at
		FROM chunks WHERE source_id = ? ORDER BY idx
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// CountBySource returns the number of chunks and embedded chunks of a source.
func (s *chunkStore) CountBySource(ctx context.Context, sourceID string) (total, embedded int, err error) {
	err = s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN embedding IS NOT NULL AND length(embedding) > 0 THEN 1 ELSE 0 END), 0)
		FROM chunks WHERE source_id = ?
	`, sourceID).Scan(&total, &embedded)
	if err != nil {
		return 0, 0, fmt.Errorf("counting chunks: %w", err)
	}
	return total, embedded, nil
}

// SemanticCandidates returns embedded chunks of completed, included sources in scope.
func (s *chunkStore) SemanticCandidates(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error) {
	where, args := scopeClause("s", scope)
	args = append(args, string(domain.StatusCompleted))

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.source_id, c.owner_id, c.client_id, c.idx, c.text, c.embedding, c.created_at,
			s.name, s.kind, s.origin, s.updated_at
		FROM chunks c
		JOIN sources s ON s.id = c.source_id
		WHERE `+where+`
			AND s.status = ?
			AND s.exclude_from_rag = 0
			AND c.embedding IS NOT NULL AND length(c.embedding) > 0
		ORDER BY s.updated_at DESC, c.source_id, c.idx
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			c         domain.Candidate
			clientID  sql.NullString
			blob      []byte
			kind      string
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&c.Chunk.ID, &c.Chunk.SourceID, &c.Chunk.OwnerID, &clientID, &c.Chunk.Index,
			&c.Chunk.Text, &blob, &c.Chunk.CreatedAt, &c.SourceName, &kind, &c.Origin, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Chunk.ClientID = stringPtr(clientID)
		c.Chunk.Embedding = bytesToFloat32Slice(blob)
		c.Kind = domain.SourceKind(kind)
		if updatedAt.Valid {
			c.SourceUpdatedAt = updatedAt.Time
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return candidates, nil
}

// LexicalMatches returns completed, included sources in scope whose chunk
// text, content or name contains query, newest first. SQLite lower() folds
// ASCII only, so queries with other letters are matched in Go.
func (s *chunkStore) LexicalMatches(
	ctx context.Context, scope domain.Scope, query string, exclude []string, limit int,
) ([]domain.LexicalMatch, error) {
	if query == "" {
		return nil, nil
	}
	if !isASCII(query) {
		return s.lexicalMatchesFold(ctx, scope, query, exclude, limit)
	}

	where, scopeArgs := lexicalScope(scope, exclude)
	args := []any{query}
	args = append(args, scopeArgs...)
	args = append(args, string(domain.StatusCompleted), query, query, query)

	stmt := `
		SELECT s.id, s.name, s.kind, s.origin, s.client_id, s.content, s.updated_at,
			(SELECT c.id FROM chunks c
			 WHERE c.source_id = s.id AND instr(lower(c.text), lower(?)) > 0
			 ORDER BY c.idx LIMIT 1) AS chunk_id
		FROM sources s
		WHERE ` + where + `
			AND s.status = ?
			AND s.exclude_from_rag = 0
			AND (EXISTS (SELECT 1 FROM chunks m
					WHERE m.source_id = s.id AND instr(lower(m.text), lower(?)) > 0)
				OR instr(lower(COALESCE(s.content, '')), lower(?)) > 0
				OR instr(lower(s.name), lower(?)) > 0)
		ORDER BY s.updated_at DESC, s.id`
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lexical matches: %w", err)
	}

	type hit struct {
		match   domain.LexicalMatch
		content sql.NullString
		chunkID sql.NullString
	}
	var hits []hit
	for rows.Next() {
		var (
			h         hit
			kind      string
			clientID  sql.NullString
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&h.match.SourceID, &h.match.SourceName, &kind, &h.match.Origin,
			&clientID, &h.content, &updatedAt, &h.chunkID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning lexical match: %w", err)
		}
		h.match.Kind = domain.SourceKind(kind)
		h.match.ClientID = stringPtr(clientID)
		if updatedAt.Valid {
			h.match.UpdatedAt = updatedAt.Time
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating lexical matches: %w", err)
	}
	rows.Close()

	// Chunk text is loaded after the cursor closes; the store holds one connection.
	matches := make([]domain.LexicalMatch, 0, len(hits))
	for _, h := range hits {
		m := h.match
		if h.chunkID.Valid {
			err := s.store.db.QueryRowContext(ctx,
				"SELECT id, idx, text FROM chunks WHERE id = ?", h.chunkID.String,
			).Scan(&m.ChunkID, &m.ChunkIndex, &m.Text)
			if err != nil {
				return nil, fmt.Errorf("loading matched chunk: %w", err)
			}
		} else if h.content.Valid && containsFold(h.content.String, query) {
			m.Text = h.content.String
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// lexicalScope builds the owner, client, kind and exclusion filter on sources.
func lexicalScope(scope domain.Scope, exclude []string) (string, []any) {
	where, args := scopeClause("s", scope)
	if len(exclude) > 0 {
		where += " AND s.id NOT IN (" + placeholders(len(exclude)) + ")"
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	return where, args
}

// lexicalMatchesFold scans eligible sources and folds case with the Go
// runtime, matching the in-memory store.
func (s *chunkStore) lexicalMatchesFold(
	ctx context.Context, scope domain.Scope, query string, exclude []string, limit int,
) ([]domain.LexicalMatch, error) {
	where, args := lexicalScope(scope, exclude)
	args = append(args, string(domain.StatusCompleted))

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.kind, s.origin, s.client_id, s.content, s.updated_at
		FROM sources s
		WHERE `+where+`
			AND s.status = ?
			AND s.exclude_from_rag = 0
		ORDER BY s.updated_at DESC, s.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lexical candidates: %w", err)
	}

	type candidate struct {
		match   domain.LexicalMatch
		content string
	}
	var candidates []candidate
	for rows.Next() {
		var (
			c         candidate
			kind      string
			clientID  sql.NullString
			content   sql.NullString
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&c.match.SourceID, &c.match.SourceName, &kind, &c.match.Origin,
			&clientID, &content, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning lexical candidate: %w", err)
		}
		c.match.Kind = domain.SourceKind(kind)
		c.match.ClientID = stringPtr(clientID)
		c.content = content.String
		if updatedAt.Valid {
			c.match.UpdatedAt = updatedAt.Time
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating lexical candidates: %w", err)
	}
	rows.Close()

	var matches []domain.LexicalMatch
	for _, c := range candidates {
		m := c.match
		matched, err := s.firstMatchingChunk(ctx, &m, query)
		if err != nil {
			return nil, err
		}
		if !matched && containsFold(c.content, query) {
			m.Text = c.content
			matched = true
		}
		if !matched && !containsFold(m.SourceName, query) {
			continue
		}
		matches = append(matches, m)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

// firstMatchingChunk fills m with the lowest-index chunk containing query.
func (s *chunkStore) firstMatchingChunk(ctx context.Context, m *domain.LexicalMatch, query string) (bool, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, idx, text FROM chunks WHERE source_id = ? ORDER BY idx", m.SourceID)
	if err != nil {
		return false, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			idx  int
			text string
		)
		if err := rows.Scan(&id, &idx, &text); err != nil {
			return false, fmt.Errorf("scanning chunk: %w", err)
		}
		if containsFold(text, query) {
			m.ChunkID, m.ChunkIndex, m.Text = id, idx, text
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterating chunks: %w", err)
	}
	return false, nil
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var clientID sql.NullString
	var blob []byte

	if err := row.Scan(&chunk.ID, &chunk.SourceID, &chunk.OwnerID, &clientID, &chunk.Index,
		&chunk.Text, &blob, &chunk.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	chunk.ClientID = stringPtr(clientID)
	chunk.Embedding = bytesToFloat32Slice(blob)
	return &chunk, nil
}

// ==================== Insight Store ====================

// insightStore implements driven.InsightStore.
type insightStore struct {
	store *Store
}

var _ driven.InsightStore = (*insightStore)(nil)

// Replace swaps all insights of a source.
func (s *insightStore) Replace(ctx context.Context, sourceID string, insights []domain.Insight) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM insights WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting insights: %w", err)
	}

	now := s.store.now()
	for _, in := range insights {
		createdAt := in.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO insights (id, source_id, owner_id, client_id, idx, text, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, in.ID, sourceID, in.OwnerID, nullString(in.ClientID), in.Index, in.Text, createdAt); err != nil {
			return fmt.Errorf("inserting insight %d: %w", in.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insights: %w", err)
	}
	return nil
}

// ListBySource returns the insights of a source ordered by index.
func (s *insightStore) ListBySource(ctx context.Context, sourceID string) ([]domain.Insight, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_id, owner_id, client_id, idx, text, created_at
		FROM insights WHERE source_id = ? ORDER BY idx
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying insights: %w", err)
	}
	defer rows.Close()

	var insights []domain.Insight //nolint:prealloc // size unknown from query
	for rows.Next() {
		var in domain.Insight
		var clientID sql.NullString
		if err := rows.Scan(&in.ID, &in.SourceID, &in.OwnerID, &clientID, &in.Index, &in.Text,
			&in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		in.ClientID = stringPtr(clientID)
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating insights: %w", err)
	}
	return insights, nil
}
