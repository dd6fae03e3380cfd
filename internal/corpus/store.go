package corpus

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// BusyTimeoutMS is how long SQLite waits on a locked database
const BusyTimeoutMS = 5000

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a SQLite-backed corpus. Besides serving as a Connector it keeps
// the human answers, known facts and round reports of a bootstrap session.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Answer is one persisted human judgment
type Answer struct {
	Evidence model.Evidence
	Positive bool
}

// Open opens (creating if needed) the corpus database at path and applies
// pending migrations. A nil logger disables logging.
func Open(dbPath string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger.Debugw("Opening corpus", "path", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open corpus database")
	}
	// Pragmas are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "exec %q", p)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infow("Corpus opened", "path", dbPath)
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies every embedded migration not yet recorded in schema_migrations
func (s *Store) migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		version := strings.Split(filename, "_")[0]

		var exists bool
		err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if exists {
			continue
		}

		sqlBytes, err := migrations.ReadFile(path.Join("migrations", filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		s.logger.Debugw("Applying migration", "migration", filename)

		tx, err := s.db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", filename)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", filename)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", filename)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", filename)
		}
	}
	return nil
}

// AddSegment stores seg and its occurrences, replacing an existing segment
// with the same ID
func (s *Store) AddSegment(ctx context.Context, seg *Segment) error {
	tokens, err := json.Marshal(seg.Tokens)
	if err != nil {
		return errors.Wrap(err, "encode tokens")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE id = ?", string(seg.ID)); err != nil {
		return errors.Wrapf(err, "replace segment %s", seg.ID)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO segments (id, document, position, tokens) VALUES (?, ?, ?, ?)",
		string(seg.ID), seg.Document, seg.Position, string(tokens)); err != nil {
		return errors.Wrapf(err, "insert segment %s", seg.ID)
	}

	for i, o := range seg.Occurrences {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO entities (kind, key) VALUES (?, ?)",
			o.Entity.Kind, o.Entity.Key); err != nil {
			return errors.Wrapf(err, "insert entity %s", o.Entity)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO occurrences (segment_id, idx, kind, key, token_start, token_end) VALUES (?, ?, ?, ?, ?, ?)",
			string(seg.ID), i, o.Entity.Kind, o.Entity.Key, o.Start, o.End); err != nil {
			return errors.Wrapf(err, "insert occurrence %d of %s", i, seg.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit segment")
}

// CountSegments returns the number of stored segments
func (s *Store) CountSegments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM segments").Scan(&n)
	return n, errors.Wrap(err, "count segments")
}

// ResolveEntity implements Connector
func (s *Store) ResolveEntity(ctx context.Context, kind, key string) (model.Entity, error) {
	var k, v string
	err := s.db.QueryRowContext(ctx, "SELECT kind, key FROM entities WHERE kind = ? AND key = ?", kind, key).Scan(&k, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entity{}, errors.Wrapf(ErrEntityNotFound, "%s:%s", kind, key)
	}
	if err != nil {
		return model.Entity{}, errors.Wrap(err, "resolve entity")
	}
	return model.Entity{Kind: k, Key: v}, nil
}

// SegmentsWithBothKinds implements Connector. Segments come back ordered by
// document and position.
func (s *Store) SegmentsWithBothKinds(ctx context.Context, kindA, kindB string) ([]*Segment, error) {
	const where = `
		EXISTS (SELECT 1 FROM occurrences o WHERE o.segment_id = s.id AND o.kind = ?)
		AND EXISTS (SELECT 1 FROM occurrences o WHERE o.segment_id = s.id AND o.kind = ?)`
	return s.querySegments(ctx, where, kindA, kindB)
}

// Segment implements SegmentLookup
func (s *Store) Segment(ctx context.Context, id model.SegmentID) (*Segment, error) {
	segs, err := s.querySegments(ctx, "s.id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, errors.Wrapf(ErrSegmentNotFound, "%s", id)
	}
	return segs[0], nil
}

func (s *Store) querySegments(ctx context.Context, where string, args ...interface{}) ([]*Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT s.id, s.document, s.position, s.tokens FROM segments s WHERE "+where+" ORDER BY s.document, s.position, s.id",
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "query segments")
	}

	var segs []*Segment
	byID := make(map[model.SegmentID]*Segment)
	for rows.Next() {
		var seg Segment
		var id, tokens string
		if err := rows.Scan(&id, &seg.Document, &seg.Position, &tokens); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan segment")
		}
		if err := json.Unmarshal([]byte(tokens), &seg.Tokens); err != nil {
			rows.Close()
			return nil, errors.Wrapf(err, "decode tokens of %s", id)
		}
		seg.ID = model.SegmentID(id)
		segs = append(segs, &seg)
		byID[seg.ID] = &seg
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate segments")
	}
	if err := rows.Close(); err != nil {
		return nil, errors.Wrap(err, "close segment rows")
	}
	if len(segs) == 0 {
		return nil, nil
	}

	occ, err := s.db.QueryContext(ctx,
		"SELECT o.segment_id, o.kind, o.key, o.token_start, o.token_end FROM occurrences o "+
			"JOIN segments s ON s.id = o.segment_id WHERE "+where+" ORDER BY o.segment_id, o.idx",
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "query occurrences")
	}
	defer occ.Close()

	for occ.Next() {
		var id string
		var o Occurrence
		if err := occ.Scan(&id, &o.Entity.Kind, &o.Entity.Key, &o.Start, &o.End); err != nil {
			return nil, errors.Wrap(err, "scan occurrence")
		}
		if seg, ok := byID[model.SegmentID(id)]; ok {
			seg.Occurrences = append(seg.Occurrences, o)
		}
	}
	return segs, errors.Wrap(occ.Err(), "iterate occurrences")
}

// SaveAnswer records a human judgment, overwriting a previous one for the
// same evidence
func (s *Store) SaveAnswer(ctx context.Context, e model.Evidence, positive bool) error {
	key, err := encodeEvidence(e)
	if err != nil {
		return err
	}
	answer := 0
	if positive {
		answer = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answers (evidence, answer) VALUES (?, ?)
		 ON CONFLICT(evidence) DO UPDATE SET answer = excluded.answer, answered_at = CURRENT_TIMESTAMP`,
		key, answer)
	return errors.Wrap(err, "save answer")
}

// LoadAnswers returns every stored answer in the order first given
func (s *Store) LoadAnswers(ctx context.Context) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT evidence, answer FROM answers ORDER BY rowid")
	if err != nil {
		return nil, errors.Wrap(err, "query answers")
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var key string
		var answer int
		if err := rows.Scan(&key, &answer); err != nil {
			return nil, errors.Wrap(err, "scan answer")
		}
		e, err := decodeEvidence(key)
		if err != nil {
			return nil, err
		}
		out = append(out, Answer{Evidence: e, Positive: answer == 1})
	}
	return out, errors.Wrap(rows.Err(), "iterate answers")
}

// SaveKnowledge replaces the stored known facts with k
func (s *Store) SaveKnowledge(ctx context.Context, k *knowledge.Knowledge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM known_facts"); err != nil {
		return errors.Wrap(err, "clear known facts")
	}
	for i, it := range k.Items() {
		key, err := encodeEvidence(it.Evidence)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO known_facts (evidence, score, position) VALUES (?, ?, ?)",
			key, it.Score.Value(), i); err != nil {
			return errors.Wrap(err, "insert known fact")
		}
	}
	return errors.Wrap(tx.Commit(), "commit known facts")
}

// LoadKnowledge returns the stored known facts as probabilities
func (s *Store) LoadKnowledge(ctx context.Context) (*knowledge.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT evidence, score FROM known_facts ORDER BY position")
	if err != nil {
		return nil, errors.Wrap(err, "query known facts")
	}
	defer rows.Close()

	k := knowledge.New()
	for rows.Next() {
		var key string
		var score float64
		if err := rows.Scan(&key, &score); err != nil {
			return nil, errors.Wrap(err, "scan known fact")
		}
		e, err := decodeEvidence(key)
		if err != nil {
			return nil, err
		}
		k.Set(e, model.Probability(score))
	}
	return k, errors.Wrap(rows.Err(), "iterate known facts")
}

// SaveReport stores a round report, replacing one with the same round
func (s *Store) SaveReport(ctx context.Context, r model.RoundReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO round_reports (round, report) VALUES (?, ?) ON CONFLICT(round) DO UPDATE SET report = excluded.report",
		r.Round, string(data))
	return errors.Wrap(err, "save report")
}

// LoadReports returns every stored round report, oldest first
func (s *Store) LoadReports(ctx context.Context) ([]model.RoundReport, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT report FROM round_reports ORDER BY round")
	if err != nil {
		return nil, errors.Wrap(err, "query reports")
	}
	defer rows.Close()

	var out []model.RoundReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "scan report")
		}
		var r model.RoundReport
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, errors.Wrap(err, "decode report")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate reports")
}

func encodeEvidence(e model.Evidence) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", errors.Wrap(err, "encode evidence")
	}
	return string(data), nil
}

func decodeEvidence(key string) (model.Evidence, error) {
	var e model.Evidence
	if err := json.Unmarshal([]byte(key), &e); err != nil {
		return model.Evidence{}, errors.Wrap(err, "decode evidence")
	}
	return e, nil
}
