package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

// PostgresStore implements UserStore using PostgreSQL as the source of
// truth. Cash is stored as NUMERIC for exact decimal precision; positions,
// ledger, and watchlist are JSONB columns written as a unit on Save.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, u *model.User) error {
	positions, ledger, watchlist, err := marshalDoc(u)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, username, cash, positions, ledger, watchlist, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Cash.String(), positions, ledger, watchlist, u.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, u.Username)
	}
	return err
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx,
		`SELECT id, username, cash::TEXT, positions, ledger, watchlist, created_at
		 FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findOne(ctx,
		`SELECT id, username, cash::TEXT, positions, ledger, watchlist, created_at
		 FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var (
		u                            model.User
		cash                         string
		positions, ledger, watchlist []byte
	)
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Username, &cash, &positions, &ledger, &watchlist, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("find user %v: %w", arg, err)
	}

	u.Cash, err = decimal.NewFromString(cash)
	if err != nil {
		return nil, fmt.Errorf("decode cash for %v: %w", arg, err)
	}
	if err := unmarshalDoc(positions, ledger, watchlist, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) FindAllProjected(ctx context.Context) ([]model.UserSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, cash::TEXT, positions FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.UserSummary
	for rows.Next() {
		var (
			sum       model.UserSummary
			cash      string
			positions []byte
		)
		if err := rows.Scan(&sum.Username, &cash, &positions); err != nil {
			return nil, err
		}
		sum.Cash, err = decimal.NewFromString(cash)
		if err != nil {
			return nil, fmt.Errorf("decode cash for %s: %w", sum.Username, err)
		}
		if len(positions) > 0 {
			if err := json.Unmarshal(positions, &sum.Positions); err != nil {
				return nil, fmt.Errorf("decode positions for %s: %w", sum.Username, err)
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Save writes the whole user document in one statement — the engine's only
// atomicity guarantee.
func (s *PostgresStore) Save(ctx context.Context, u *model.User) error {
	positions, ledger, watchlist, err := marshalDoc(u)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET cash = $2::NUMERIC, positions = $3, ledger = $4, watchlist = $5
		 WHERE id = $1`,
		u.ID, u.Cash.String(), positions, ledger, watchlist,
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", ErrUserNotFound, u.ID)
	}
	return nil
}

func marshalDoc(u *model.User) (positions, ledger, watchlist []byte, err error) {
	if positions, err = json.Marshal(u.Positions); err != nil {
		return nil, nil, nil, err
	}
	if ledger, err = json.Marshal(u.Ledger); err != nil {
		return nil, nil, nil, err
	}
	if watchlist, err = json.Marshal(u.Watchlist); err != nil {
		return nil, nil, nil, err
	}
	return positions, ledger, watchlist, nil
}

func unmarshalDoc(positions, ledger, watchlist []byte, u *model.User) error {
	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &u.Positions); err != nil {
			return fmt.Errorf("decode positions: %w", err)
		}
	}
	if len(ledger) > 0 {
		if err := json.Unmarshal(ledger, &u.Ledger); err != nil {
			return fmt.Errorf("decode ledger: %w", err)
		}
	}
	if len(watchlist) > 0 {
		if err := json.Unmarshal(watchlist, &u.Watchlist); err != nil {
			return fmt.Errorf("decode watchlist: %w", err)
		}
	}
	return nil
}
