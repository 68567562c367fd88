package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Service struct {
	db     *pgxpool.Pool
	log    *slog.Logger
	signer QuoteSigner

	mu   sync.Mutex
	rand *mathrand.Rand
	now  func() time.Time
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, signer QuoteSigner) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		log:    logger,
		signer: signer,
		rand:   mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// runSerializable runs fn inside a serializable transaction and retries on
// serialization failures with doubling backoff. Every money-moving operation
// goes through here; reads use the pool directly.
func (s *Service) runSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// rollD100 draws a uniform integer in [1, 100].
func (s *Service) rollD100() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Int63n(100) + 1
}

// randBetween draws a uniform integer in [lo, hi].
func (s *Service) randBetween(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rand.Int63n(hi-lo+1)
}

func (s *Service) CreateCountry(ctx context.Context, countryID int64, name string) (CountryView, error) {
	var out CountryView
	name = strings.TrimSpace(name)
	if name == "" {
		return out, fmt.Errorf("%w: country name is required", ErrValidation)
	}
	if len(name) > 64 {
		return out, fmt.Errorf("%w: country name too long (max 64 chars)", ErrValidation)
	}

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			INSERT INTO countries (country_id, name, treasury, market_tax_bp)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (country_id) DO NOTHING
		`, countryID, name, InitialTreasury, DefaultMarketTaxBp)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrCountryExists
		}
		if err := appendTreasuryEntryTx(ctx, tx, countryID, "in", "founding", InitialTreasury); err != nil {
			return err
		}
		out = CountryView{CountryID: countryID, Name: name, Treasury: InitialTreasury, MarketTaxBp: DefaultMarketTaxBp}
		return nil
	})
	if err != nil {
		return CountryView{}, err
	}
	s.log.Info("country founded", "country_id", countryID, "name", name)
	return out, nil
}

func (s *Service) Country(ctx context.Context, countryID int64) (CountryView, error) {
	var out CountryView
	err := s.db.QueryRow(ctx, `
		SELECT country_id, name, treasury, market_tax_bp
		FROM countries
		WHERE country_id = $1
	`, countryID).Scan(&out.CountryID, &out.Name, &out.Treasury, &out.MarketTaxBp)
	if err == pgx.ErrNoRows {
		return out, ErrCountryNotFound
	}
	return out, err
}

func (s *Service) SetMarketTaxBp(ctx context.Context, countryID int64, taxBp int32) (CountryView, error) {
	var out CountryView
	if err := validateTaxBp(taxBp); err != nil {
		return out, err
	}
	err := s.db.QueryRow(ctx, `
		UPDATE countries
		SET market_tax_bp = $1, updated_at = now()
		WHERE country_id = $2
		RETURNING country_id, name, treasury, market_tax_bp
	`, taxBp, countryID).Scan(&out.CountryID, &out.Name, &out.Treasury, &out.MarketTaxBp)
	if err == pgx.ErrNoRows {
		return out, ErrCountryNotFound
	}
	if err != nil {
		return out, err
	}
	s.log.Info("market tax updated", "country_id", countryID, "tax_bp", taxBp)
	return out, nil
}

func (s *Service) TreasuryHistory(ctx context.Context, countryID int64, limit int) ([]TreasuryEntry, error) {
	if _, err := s.Country(ctx, countryID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 20, 100)
	rows, err := s.db.Query(ctx, `
		SELECT id, direction, reason, amount, created_at
		FROM treasury_ledger
		WHERE country_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, countryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TreasuryEntry, 0, limit)
	for rows.Next() {
		var e TreasuryEntry
		if err := rows.Scan(&e.EntryID, &e.Direction, &e.Reason, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ensureUserTx lazily creates the user row on first interaction. The country
// must already exist.
func ensureUserTx(ctx context.Context, tx pgx.Tx, countryID, userID int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM countries WHERE country_id = $1)
	`, countryID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrCountryNotFound
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO users (country_id, user_id, balance, streak)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (country_id, user_id) DO NOTHING
	`, countryID, userID)
	return err
}

func (s *Service) TopTreasuries(ctx context.Context, limit int) ([]TreasuryRank, error) {
	limit = clampLimit(limit, 10, 25)
	rows, err := s.db.Query(ctx, `
		SELECT country_id, name, treasury
		FROM countries
		ORDER BY treasury DESC, country_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TreasuryRank, 0, limit)
	var rank int64 = 1
	for rows.Next() {
		var r TreasuryRank
		if err := rows.Scan(&r.CountryID, &r.Name, &r.Treasury); err != nil {
			return nil, err
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Service) TopBalances(ctx context.Context, countryID int64, limit int) ([]BalanceRank, error) {
	if _, err := s.Country(ctx, countryID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 10, 25)
	rows, err := s.db.Query(ctx, `
		SELECT u.country_id, c.name, u.user_id, u.balance
		FROM users u
		JOIN countries c ON c.country_id = u.country_id
		WHERE u.country_id = $1
		ORDER BY u.balance DESC, u.user_id
		LIMIT $2
	`, countryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBalanceRanks(rows, limit)
}

func (s *Service) TopBalancesGlobal(ctx context.Context, limit int) ([]BalanceRank, error) {
	limit = clampLimit(limit, 10, 25)
	rows, err := s.db.Query(ctx, `
		SELECT u.country_id, c.name, u.user_id, u.balance
		FROM users u
		JOIN countries c ON c.country_id = u.country_id
		ORDER BY u.balance DESC, u.country_id, u.user_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBalanceRanks(rows, limit)
}

func scanBalanceRanks(rows pgx.Rows, limit int) ([]BalanceRank, error) {
	out := make([]BalanceRank, 0, limit)
	var rank int64 = 1
	for rows.Next() {
		var r BalanceRank
		if err := rows.Scan(&r.CountryID, &r.CountryName, &r.UserID, &r.Balance); err != nil {
			return nil, err
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}
