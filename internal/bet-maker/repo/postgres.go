package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS bets (
	id         UUID PRIMARY KEY,
	event_id   TEXT NOT NULL,
	amount     NUMERIC(10,2) NOT NULL CHECK (amount > 0),
	status     TEXT NOT NULL DEFAULT 'NEW',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bets_event_status ON bets (event_id, status);
CREATE TABLE IF NOT EXISTS bet_transactions (
	id             BIGSERIAL PRIMARY KEY,
	bet_id         UUID NOT NULL REFERENCES bets (id),
	operation_type TEXT NOT NULL,
	amount         NUMERIC(10,2) NOT NULL,
	description    TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Postgres implementa o livro de apostas em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate cria as tabelas se ainda não existirem
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Create insere uma nova aposta com status NEW
func (p *Postgres) Create(ctx context.Context, eventID string, amount decimal.Decimal) (Bet, error) {
	b := Bet{ID: uuid.NewString(), EventID: eventID, Amount: amount, Status: events.BetNew}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO bets (id, event_id, amount, status)
		VALUES ($1, $2, $3, 'NEW')
		RETURNING amount, created_at, updated_at`,
		b.ID, eventID, amount,
	).Scan(&b.Amount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Bet{}, err
	}
	return b, nil
}

// Get retorna uma aposta pelo id
func (p *Postgres) Get(ctx context.Context, id string) (Bet, error) {
	var b Bet
	err := p.db.QueryRowContext(ctx, `
		SELECT id, event_id, amount, status, created_at, updated_at
		FROM bets WHERE id=$1`, id,
	).Scan(&b.ID, &b.EventID, &b.Amount, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrNotFound
	}
	return b, err
}

// List retorna o histórico completo, mais antigas primeiro
func (p *Postgres) List(ctx context.Context) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, event_id, amount, status, created_at, updated_at
		FROM bets ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return scanBets(rows)
}

// ActiveEventIDs retorna os event_id distintos com ao menos uma aposta NEW
func (p *Postgres) ActiveEventIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT event_id FROM bets WHERE status='NEW' ORDER BY event_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SettleEvent faz o UPDATE condicional e registra cada liquidação em
// bet_transactions na mesma transação.
// Roda em READ COMMITTED: o UPDATE reavalia status='NEW' nas linhas que
// esperou travar, então duas entregas concorrentes nunca liquidam a mesma aposta.
func (p *Postgres) SettleEvent(ctx context.Context, eventID string, status events.BetStatus) ([]Bet, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE bets SET status=$1, updated_at=NOW()
		WHERE event_id=$2 AND status='NEW'
		RETURNING id, event_id, amount, status, created_at, updated_at`,
		string(status), eventID,
	)
	if err != nil {
		return nil, err
	}
	// lib/pq não permite outro comando com rows aberto
	settled, err := scanBets(rows)
	if err != nil {
		return nil, err
	}

	for _, b := range settled {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO bet_transactions (bet_id, operation_type, amount, description)
			VALUES ($1, $2, $3, $4)`,
			b.ID, "SETTLE_"+string(status), b.Amount, "event:"+eventID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return settled, nil
}

func scanBets(rows *sql.Rows) ([]Bet, error) {
	defer rows.Close()
	out := []Bet{}
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.EventID, &b.Amount, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
