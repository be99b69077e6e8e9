package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jamoran1356/promptmind/internal/data"
	"github.com/jamoran1356/promptmind/internal/models"

	_ "github.com/lib/pq"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(connStr string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStorage{db: db}

	if err := s.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

// SavePrompt implements data.PromptStore
func (s *PostgresStorage) SavePrompt(ctx context.Context, prompt *models.Prompt) error {
	query := `
        INSERT INTO prompts (
            id, title, description, category, creator_id, quality_score,
            token_price, total_usage, total_revenue, is_hybrid,
            parent_id1, parent_id2, contract_address, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14
        )
    `

	_, err := s.db.ExecContext(ctx, query,
		prompt.ID,
		prompt.Title,
		prompt.Description,
		prompt.Category,
		prompt.CreatorID,
		prompt.QualityScore,
		prompt.TokenPrice,
		prompt.TotalUsage,
		prompt.TotalRevenue,
		prompt.IsHybrid,
		nullString(prompt.ParentID1),
		nullString(prompt.ParentID2),
		nullString(prompt.ContractAddress),
		prompt.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}

	return nil
}

// GetPrompt implements data.PromptStore
func (s *PostgresStorage) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	query := `
        SELECT id, title, description, category, creator_id, quality_score,
               token_price, total_usage, total_revenue, is_hybrid,
               parent_id1, parent_id2, contract_address, created_at, updated_at
        FROM prompts
        WHERE id = $1
    `

	prompt, err := scanPrompt(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, data.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}

	return prompt, nil
}

// ListPrompts implements data.PromptStore
func (s *PostgresStorage) ListPrompts(ctx context.Context, filter data.PromptFilter) ([]models.Prompt, int, error) {
	where := ""
	args := []any{}
	if filter.Category != "" {
		where = "WHERE category = $1"
		args = append(args, filter.Category)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM prompts %s", where)

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count prompts: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT id, title, description, category, creator_id, quality_score,
               token_price, total_usage, total_revenue, is_hybrid,
               parent_id1, parent_id2, contract_address, created_at, updated_at
        FROM prompts
        %s
        ORDER BY quality_score DESC
        LIMIT $%d OFFSET $%d
    `, where, len(args)+1, len(args)+2)
	args = append(args, filter.Take, filter.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var result []models.Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan prompt: %w", err)
		}
		result = append(result, *prompt)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating prompt rows: %w", err)
	}

	return result, total, nil
}

// Leaderboard implements data.PromptStore
func (s *PostgresStorage) Leaderboard(ctx context.Context, limit int) ([]models.Prompt, error) {
	query := `
        SELECT id, title, description, category, creator_id, quality_score,
               token_price, total_usage, total_revenue, is_hybrid,
               parent_id1, parent_id2, contract_address, created_at, updated_at
        FROM prompts
        ORDER BY quality_score * (1 + total_usage / 1000.0) DESC
        LIMIT $1
    `

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var result []models.Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		result = append(result, *prompt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}

	return result, nil
}

// ApplyTrade implements data.PromptStore. The whole mutation is a single
// conditional update so concurrent trades on one prompt cannot lose updates.
func (s *PostgresStorage) ApplyTrade(ctx context.Context, promptID string, revenue float64, priceFactor float64) error {
	query := `
        UPDATE prompts
        SET total_usage = total_usage + 1,
            total_revenue = total_revenue + $2,
            token_price = GREATEST(token_price * $3, 0),
            updated_at = NOW()
        WHERE id = $1
    `

	result, err := s.db.ExecContext(ctx, query, promptID, revenue, priceFactor)
	if err != nil {
		return fmt.Errorf("failed to apply trade to prompt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return data.ErrNotFound
	}

	return nil
}

// SaveTrade implements data.TradeStore
func (s *PostgresStorage) SaveTrade(ctx context.Context, trade *models.Trade) error {
	query := `
        INSERT INTO trades (
            id, prompt_id, trader_id, action, amount, price, total,
            creator_fee, protocol_fee, validator_fee, tx_hash, status, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
        )
    `

	_, err := s.db.ExecContext(ctx, query,
		trade.ID,
		trade.PromptID,
		trade.TraderID,
		trade.Action,
		trade.Amount,
		trade.Price,
		trade.Total,
		trade.CreatorFee,
		trade.ProtocolFee,
		trade.ValidatorFee,
		trade.TxHash,
		trade.Status,
		trade.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	return nil
}

// ListTrades implements data.TradeStore
func (s *PostgresStorage) ListTrades(ctx context.Context, filter data.TradeFilter) ([]models.Trade, int, error) {
	where := ""
	args := []any{}
	if filter.PromptID != "" {
		where = "WHERE prompt_id = $1"
		args = append(args, filter.PromptID)
	}
	if filter.TraderID != "" {
		if where == "" {
			where = "WHERE trader_id = $1"
		} else {
			where += " AND trader_id = $2"
		}
		args = append(args, filter.TraderID)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM trades %s", where)

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT id, prompt_id, trader_id, action, amount, price, total,
               creator_fee, protocol_fee, validator_fee, tx_hash, status, created_at
        FROM trades
        %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d
    `, where, len(args)+1, len(args)+2)
	args = append(args, filter.Take, filter.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var result []models.Trade
	for rows.Next() {
		var trade models.Trade
		err := rows.Scan(
			&trade.ID,
			&trade.PromptID,
			&trade.TraderID,
			&trade.Action,
			&trade.Amount,
			&trade.Price,
			&trade.Total,
			&trade.CreatorFee,
			&trade.ProtocolFee,
			&trade.ValidatorFee,
			&trade.TxHash,
			&trade.Status,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan trade: %w", err)
		}
		result = append(result, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating trade rows: %w", err)
	}

	return result, total, nil
}

// SaveBreedingEvent implements data.BreedingStore
func (s *PostgresStorage) SaveBreedingEvent(ctx context.Context, event *models.BreedingEvent) error {
	query := `
        INSERT INTO breeding_events (
            id, parent1_id, parent2_id, breeder_id, child_prompt_id,
            child_title, child_description, child_quality, tx_hash, status, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
        )
    `

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Parent1ID,
		event.Parent2ID,
		event.BreederID,
		nullString(event.ChildPromptID),
		event.ChildTitle,
		event.ChildDescription,
		event.ChildQuality,
		event.TxHash,
		event.Status,
		event.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save breeding event: %w", err)
	}

	return nil
}

// LinkChild implements data.BreedingStore
func (s *PostgresStorage) LinkChild(ctx context.Context, eventID, childPromptID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE breeding_events SET child_prompt_id = $2 WHERE id = $1`,
		eventID, childPromptID)
	if err != nil {
		return fmt.Errorf("failed to link child prompt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return data.ErrNotFound
	}

	return nil
}

// LastEventByBreeder implements data.BreedingStore
func (s *PostgresStorage) LastEventByBreeder(ctx context.Context, breederID string) (*models.BreedingEvent, error) {
	query := `
        SELECT id, parent1_id, parent2_id, breeder_id, child_prompt_id,
               child_title, child_description, child_quality, tx_hash, status, created_at
        FROM breeding_events
        WHERE breeder_id = $1
        ORDER BY created_at DESC
        LIMIT 1
    `

	event, err := scanBreedingEvent(s.db.QueryRowContext(ctx, query, breederID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last breeding event: %w", err)
	}

	return event, nil
}

// ListBreedingEvents implements data.BreedingStore
func (s *PostgresStorage) ListBreedingEvents(ctx context.Context, filter data.BreedingFilter) ([]models.BreedingEvent, int, error) {
	where := ""
	args := []any{}
	if filter.BreederID != "" {
		where = "WHERE breeder_id = $1"
		args = append(args, filter.BreederID)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM breeding_events %s", where)

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count breeding events: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT id, parent1_id, parent2_id, breeder_id, child_prompt_id,
               child_title, child_description, child_quality, tx_hash, status, created_at
        FROM breeding_events
        %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d
    `, where, len(args)+1, len(args)+2)
	args = append(args, filter.Take, filter.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query breeding events: %w", err)
	}
	defer rows.Close()

	var result []models.BreedingEvent
	for rows.Next() {
		event, err := scanBreedingEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan breeding event: %w", err)
		}
		result = append(result, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating breeding event rows: %w", err)
	}

	return result, total, nil
}

// ListUnlinked implements data.BreedingStore
func (s *PostgresStorage) ListUnlinked(ctx context.Context) ([]models.BreedingEvent, error) {
	query := `
        SELECT id, parent1_id, parent2_id, breeder_id, child_prompt_id,
               child_title, child_description, child_quality, tx_hash, status, created_at
        FROM breeding_events
        WHERE child_prompt_id IS NULL
        ORDER BY created_at ASC
    `

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlinked breeding events: %w", err)
	}
	defer rows.Close()

	var result []models.BreedingEvent
	for rows.Next() {
		event, err := scanBreedingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan breeding event: %w", err)
		}
		result = append(result, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unlinked event rows: %w", err)
	}

	return result, nil
}

// SaveAuditEntry implements data.AuditStore
func (s *PostgresStorage) SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
        INSERT INTO audit_logs (
            id, action, actor_id, resource, origin, details, success, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8
        )
    `

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		nullString(entry.ActorID),
		nullString(entry.Resource),
		entry.Origin,
		details,
		entry.Success,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}

	return nil
}

// Hit implements ratelimit.CounterStore. The upsert applies the whole window
// transition in one statement; the WHERE clause makes a counter at the limit
// a no-op, so two concurrent requests cannot both take the last slot.
func (s *PostgresStorage) Hit(ctx context.Context, identifier, endpoint string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	resetAt := now.Add(window)

	query := `
        INSERT INTO rate_limits (identifier, endpoint, count, reset_at)
        VALUES ($1, $2, 1, $3)
        ON CONFLICT (identifier, endpoint) DO UPDATE SET
            count = CASE WHEN rate_limits.reset_at <= $4 THEN 1 ELSE rate_limits.count + 1 END,
            reset_at = CASE WHEN rate_limits.reset_at <= $4 THEN $3 ELSE rate_limits.reset_at END
        WHERE rate_limits.reset_at <= $4 OR rate_limits.count < $5
        RETURNING count
    `

	var count int
	err := s.db.QueryRowContext(ctx, query, identifier, endpoint, resetAt, now, limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		// conflict row at the limit: denied, nothing mutated
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to hit rate limit counter: %w", err)
	}

	return true, nil
}

// GetCounter implements ratelimit.CounterStore
func (s *PostgresStorage) GetCounter(ctx context.Context, identifier, endpoint string) (*models.RateLimitCounter, error) {
	query := `
        SELECT identifier, endpoint, count, reset_at
        FROM rate_limits
        WHERE identifier = $1 AND endpoint = $2
    `

	var counter models.RateLimitCounter
	err := s.db.QueryRowContext(ctx, query, identifier, endpoint).Scan(
		&counter.Identifier,
		&counter.Endpoint,
		&counter.Count,
		&counter.ResetAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit counter: %w", err)
	}

	return &counter, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (*models.Prompt, error) {
	var prompt models.Prompt
	var parent1, parent2, contract sql.NullString

	err := row.Scan(
		&prompt.ID,
		&prompt.Title,
		&prompt.Description,
		&prompt.Category,
		&prompt.CreatorID,
		&prompt.QualityScore,
		&prompt.TokenPrice,
		&prompt.TotalUsage,
		&prompt.TotalRevenue,
		&prompt.IsHybrid,
		&parent1,
		&parent2,
		&contract,
		&prompt.CreatedAt,
		&prompt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	prompt.ParentID1 = parent1.String
	prompt.ParentID2 = parent2.String
	prompt.ContractAddress = contract.String
	return &prompt, nil
}

func scanBreedingEvent(row rowScanner) (*models.BreedingEvent, error) {
	var event models.BreedingEvent
	var child sql.NullString

	err := row.Scan(
		&event.ID,
		&event.Parent1ID,
		&event.Parent2ID,
		&event.BreederID,
		&child,
		&event.ChildTitle,
		&event.ChildDescription,
		&event.ChildQuality,
		&event.TxHash,
		&event.Status,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.ChildPromptID = child.String
	return &event, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *PostgresStorage) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS prompts (
			id UUID PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			category VARCHAR(100) NOT NULL,
			creator_id VARCHAR(100) NOT NULL,
			quality_score INT NOT NULL,
			token_price NUMERIC(18, 8) NOT NULL,
			total_usage BIGINT NOT NULL DEFAULT 0,
			total_revenue NUMERIC(18, 8) NOT NULL DEFAULT 0,
			is_hybrid BOOLEAN NOT NULL DEFAULT FALSE,
			parent_id1 UUID,
			parent_id2 UUID,
			contract_address VARCHAR(100),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			prompt_id UUID NOT NULL,
			trader_id VARCHAR(100) NOT NULL,
			action VARCHAR(10) NOT NULL,
			amount INT NOT NULL,
			price NUMERIC(18, 8) NOT NULL,
			total NUMERIC(18, 8) NOT NULL,
			creator_fee NUMERIC(18, 8) NOT NULL,
			protocol_fee NUMERIC(18, 8) NOT NULL,
			validator_fee NUMERIC(18, 8) NOT NULL,
			tx_hash VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS breeding_events (
			id UUID PRIMARY KEY,
			parent1_id UUID NOT NULL,
			parent2_id UUID NOT NULL,
			breeder_id VARCHAR(100) NOT NULL,
			child_prompt_id UUID,
			child_title VARCHAR(255) NOT NULL,
			child_description TEXT NOT NULL,
			child_quality INT NOT NULL,
			tx_hash VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS rate_limits (
			identifier VARCHAR(100) NOT NULL,
			endpoint VARCHAR(100) NOT NULL,
			count INT NOT NULL,
			reset_at TIMESTAMP NOT NULL,
			PRIMARY KEY (identifier, endpoint)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			action VARCHAR(50) NOT NULL,
			actor_id VARCHAR(100),
			resource VARCHAR(100),
			origin VARCHAR(100) NOT NULL,
			details JSONB,
			success BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
