package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"
	repo "smartTodo/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

const taskColumns = `id, task_name, assignee, due_date_time, priority, original_text, created_at, updated_at`

func New(ctx context.Context, connString string, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse PostgreSQL config", err)
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: closed all PostgreSQL connections")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	id := uuid.New()
	query := `INSERT INTO tasks (` + taskColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		id,
		taskToCreate.Name,
		taskToCreate.Assignee,
		taskToCreate.DueDateTime,
		string(taskToCreate.Priority),
		taskToCreate.OriginalText,
		taskToCreate.CreatedAt,
		taskToCreate.UpdatedAt,
	)
	if err != nil {
		logger.Error("Repository: failed to insert task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("inserting task: %w", err)
	}
	taskToCreate.ID = id.String()

	warnIfSlow(start, 50*time.Millisecond)
	return nil
}

func (s *Storage) List(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY seq`)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: failed to scan task", err)
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	warnIfSlow(start, 100*time.Millisecond)
	return tasks, nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*task.Task, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, uid)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err, zap.String("task_id", id))
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

func (s *Storage) Update(ctx context.Context, id string, patch task.Patch) (*task.Task, error) {
	start := time.Now()

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}

	var priority *string
	if patch.Priority != nil {
		p := string(*patch.Priority)
		priority = &p
	}

	query := `UPDATE tasks
			SET task_name = COALESCE($2, task_name),
				assignee = COALESCE($3, assignee),
				due_date_time = COALESCE($4::timestamp, due_date_time),
				priority = COALESCE($5, priority),
				updated_at = GREATEST($6::timestamp, created_at)
			WHERE id = $1
			RETURNING ` + taskColumns

	row := s.pool.QueryRow(ctx, query,
		uid,
		patch.Name,
		patch.Assignee,
		patch.DueDateTime,
		priority,
		time.Now().UTC(),
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to update task", err, zap.String("task_id", id))
		return nil, fmt.Errorf("updating task: %w", err)
	}

	warnIfSlow(start, 100*time.Millisecond)
	return t, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	start := time.Now()

	uid, err := uuid.Parse(id)
	if err != nil {
		return repo.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, uid)
	if err != nil {
		logger.Error("Repository: failed to delete task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	warnIfSlow(start, 100*time.Millisecond)
	return nil
}

// Migrate applies every pending migration embedded in the binary.
func (s *Storage) Migrate(ctx context.Context) error {
	logger.Info("Repository: applying migrations")

	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: migration failed", err)
		return fmt.Errorf("applying migrations: %w", err)
	}

	logger.Info("Repository: migrations applied")
	return nil
}

func (s *Storage) Down(ctx context.Context) error {
	logger.Info("Repository: rolling back migrations")

	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: rollback failed", err)
		return fmt.Errorf("rolling back migrations: %w", err)
	}

	logger.Info("Repository: migrations rolled back")
	return nil
}

func (s *Storage) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("opening migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.connString))
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Repository: closing migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Repository: closing migration database", zap.Error(dbErr))
	}
}

// migrateURL switches the scheme to the one registered by the pgx/v5 driver.
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		t        task.Task
		id       uuid.UUID
		priority string
	)
	err := row.Scan(
		&id,
		&t.Name,
		&t.Assignee,
		&t.DueDateTime,
		&priority,
		&t.OriginalText,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ID = id.String()
	t.Priority = task.Priority(priority)
	return &t, nil
}

func warnIfSlow(start time.Time, limit time.Duration) {
	if time.Since(start) > limit {
		logger.Warn("Repository: slow query", zap.Duration("ms", time.Since(start)))
	}
}
