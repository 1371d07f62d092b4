// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/buildhub/community-system/internal/model"
	"github.com/buildhub/community-system/internal/points"
	"github.com/buildhub/community-system/internal/streak"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProjectNotFound возвращается, если проект не найден.
	ErrProjectNotFound = errors.New("project not found")
	// ErrContributionNotFound возвращается, если вклад не найден.
	ErrContributionNotFound = errors.New("contribution not found")
	// ErrAlreadyProcessed возвращается при попытке повторной обработки вклада или выдачи награды.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrRewardNotFound возвращается, если награда не найдена.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrRewardUnavailable возвращается, если награда снята с обмена.
	ErrRewardUnavailable = errors.New("reward unavailable")
	// ErrRedemptionNotFound возвращается, если запись о выдаче награды не найдена.
	ErrRedemptionNotFound = errors.New("redemption not found")
	// ErrNotificationNotFound возвращается, если уведомление не найдено.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrNotificationOwnedByAnother возвращается, если уведомление принадлежит другому пользователю.
	ErrNotificationOwnedByAnother = errors.New("notification owned by another user")
)

// queryer объединяет pgxpool.Pool и pgx.Tx для методов, работающих и внутри транзакции, и вне её.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
// Пороги уровней и каталог достижений передаются при создании и далее не меняются:
// пересчёт уровня и разблокировка достижений происходят в одной транзакции
// с изменением баланса.
type PostgresRepository struct {
	pool       *pgxpool.Pool
	thresholds points.Thresholds
	catalog    points.Catalog
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string, thresholds points.Thresholds, catalog points.Catalog) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:       pool,
		thresholds: thresholds,
		catalog:    catalog,
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure или Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя с нулевым балансом и базовым уровнем.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, tier) VALUES ($1, $2, $3) RETURNING id`,
		login, passwordHash, string(model.TierBase),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, point_balance, tier, current_streak, longest_streak, last_contribution_date, created_at
		 FROM users WHERE login = $1`,
		login,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, point_balance, tier, current_streak, longest_streak, last_contribution_date, created_at
		 FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var tier string
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.PointBalance, &tier,
		&u.CurrentStreak, &u.LongestStreak, &u.LastContributionDate, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Tier = model.Tier(tier)
	return &u, nil
}

// CreateProject сохраняет новый проект и возвращает его идентификатор.
func (r *PostgresRepository) CreateProject(ctx context.Context, p *model.Project) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, owner_id, title, description, repo_url, help_wanted, tags, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, p.OwnerID, p.Title, p.Description, p.RepoURL, p.HelpWanted, p.Tags, string(model.ProjectStatusActive),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create project: %w", err)
	}
	return id, nil
}

// GetProjectByID возвращает проект по идентификатору.
func (r *PostgresRepository) GetProjectByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, description, repo_url, help_wanted, tags, status, created_at
		 FROM projects WHERE id = $1`,
		id,
	)

	var p model.Project
	var status string
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.RepoURL, &p.HelpWanted, &p.Tags, &status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.Status = model.ProjectStatus(status)
	return &p, nil
}

// GetProjects возвращает список проектов, опционально отфильтрованный по статусу.
func (r *PostgresRepository) GetProjects(ctx context.Context, status *model.ProjectStatus, limit int) ([]model.Project, error) {
	query := `SELECT id, owner_id, title, description, repo_url, help_wanted, tags, status, created_at
	          FROM projects`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	var res []model.Project
	for rows.Next() {
		var p model.Project
		var st string
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.RepoURL, &p.HelpWanted, &p.Tags, &st, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Status = model.ProjectStatus(st)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateContribution сохраняет новую заявку о вкладе в статусе pending.
// Стоимость в баллах фиксируется переданным значением и далее не пересчитывается.
func (r *PostgresRepository) CreateContribution(ctx context.Context, c *model.Contribution) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO contributions (id, contributor_id, project_id, type, evidence_url, points_awarded, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, c.ContributorID, c.ProjectID, string(c.Type), c.EvidenceURL, c.PointsAwarded, string(model.ContributionStatusPending),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create contribution: %w", err)
	}
	return id, nil
}

// GetContributionByID возвращает вклад по идентификатору.
func (r *PostgresRepository) GetContributionByID(ctx context.Context, id uuid.UUID) (*model.Contribution, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, contributor_id, project_id, type, evidence_url, points_awarded, status, created_at, verified_at
		 FROM contributions WHERE id = $1`,
		id,
	)

	c, err := scanContribution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContributionNotFound
		}
		return nil, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

func scanContribution(row pgx.Row) (*model.Contribution, error) {
	var c model.Contribution
	var ctype, status string
	err := row.Scan(&c.ID, &c.ContributorID, &c.ProjectID, &ctype, &c.EvidenceURL,
		&c.PointsAwarded, &status, &c.CreatedAt, &c.VerifiedAt)
	if err != nil {
		return nil, err
	}
	c.Type = model.ContributionType(ctype)
	c.Status = model.ContributionStatus(status)
	return &c, nil
}

// GetContributionsByContributor возвращает вклады пользователя, новые первыми.
func (r *PostgresRepository) GetContributionsByContributor(ctx context.Context, userID int64) ([]model.Contribution, error) {
	return r.selectContributions(ctx,
		`SELECT id, contributor_id, project_id, type, evidence_url, points_awarded, status, created_at, verified_at
		 FROM contributions WHERE contributor_id = $1 ORDER BY created_at DESC`,
		userID,
	)
}

// GetContributionsByProject возвращает вклады в проект, новые первыми.
func (r *PostgresRepository) GetContributionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Contribution, error) {
	return r.selectContributions(ctx,
		`SELECT id, contributor_id, project_id, type, evidence_url, points_awarded, status, created_at, verified_at
		 FROM contributions WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID,
	)
}

func (r *PostgresRepository) selectContributions(ctx context.Context, query string, args ...any) ([]model.Contribution, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select contributions: %w", err)
	}
	defer rows.Close()

	var res []model.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// VerifyContribution переводит вклад в статус verified и в той же транзакции
// начисляет баллы, пересчитывает уровень, продлевает серию и разблокирует
// достижения. Строка вклада блокируется, поэтому из двух одновременных
// подтверждений одно завершится ErrAlreadyProcessed.
func (r *PostgresRepository) VerifyContribution(ctx context.Context, contributionID uuid.UUID, now time.Time) (*model.Contribution, error) {
	var verified *model.Contribution

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		c, err := scanContribution(tx.QueryRow(ctx,
			`SELECT id, contributor_id, project_id, type, evidence_url, points_awarded, status, created_at, verified_at
			 FROM contributions WHERE id = $1 FOR UPDATE`,
			contributionID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrContributionNotFound
			}
			return fmt.Errorf("lock contribution: %w", err)
		}

		if c.Status != model.ContributionStatusPending {
			return ErrAlreadyProcessed
		}

		if _, err := tx.Exec(ctx,
			`UPDATE contributions SET status = $2, verified_at = $3 WHERE id = $1`,
			contributionID, string(model.ContributionStatusVerified), now,
		); err != nil {
			return fmt.Errorf("update contribution: %w", err)
		}

		if err := r.creditUser(ctx, tx, c.ContributorID, c.PointsAwarded, now); err != nil {
			return err
		}

		if err := r.unlockAchievements(ctx, tx, c.ContributorID, now); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		c.Status = model.ContributionStatusVerified
		c.VerifiedAt = &now
		verified = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return verified, nil
}

// RejectContribution переводит вклад в статус rejected. Баланс, серия и
// достижения не затрагиваются.
func (r *PostgresRepository) RejectContribution(ctx context.Context, contributionID uuid.UUID) (*model.Contribution, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := scanContribution(tx.QueryRow(ctx,
		`SELECT id, contributor_id, project_id, type, evidence_url, points_awarded, status, created_at, verified_at
		 FROM contributions WHERE id = $1 FOR UPDATE`,
		contributionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContributionNotFound
		}
		return nil, fmt.Errorf("lock contribution: %w", err)
	}

	if c.Status != model.ContributionStatusPending {
		return nil, ErrAlreadyProcessed
	}

	if _, err := tx.Exec(ctx,
		`UPDATE contributions SET status = $2 WHERE id = $1`,
		contributionID, string(model.ContributionStatusRejected),
	); err != nil {
		return nil, fmt.Errorf("update contribution: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	c.Status = model.ContributionStatusRejected
	return c, nil
}

// creditUser увеличивает баланс пользователя, пересчитывает уровень и продлевает
// серию. Строка пользователя блокируется на время транзакции.
func (r *PostgresRepository) creditUser(ctx context.Context, tx pgx.Tx, userID int64, amount int64, now time.Time) error {
	var (
		balance  int64
		current  int
		longest  int
		lastDate *time.Time
	)
	err := tx.QueryRow(ctx,
		`SELECT point_balance, current_streak, longest_streak, last_contribution_date
		 FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance, &current, &longest, &lastDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}

	newBalance := balance + amount
	newTier := points.TierFor(newBalance, r.thresholds)
	st := streak.Advance(streak.State{Current: current, Longest: longest, LastDate: lastDate}, now)

	_, err = tx.Exec(ctx,
		`UPDATE users
		 SET point_balance = $2, tier = $3, current_streak = $4, longest_streak = $5, last_contribution_date = $6
		 WHERE id = $1`,
		userID, newBalance, string(newTier), st.Current, st.Longest, st.LastDate,
	)
	if err != nil {
		return fmt.Errorf("update user balance: %w", err)
	}

	return nil
}

// collectUserStats собирает агрегированную активность пользователя и даты его заявок.
func collectUserStats(ctx context.Context, q queryer, userID int64) (model.UserStats, []time.Time, error) {
	var stats model.UserStats

	rows, err := q.Query(ctx,
		`SELECT created_at FROM contributions WHERE contributor_id = $1`,
		userID,
	)
	if err != nil {
		return stats, nil, fmt.Errorf("select contribution dates: %w", err)
	}
	defer rows.Close()

	var submissionTimes []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return stats, nil, fmt.Errorf("scan contribution date: %w", err)
		}
		submissionTimes = append(submissionTimes, t)
	}
	if err := rows.Err(); err != nil {
		return stats, nil, fmt.Errorf("rows error: %w", err)
	}
	stats.SubmittedContributions = len(submissionTimes)

	err = q.QueryRow(ctx,
		`SELECT COUNT(*) FROM contributions WHERE contributor_id = $1 AND status = $2`,
		userID, string(model.ContributionStatusVerified),
	).Scan(&stats.VerifiedContributions)
	if err != nil {
		return stats, nil, fmt.Errorf("count verified contributions: %w", err)
	}

	err = q.QueryRow(ctx,
		`SELECT COUNT(DISTINCT project_id) FROM contributions WHERE contributor_id = $1`,
		userID,
	).Scan(&stats.DistinctProjects)
	if err != nil {
		return stats, nil, fmt.Errorf("count distinct projects: %w", err)
	}

	err = q.QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_id = $1`,
		userID,
	).Scan(&stats.OwnedProjects)
	if err != nil {
		return stats, nil, fmt.Errorf("count owned projects: %w", err)
	}

	return stats, submissionTimes, nil
}

// unlockAchievements вставляет записи о выполненных достижениях. Дедупликация
// выполняется уникальным ключом (user_id, achievement_id): повторная вставка
// молча пропускается, поэтому вызов идемпотентен и безопасен при конкуренции.
func (r *PostgresRepository) unlockAchievements(ctx context.Context, q queryer, userID int64, now time.Time) error {
	stats, submissionTimes, err := collectUserStats(ctx, q, userID)
	if err != nil {
		return err
	}

	weekStreak := streak.HasConsecutiveRun(submissionTimes, 7)

	for _, id := range r.catalog.Satisfied(stats, weekStreak) {
		_, err := q.Exec(ctx,
			`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, achievement_id) DO NOTHING`,
			userID, id, now,
		)
		if err != nil {
			return fmt.Errorf("unlock achievement %s: %w", id, err)
		}
	}

	return nil
}

// ReevaluateAchievements пересчитывает достижения пользователя вне транзакции
// подтверждения вклада (например, после создания проекта).
func (r *PostgresRepository) ReevaluateAchievements(ctx context.Context, userID int64, now time.Time) error {
	return r.unlockAchievements(ctx, r.pool, userID, now)
}

// GetUserAchievements возвращает разблокированные достижения пользователя.
func (r *PostgresRepository) GetUserAchievements(ctx context.Context, userID int64) ([]model.UnlockedAchievement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, achievement_id, unlocked_at
		 FROM user_achievements WHERE user_id = $1 ORDER BY unlocked_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select achievements: %w", err)
	}
	defer rows.Close()

	var res []model.UnlockedAchievement
	for rows.Next() {
		var a model.UnlockedAchievement
		if err := rows.Scan(&a.UserID, &a.AchievementID, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetUserStats возвращает агрегированную активность пользователя.
func (r *PostgresRepository) GetUserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	stats, _, err := collectUserStats(ctx, r.pool, userID)
	return stats, err
}

// CreateRedemption атомарно списывает стоимость награды с баланса пользователя
// и создаёт запись о выдаче. Строка пользователя блокируется, чтобы два
// одновременных списания не ушли в минус.
func (r *PostgresRepository) CreateRedemption(ctx context.Context, userID int64, rewardID uuid.UUID, now time.Time) (*model.Redemption, *model.Reward, error) {
	var (
		redemption *model.Redemption
		reward     *model.Reward
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем строку пользователя для предотвращения параллельных списаний, превышающих баланс.
		var balance int64
		err = tx.QueryRow(ctx,
			`SELECT point_balance FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user for update: %w", err)
		}

		var rw model.Reward
		err = tx.QueryRow(ctx,
			`SELECT id, name, description, points_cost, available FROM rewards WHERE id = $1`,
			rewardID,
		).Scan(&rw.ID, &rw.Name, &rw.Description, &rw.PointsCost, &rw.Available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRewardNotFound
			}
			return fmt.Errorf("get reward: %w", err)
		}

		if !rw.Available {
			return ErrRewardUnavailable
		}

		if balance < rw.PointsCost {
			return ErrInsufficientBalance
		}

		newBalance := balance - rw.PointsCost
		newTier := points.TierFor(newBalance, r.thresholds)

		_, err = tx.Exec(ctx,
			`UPDATE users SET point_balance = $2, tier = $3 WHERE id = $1`,
			userID, newBalance, string(newTier),
		)
		if err != nil {
			return fmt.Errorf("debit user: %w", err)
		}

		id := uuid.New()
		_, err = tx.Exec(ctx,
			`INSERT INTO redemptions (id, user_id, reward_id, points_cost, status, redeemed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, userID, rewardID, rw.PointsCost, string(model.RedemptionStatusPending), now,
		)
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		redemption = &model.Redemption{
			ID:         id,
			UserID:     userID,
			RewardID:   rewardID,
			PointsCost: rw.PointsCost,
			Status:     model.RedemptionStatusPending,
			RedeemedAt: now,
		}
		reward = &rw
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return redemption, reward, nil
}

// FulfillRedemption переводит выдачу награды в статус fulfilled ровно один раз.
func (r *PostgresRepository) FulfillRedemption(ctx context.Context, redemptionID uuid.UUID, now time.Time) (*model.Redemption, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var red model.Redemption
	var status string
	err = tx.QueryRow(ctx,
		`SELECT id, user_id, reward_id, points_cost, status, redeemed_at, fulfilled_at
		 FROM redemptions WHERE id = $1 FOR UPDATE`,
		redemptionID,
	).Scan(&red.ID, &red.UserID, &red.RewardID, &red.PointsCost, &status, &red.RedeemedAt, &red.FulfilledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("lock redemption: %w", err)
	}
	red.Status = model.RedemptionStatus(status)

	if red.Status != model.RedemptionStatusPending {
		return nil, ErrAlreadyProcessed
	}

	if _, err := tx.Exec(ctx,
		`UPDATE redemptions SET status = $2, fulfilled_at = $3 WHERE id = $1`,
		redemptionID, string(model.RedemptionStatusFulfilled), now,
	); err != nil {
		return nil, fmt.Errorf("update redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	red.Status = model.RedemptionStatusFulfilled
	red.FulfilledAt = &now
	return &red, nil
}

// GetRedemptionsByUser возвращает историю обмена баллов пользователя.
func (r *PostgresRepository) GetRedemptionsByUser(ctx context.Context, userID int64) ([]model.Redemption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, reward_id, points_cost, status, redeemed_at, fulfilled_at
		 FROM redemptions WHERE user_id = $1 ORDER BY redeemed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select redemptions: %w", err)
	}
	defer rows.Close()

	var res []model.Redemption
	for rows.Next() {
		var red model.Redemption
		var status string
		if err := rows.Scan(&red.ID, &red.UserID, &red.RewardID, &red.PointsCost, &status, &red.RedeemedAt, &red.FulfilledAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		red.Status = model.RedemptionStatus(status)
		res = append(res, red)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetRewards возвращает доступные награды по возрастанию стоимости.
func (r *PostgresRepository) GetRewards(ctx context.Context) ([]model.Reward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, points_cost, available
		 FROM rewards WHERE available ORDER BY points_cost`,
	)
	if err != nil {
		return nil, fmt.Errorf("select rewards: %w", err)
	}
	defer rows.Close()

	var res []model.Reward
	for rows.Next() {
		var rw model.Reward
		if err := rows.Scan(&rw.ID, &rw.Name, &rw.Description, &rw.PointsCost, &rw.Available); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		res = append(res, rw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetAllTimeLeaderboard возвращает пользователей с положительным текущим балансом,
// отсортированных по убыванию баланса. Ничьи разрешаются по идентификатору.
func (r *PostgresRepository) GetAllTimeLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, login, point_balance, tier
		 FROM users
		 WHERE point_balance > 0
		 ORDER BY point_balance DESC, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	var res []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var tier string
		if err := rows.Scan(&e.UserID, &e.Login, &e.Points, &tier); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.Tier = model.Tier(tier)
		e.Rank = len(res) + 1
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetWindowedLeaderboard строит таблицу лидеров по сумме баллов за вклады,
// подтверждённые не раньше cutoff. Результат не зависит от текущего баланса
// и потому не учитывает потраченные баллы.
func (r *PostgresRepository) GetWindowedLeaderboard(ctx context.Context, cutoff time.Time, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.contributor_id, u.login, SUM(c.points_awarded) AS window_points, u.tier
		 FROM contributions c
		 JOIN users u ON u.id = c.contributor_id
		 WHERE c.status = $1 AND c.verified_at >= $2
		 GROUP BY c.contributor_id, u.login, u.tier
		 ORDER BY window_points DESC, c.contributor_id
		 LIMIT $3`,
		string(model.ContributionStatusVerified), cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select windowed leaderboard: %w", err)
	}
	defer rows.Close()

	var res []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var tier string
		if err := rows.Scan(&e.UserID, &e.Login, &e.Points, &tier); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.Tier = model.Tier(tier)
		e.Rank = len(res) + 1
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateNotification сохраняет уведомление пользователя.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, related_project_id, related_contribution_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), n.UserID, string(n.Type), n.Title, n.Message, n.RelatedProjectID, n.RelatedContributionID,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// GetNotificationsByUser возвращает уведомления пользователя, новые первыми.
func (r *PostgresRepository) GetNotificationsByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `SELECT id, user_id, type, title, message, related_project_id, related_contribution_id, is_read, created_at
	          FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		var ntype string
		if err := rows.Scan(&n.ID, &n.UserID, &ntype, &n.Title, &n.Message,
			&n.RelatedProjectID, &n.RelatedContributionID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = model.NotificationType(ntype)
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountUnreadNotifications возвращает количество непрочитанных уведомлений пользователя.
func (r *PostgresRepository) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead помечает уведомление прочитанным, если оно принадлежит пользователю.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID int64, notificationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var owner int64
		err := r.pool.QueryRow(ctx,
			`SELECT user_id FROM notifications WHERE id = $1`,
			notificationID,
		).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotificationNotFound
		}
		if err != nil {
			return fmt.Errorf("select notification owner: %w", err)
		}
		return ErrNotificationOwnedByAnother
	}

	return nil
}

// MarkAllNotificationsRead помечает все уведомления пользователя прочитанными.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetPlatformStats возвращает сводные показатели платформы.
func (r *PostgresRepository) GetPlatformStats(ctx context.Context) (*model.PlatformStats, error) {
	var s model.PlatformStats

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = $1),
		        COUNT(*) FILTER (WHERE status = $2),
		        COALESCE(SUM(points_awarded) FILTER (WHERE status = $1), 0)
		 FROM contributions`,
		string(model.ContributionStatusVerified), string(model.ContributionStatusPending),
	).Scan(&s.TotalContributions, &s.VerifiedContributions, &s.PendingContributions, &s.TotalPointsAwarded)
	if err != nil {
		return nil, fmt.Errorf("count contributions: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $1) FROM projects`,
		string(model.ProjectStatusActive),
	).Scan(&s.TotalProjects, &s.ActiveProjects)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&s.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	return &s, nil
}
