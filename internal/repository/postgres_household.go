package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// householdSchema 表结构（EnsureSchema 启动时执行，幂等）
// household_exposures 以无序对 (person_low, person_high) 为主键
const householdSchema = `
CREATE TABLE IF NOT EXISTS households (
	household_id UUID PRIMARY KEY,
	name         VARCHAR(200) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS household_members (
	person_id          UUID PRIMARY KEY,
	household_id       UUID NOT NULL REFERENCES households (household_id) ON DELETE CASCADE,
	name               VARCHAR(200) NOT NULL,
	position           INTEGER NOT NULL,
	last_close_contact DATE,
	positive_test      DATE,
	symptoms_start     DATE,
	symptoms_end       DATE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_household_members_household
	ON household_members (household_id, position);

CREATE TABLE IF NOT EXISTS household_exposures (
	household_id       UUID NOT NULL REFERENCES households (household_id) ON DELETE CASCADE,
	person_low         UUID NOT NULL,
	person_high        UUID NOT NULL,
	contagious_person  UUID NOT NULL,
	quarantined_person UUID NOT NULL,
	exposed            BOOLEAN NOT NULL DEFAULT TRUE,
	ongoing            BOOLEAN NOT NULL DEFAULT TRUE,
	exposure_date      DATE,
	PRIMARY KEY (household_id, person_low, person_high),
	CHECK (contagious_person <> quarantined_person)
);
`

// PostgresHouseholdRepository 家庭Repository实现（lib/pq）
type PostgresHouseholdRepository struct {
	db *sql.DB
}

// NewPostgresHouseholdRepository 创建家庭Repository
func NewPostgresHouseholdRepository(db *sql.DB) *PostgresHouseholdRepository {
	return &PostgresHouseholdRepository{db: db}
}

// 确保实现了接口
var _ HouseholdRepository = (*PostgresHouseholdRepository)(nil)

// EnsureSchema 创建表（已存在则跳过）
func (r *PostgresHouseholdRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, householdSchema); err != nil {
		return fmt.Errorf("failed to ensure household schema: %w", err)
	}
	return nil
}

// CreateHousehold 创建家庭
func (r *PostgresHouseholdRepository) CreateHousehold(ctx context.Context, household *domain.Household) (string, error) {
	if household.HouseholdID == "" {
		household.HouseholdID = uuid.NewString()
	}

	query := `
		INSERT INTO households (household_id, name)
		VALUES ($1, $2)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, household.HouseholdID, household.Name).Scan(&household.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create household: %w", err)
	}
	return household.HouseholdID, nil
}

// GetHousehold 根据 household_id 获取家庭
func (r *PostgresHouseholdRepository) GetHousehold(ctx context.Context, householdID string) (*domain.Household, error) {
	query := `
		SELECT household_id::text, name, created_at
		FROM households
		WHERE household_id = $1
	`

	var h domain.Household
	err := r.db.QueryRowContext(ctx, query, householdID).Scan(&h.HouseholdID, &h.Name, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, fmt.Errorf("household %s: %w", householdID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get household: %w", err)
	}
	return &h, nil
}

const memberColumns = `
	person_id::text,
	household_id::text,
	name,
	position,
	last_close_contact,
	positive_test,
	symptoms_start,
	symptoms_end,
	created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*domain.Person, error) {
	var p domain.Person
	var lastCloseContact, positiveTest, symptomsStart, symptomsEnd domain.Date
	if err := row.Scan(
		&p.ID,
		&p.HouseholdID,
		&p.Name,
		&p.Position,
		&lastCloseContact,
		&positiveTest,
		&symptomsStart,
		&symptomsEnd,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.CovidEvents = domain.CovidEvents{
		domain.LastCloseContact: lastCloseContact,
		domain.PositiveTest:     positiveTest,
		domain.SymptomsStart:    symptomsStart,
		domain.SymptomsEnd:      symptomsEnd,
	}
	return &p, nil
}

// ListMembers 按 position 返回家庭成员
func (r *PostgresHouseholdRepository) ListMembers(ctx context.Context, householdID string) ([]*domain.Person, error) {
	if _, err := r.GetHousehold(ctx, householdID); err != nil {
		return nil, err
	}

	query := `SELECT ` + memberColumns + `
		FROM household_members
		WHERE household_id = $1
		ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Person
	for rows.Next() {
		p, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// GetMember 获取单个成员
func (r *PostgresHouseholdRepository) GetMember(ctx context.Context, householdID, personID string) (*domain.Person, error) {
	query := `SELECT ` + memberColumns + `
		FROM household_members
		WHERE household_id = $1 AND person_id = $2
	`
	p, err := scanMember(r.db.QueryRowContext(ctx, query, householdID, personID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, fmt.Errorf("member %s: %w", personID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return p, nil
}

// execer *sql.DB 与 *sql.Tx 的公共部分
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AddMember 在同一事务中新增成员（position 取当前最大值 + 1）并写入其暴露记录
func (r *PostgresHouseholdRepository) AddMember(ctx context.Context, householdID string, person *domain.Person, exposures []domain.ExposureEvent) (string, error) {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertMember(ctx, tx, householdID, person); err != nil {
		return "", err
	}
	if err := upsertExposures(ctx, tx, householdID, exposures); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	person.HouseholdID = householdID
	return person.ID, nil
}

func insertMember(ctx context.Context, q execer, householdID string, person *domain.Person) error {
	events := person.CovidEvents
	query := `
		INSERT INTO household_members (
			person_id, household_id, name, position,
			last_close_contact, positive_test, symptoms_start, symptoms_end
		)
		SELECT $1, $2, $3, COALESCE(MAX(position) + 1, 0), $4, $5, $6, $7
		FROM household_members
		WHERE household_id = $2
		RETURNING position, created_at
	`
	err := q.QueryRowContext(ctx, query,
		person.ID,
		householdID,
		person.Name,
		events.Get(domain.LastCloseContact),
		events.Get(domain.PositiveTest),
		events.Get(domain.SymptomsStart),
		events.Get(domain.SymptomsEnd),
	).Scan(&person.Position, &person.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("household %s: %w", householdID, ErrNotFound)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// UpdateMember 在同一事务中更新成员并应用暴露记录变更（先删后插）
func (r *PostgresHouseholdRepository) UpdateMember(ctx context.Context, householdID string, person *domain.Person, changes domain.ExposureChanges) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	events := person.CovidEvents
	query := `
		UPDATE household_members
		SET name = $3,
		    last_close_contact = $4,
		    positive_test = $5,
		    symptoms_start = $6,
		    symptoms_end = $7
		WHERE household_id = $1 AND person_id = $2
	`
	res, err := tx.ExecContext(ctx, query,
		householdID,
		person.ID,
		person.Name,
		events.Get(domain.LastCloseContact),
		events.Get(domain.PositiveTest),
		events.Get(domain.SymptomsStart),
		events.Get(domain.SymptomsEnd),
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if err := requireAffected(res, fmt.Sprintf("member %s", person.ID)); err != nil {
		return err
	}

	for _, e := range changes.ToRemove {
		key := e.Key()
		_, err := tx.ExecContext(ctx, `
			DELETE FROM household_exposures
			WHERE household_id = $1 AND person_low = $2 AND person_high = $3
		`, householdID, key.Low, key.High)
		if err != nil {
			return fmt.Errorf("failed to delete exposure: %w", err)
		}
	}
	if err := upsertExposures(ctx, tx, householdID, changes.ToAdd); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// RemoveMember 在同一事务中删除相关暴露记录和成员
func (r *PostgresHouseholdRepository) RemoveMember(ctx context.Context, householdID, personID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM household_exposures
		WHERE household_id = $1
		  AND (contagious_person = $2 OR quarantined_person = $2)
	`, householdID, personID)
	if err != nil {
		return fmt.Errorf("failed to delete member exposures: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM household_members
		WHERE household_id = $1 AND person_id = $2
	`, householdID, personID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if err := requireAffected(res, fmt.Sprintf("member %s", personID)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListExposures 返回家庭全部暴露记录
func (r *PostgresHouseholdRepository) ListExposures(ctx context.Context, householdID string) ([]domain.ExposureEvent, error) {
	if _, err := r.GetHousehold(ctx, householdID); err != nil {
		return nil, err
	}

	query := `
		SELECT contagious_person::text, quarantined_person::text, exposed, ongoing, exposure_date
		FROM household_exposures
		WHERE household_id = $1
		ORDER BY person_low, person_high
	`
	rows, err := r.db.QueryContext(ctx, query, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exposures: %w", err)
	}
	defer rows.Close()

	exposures := []domain.ExposureEvent{}
	for rows.Next() {
		var e domain.ExposureEvent
		if err := rows.Scan(&e.ContagiousPerson, &e.QuarantinedPerson, &e.Exposed, &e.Ongoing, &e.Date); err != nil {
			return nil, fmt.Errorf("failed to scan exposure: %w", err)
		}
		exposures = append(exposures, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exposures: %w", err)
	}
	return exposures, nil
}

// upsertExposures 按无序对插入或覆盖暴露记录
func upsertExposures(ctx context.Context, q execer, householdID string, exposures []domain.ExposureEvent) error {
	for _, e := range exposures {
		key := e.Key()
		_, err := q.ExecContext(ctx, `
			INSERT INTO household_exposures (
				household_id, person_low, person_high,
				contagious_person, quarantined_person, exposed, ongoing, exposure_date
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (household_id, person_low, person_high)
			DO UPDATE SET contagious_person = EXCLUDED.contagious_person,
			              quarantined_person = EXCLUDED.quarantined_person,
			              exposed = EXCLUDED.exposed,
			              ongoing = EXCLUDED.ongoing,
			              exposure_date = EXCLUDED.exposure_date
		`, householdID, key.Low, key.High, e.ContagiousPerson, e.QuarantinedPerson, e.Exposed, e.Ongoing, e.Date)
		if err != nil {
			return fmt.Errorf("failed to insert exposure: %w", err)
		}
	}
	return nil
}

// UpdateExposure 更新暴露日期/ongoing
func (r *PostgresHouseholdRepository) UpdateExposure(ctx context.Context, householdID string, exposure domain.ExposureEvent) error {
	key := exposure.Key()
	res, err := r.db.ExecContext(ctx, `
		UPDATE household_exposures
		SET ongoing = $4, exposure_date = $5
		WHERE household_id = $1 AND person_low = $2 AND person_high = $3
	`, householdID, key.Low, key.High, exposure.Ongoing, exposure.Date)
	if err != nil {
		return fmt.Errorf("failed to update exposure: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("exposure %s/%s", key.Low, key.High))
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// isForeignKeyViolation 23503 = foreign_key_violation
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// isInvalidTextRepresentation 22P02 = invalid_text_representation（如非 UUID 的 id）
func isInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}
