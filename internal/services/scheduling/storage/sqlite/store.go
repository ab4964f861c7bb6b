// Package sqlite implements scheduling persistence over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/huddlehq/huddle/internal/platform/storage/sqlitemigrate"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/availability"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/plan"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/slot"
	"github.com/huddlehq/huddle/internal/services/scheduling/storage"
	"github.com/huddlehq/huddle/internal/services/scheduling/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// Store implements scheduling persistence over a single SQLite file, so plan
// rows, invitees, availability and grants share transaction boundaries.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a scheduling SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// DB returns the raw database handle for maintenance tooling.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const insertPlanSQL = `
INSERT INTO plans (
    id, activity_type, duration_minutes, date_range_start, date_range_end,
    location, status, finalized_slot, terminal_at, archived_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertInviteeSQL = `
INSERT INTO plan_invitees (
    plan_id, invitee_id, contact_ref, attendance, has_responded, position
) VALUES (?, ?, ?, ?, ?, ?)
`

// CreatePlan persists a new plan with its invitee roster.
func (s *Store) CreatePlan(ctx context.Context, p plan.Plan) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create plan: %w", err)
	}
	defer tx.Rollback()

	finalized := ""
	if !p.FinalizedTime.IsZero() {
		finalized = p.FinalizedTime.String()
	}
	if _, err := tx.ExecContext(ctx, insertPlanSQL,
		p.ID,
		p.ActivityType,
		p.DurationMinutes,
		toMillis(p.DateRangeStart),
		toMillis(p.DateRangeEnd),
		p.Location,
		string(p.Status),
		finalized,
		toNullMillis(p.TerminalAt),
		toNullMillis(p.ArchivedAt),
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	for i, invitee := range p.Invitees {
		if _, err := tx.ExecContext(ctx, insertInviteeSQL,
			p.ID, invitee.ID, invitee.ContactRef, string(invitee.Attendance), invitee.HasResponded, i,
		); err != nil {
			return fmt.Errorf("insert invitee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create plan: %w", err)
	}
	return nil
}

const selectPlanSQL = `
SELECT id, activity_type, duration_minutes, date_range_start, date_range_end,
       location, status, finalized_slot, terminal_at, archived_at, created_at, updated_at
FROM plans WHERE id = ?
`

// GetPlan loads a plan and its invitees.
func (s *Store) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	p, err := s.scanPlan(s.sqlDB.QueryRowContext(ctx, selectPlanSQL, planID))
	if err != nil {
		return plan.Plan{}, err
	}
	invitees, err := s.listInvitees(ctx, planID)
	if err != nil {
		return plan.Plan{}, err
	}
	p.Invitees = invitees
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPlan(row rowScanner) (plan.Plan, error) {
	var p plan.Plan
	var status, finalized string
	var rangeStart, rangeEnd, createdAt, updatedAt int64
	var terminalAt, archivedAt sql.NullInt64
	err := row.Scan(
		&p.ID, &p.ActivityType, &p.DurationMinutes, &rangeStart, &rangeEnd,
		&p.Location, &status, &finalized, &terminalAt, &archivedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return plan.Plan{}, storage.ErrNotFound
	}
	if err != nil {
		return plan.Plan{}, fmt.Errorf("scan plan: %w", err)
	}

	parsedStatus, ok := plan.ParseStatus(status)
	if !ok {
		return plan.Plan{}, fmt.Errorf("plan %s has unknown status %q", p.ID, status)
	}
	p.Status = parsedStatus
	if finalized != "" {
		parsedSlot, err := slot.Parse(finalized)
		if err != nil {
			return plan.Plan{}, fmt.Errorf("plan %s finalized slot: %w", p.ID, err)
		}
		p.FinalizedTime = parsedSlot
	}
	p.DateRangeStart = fromMillis(rangeStart)
	p.DateRangeEnd = fromMillis(rangeEnd)
	p.TerminalAt = fromNullMillis(terminalAt)
	p.ArchivedAt = fromNullMillis(archivedAt)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func (s *Store) listInvitees(ctx context.Context, planID string) ([]plan.Invitee, error) {
	const query = `
SELECT invitee_id, contact_ref, attendance, has_responded
FROM plan_invitees WHERE plan_id = ? ORDER BY position
`
	rows, err := s.sqlDB.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("list invitees: %w", err)
	}
	defer rows.Close()

	var invitees []plan.Invitee
	for rows.Next() {
		var invitee plan.Invitee
		var attendance string
		if err := rows.Scan(&invitee.ID, &invitee.ContactRef, &attendance, &invitee.HasResponded); err != nil {
			return nil, fmt.Errorf("scan invitee: %w", err)
		}
		parsed, err := plan.ParseAttendanceType(attendance)
		if err != nil {
			return nil, fmt.Errorf("invitee %s: %w", invitee.ID, err)
		}
		invitee.Attendance = parsed
		invitees = append(invitees, invitee)
	}
	return invitees, rows.Err()
}

const updatePlanSQL = `
UPDATE plans SET
    activity_type = ?, duration_minutes = ?, date_range_start = ?, date_range_end = ?,
    location = ?, status = ?, finalized_slot = ?, terminal_at = ?, archived_at = ?, updated_at = ?
WHERE id = ? AND status = ?
`

// UpdatePlan replaces the plan row guarded by its expected status. The WHERE
// clause on the old status is what serializes concurrent transitions: the
// loser of a race matches zero rows and gets ErrStatusConflict.
func (s *Store) UpdatePlan(ctx context.Context, p plan.Plan, expectedStatus plan.Status) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update plan: %w", err)
	}
	defer tx.Rollback()

	finalized := ""
	if !p.FinalizedTime.IsZero() {
		finalized = p.FinalizedTime.String()
	}
	result, err := tx.ExecContext(ctx, updatePlanSQL,
		p.ActivityType,
		p.DurationMinutes,
		toMillis(p.DateRangeStart),
		toMillis(p.DateRangeEnd),
		p.Location,
		string(p.Status),
		finalized,
		toNullMillis(p.TerminalAt),
		toNullMillis(p.ArchivedAt),
		toMillis(p.UpdatedAt),
		p.ID,
		string(expectedStatus),
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan rows affected: %w", err)
	}
	if affected == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM plans WHERE id = ?`, p.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check plan exists: %w", err)
		}
		return storage.ErrStatusConflict
	}

	for _, invitee := range p.Invitees {
		if _, err := tx.ExecContext(ctx,
			`UPDATE plan_invitees SET contact_ref = ?, attendance = ?, has_responded = ? WHERE plan_id = ? AND invitee_id = ?`,
			invitee.ContactRef, string(invitee.Attendance), invitee.HasResponded, p.ID, invitee.ID,
		); err != nil {
			return fmt.Errorf("update invitee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update plan: %w", err)
	}
	return nil
}

// SetPlanArchived flips the archive flag without touching the status machine.
func (s *Store) SetPlanArchived(ctx context.Context, planID string, archivedAt *time.Time, updatedAt time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE plans SET archived_at = ?, updated_at = ? WHERE id = ?`,
		toNullMillis(archivedAt), toMillis(updatedAt), planID,
	)
	if err != nil {
		return fmt.Errorf("set plan archived: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set plan archived rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPlansDueForAutoArchive returns unarchived terminal plans whose terminal
// timestamp is at or before cutoff.
func (s *Store) ListPlansDueForAutoArchive(ctx context.Context, cutoff time.Time) ([]plan.Plan, error) {
	const query = `
SELECT id, activity_type, duration_minutes, date_range_start, date_range_end,
       location, status, finalized_slot, terminal_at, archived_at, created_at, updated_at
FROM plans
WHERE terminal_at IS NOT NULL AND terminal_at <= ? AND archived_at IS NULL
ORDER BY terminal_at
`
	rows, err := s.sqlDB.QueryContext(ctx, query, toMillis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list plans due for auto archive: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		p, err := s.scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// ReplaceAvailability swaps a participant's availability set wholesale and
// marks the matching invitee as responded in the same transaction.
func (s *Store) ReplaceAvailability(ctx context.Context, planID string, set availability.Set) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace availability: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO availability_submissions (plan_id, participant_id, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(plan_id, participant_id) DO UPDATE SET updated_at = excluded.updated_at
`, planID, set.ParticipantID, toMillis(set.UpdatedAt)); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM availability_slots WHERE plan_id = ? AND participant_id = ?`,
		planID, set.ParticipantID,
	); err != nil {
		return fmt.Errorf("clear availability slots: %w", err)
	}

	for _, sl := range set.SortedSlots() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO availability_slots (plan_id, participant_id, slot, provenance) VALUES (?, ?, ?, ?)`,
			planID, set.ParticipantID, sl.String(), int(set.Slots[sl]),
		); err != nil {
			return fmt.Errorf("insert availability slot: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE plan_invitees SET has_responded = 1 WHERE plan_id = ? AND invitee_id = ?`,
		planID, set.ParticipantID,
	); err != nil {
		return fmt.Errorf("mark invitee responded: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace availability: %w", err)
	}
	return nil
}

// GetAvailability loads one participant's current availability set.
func (s *Store) GetAvailability(ctx context.Context, planID, participantID string) (availability.Set, error) {
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT updated_at FROM availability_submissions WHERE plan_id = ? AND participant_id = ?`,
		planID, participantID,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return availability.Set{}, storage.ErrNotFound
	}
	if err != nil {
		return availability.Set{}, fmt.Errorf("get submission: %w", err)
	}

	slots, err := s.listSlots(ctx, planID, participantID)
	if err != nil {
		return availability.Set{}, err
	}
	return availability.Set{
		ParticipantID: participantID,
		Slots:         slots,
		UpdatedAt:     fromMillis(updatedAt),
	}, nil
}

// ListAvailability loads all submitted availability sets for a plan.
func (s *Store) ListAvailability(ctx context.Context, planID string) ([]availability.Set, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT participant_id, updated_at FROM availability_submissions WHERE plan_id = ? ORDER BY participant_id`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var sets []availability.Set
	for rows.Next() {
		var set availability.Set
		var updatedAt int64
		if err := rows.Scan(&set.ParticipantID, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		set.UpdatedAt = fromMillis(updatedAt)
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sets {
		slots, err := s.listSlots(ctx, planID, sets[i].ParticipantID)
		if err != nil {
			return nil, err
		}
		sets[i].Slots = slots
	}
	return sets, nil
}

func (s *Store) listSlots(ctx context.Context, planID, participantID string) (map[slot.Slot]availability.Provenance, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT slot, provenance FROM availability_slots WHERE plan_id = ? AND participant_id = ?`,
		planID, participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list availability slots: %w", err)
	}
	defer rows.Close()

	slots := make(map[slot.Slot]availability.Provenance)
	for rows.Next() {
		var canonical string
		var provenance int
		if err := rows.Scan(&canonical, &provenance); err != nil {
			return nil, fmt.Errorf("scan availability slot: %w", err)
		}
		parsed, err := slot.Parse(canonical)
		if err != nil {
			return nil, fmt.Errorf("stored slot %q: %w", canonical, err)
		}
		slots[parsed] = availability.Provenance(provenance)
	}
	return slots, rows.Err()
}

// PutGrants records a batch of issued grants.
func (s *Store) PutGrants(ctx context.Context, grants []storage.Grant) error {
	if len(grants) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put grants: %w", err)
	}
	defer tx.Rollback()

	for _, grant := range grants {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO invite_grants (id, plan_id, invitee_id, issued_at, expires_at, revoked_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
			grant.ID, grant.PlanID, grant.InviteeID,
			toMillis(grant.IssuedAt), toMillis(grant.ExpiresAt), toNullMillis(grant.RevokedAt),
		); err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put grants: %w", err)
	}
	return nil
}

// GetGrant loads one grant by its id.
func (s *Store) GetGrant(ctx context.Context, grantID string) (storage.Grant, error) {
	grant, err := scanGrant(s.sqlDB.QueryRowContext(ctx, `
SELECT id, plan_id, invitee_id, issued_at, expires_at, revoked_at
FROM invite_grants WHERE id = ?
`, grantID))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Grant{}, storage.ErrNotFound
	}
	return grant, err
}

// ListGrantsByPlan returns every grant issued for a plan.
func (s *Store) ListGrantsByPlan(ctx context.Context, planID string) ([]storage.Grant, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, plan_id, invitee_id, issued_at, expires_at, revoked_at
FROM invite_grants WHERE plan_id = ? ORDER BY issued_at, id
`, planID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []storage.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// RevokeGrantsByPlan marks every unrevoked grant of a plan as revoked.
func (s *Store) RevokeGrantsByPlan(ctx context.Context, planID string, revokedAt time.Time) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`UPDATE invite_grants SET revoked_at = ? WHERE plan_id = ? AND revoked_at IS NULL`,
		toMillis(revokedAt), planID,
	); err != nil {
		return fmt.Errorf("revoke grants: %w", err)
	}
	return nil
}

func scanGrant(row rowScanner) (storage.Grant, error) {
	var grant storage.Grant
	var issuedAt, expiresAt int64
	var revokedAt sql.NullInt64
	err := row.Scan(&grant.ID, &grant.PlanID, &grant.InviteeID, &issuedAt, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Grant{}, err
		}
		return storage.Grant{}, fmt.Errorf("scan grant: %w", err)
	}
	grant.IssuedAt = fromMillis(issuedAt)
	grant.ExpiresAt = fromMillis(expiresAt)
	grant.RevokedAt = fromNullMillis(revokedAt)
	return grant, nil
}
