package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/acadamier/backend/core/team"
)

type teamRepository struct {
	db *DB
}

var _ team.Repository = (*teamRepository)(nil)

func NewTeamRepository(db *DB) team.Repository {
	return &teamRepository{db: db}
}

// Organizations

type organizationRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	AdminID   string    `db:"admin_id"`
	CreatedAt time.Time `db:"created_at"`
}

var organizationSelect = psql.Select("o.id", "o.name", "o.admin_id", "o.created_at").From("organizations o")

func (repo *teamRepository) listOrganizations(ctx context.Context, b sq.SelectBuilder) ([]team.Organization, error) {
	var rows []organizationRow
	if err := selectRows(ctx, repo.db, &rows, b.OrderBy("o.created_at")); err != nil {
		return nil, err
	}
	orgs := make([]team.Organization, len(rows))
	for i, r := range rows {
		orgs[i] = team.Organization(r)
		orgs[i].CreatedAt = r.CreatedAt.UTC()
	}
	return orgs, nil
}

func (repo *teamRepository) CreateOrganization(ctx context.Context, org team.Organization) (team.Organization, error) {
	b := psql.Insert("organizations").Columns("id", "name", "admin_id", "created_at").
		Values(org.ID, org.Name, org.AdminID, org.CreatedAt)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return team.Organization{}, err
	}
	return org, nil
}

func (repo *teamRepository) GetOrganization(ctx context.Context, id string) (team.Organization, error) {
	var r organizationRow
	if err := get(ctx, repo.db, &r, organizationSelect.Where(sq.Eq{"o.id": id})); err != nil {
		return team.Organization{}, trapNoRowsErr(err, team.ErrNotFound)
	}
	org := team.Organization(r)
	org.CreatedAt = r.CreatedAt.UTC()
	return org, nil
}

func (repo *teamRepository) ListOrganizations(ctx context.Context, userID string) ([]team.Organization, error) {
	return repo.listOrganizations(ctx, organizationSelect.Where(sq.Or{
		sq.Eq{"o.admin_id": userID},
		sq.Expr("EXISTS (SELECT 1 FROM members m WHERE m.organization_id = o.id AND m.user_id = ? AND m.status = ?)", userID, team.MemberActive),
	}))
}

func (repo *teamRepository) ListAllOrganizations(ctx context.Context) ([]team.Organization, error) {
	return repo.listOrganizations(ctx, organizationSelect)
}

func (repo *teamRepository) UpdateOrganization(ctx context.Context, org team.Organization) (team.Organization, error) {
	b := psql.Update("organizations").Set("name", org.Name).Where(sq.Eq{"id": org.ID})
	if err := execOne(ctx, repo.db, b, team.ErrNotFound); err != nil {
		return team.Organization{}, err
	}
	return org, nil
}

func (repo *teamRepository) DeleteOrganization(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("organizations").Where(sq.Eq{"id": id}), team.ErrNotFound)
}

// Members

var memberColumns = []string{"id", "organization_id", "user_id", "email", "invited_by_id", "status", "invited_at", "joined_at"}

type memberRow struct {
	ID             string      `db:"id"`
	OrganizationID string      `db:"organization_id"`
	UserID         string      `db:"user_id"`
	Email          string      `db:"email"`
	InvitedByID    null.String `db:"invited_by_id"`
	Status         string      `db:"status"`
	InvitedAt      time.Time   `db:"invited_at"`
	JoinedAt       null.Time   `db:"joined_at"`
}

func (r memberRow) toMember() team.Member {
	return team.Member{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		Email:          r.Email,
		InvitedByID:    r.InvitedByID.Ptr(),
		Status:         r.Status,
		InvitedAt:      r.InvitedAt.UTC(),
		JoinedAt:       utcPtr(r.JoinedAt),
	}
}

func getMember(ctx context.Context, q queryer, cond sq.Sqlizer) (team.Member, error) {
	var r memberRow
	if err := get(ctx, q, &r, psql.Select(memberColumns...).From("members").Where(cond)); err != nil {
		return team.Member{}, trapNoRowsErr(err, team.ErrMemberNotFound)
	}
	return r.toMember(), nil
}

func (repo *teamRepository) ListMembers(ctx context.Context, orgID string) ([]team.Member, error) {
	var rows []memberRow
	b := psql.Select(memberColumns...).From("members").Where(sq.Eq{"organization_id": orgID}).OrderBy("invited_at")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	members := make([]team.Member, len(rows))
	for i, r := range rows {
		members[i] = r.toMember()
	}
	return members, nil
}

func (repo *teamRepository) GetMember(ctx context.Context, id string) (team.Member, error) {
	return getMember(ctx, repo.db, sq.Eq{"id": id})
}

func (repo *teamRepository) GetMemberByUser(ctx context.Context, orgID, userID string) (team.Member, error) {
	return getMember(ctx, repo.db, sq.Eq{"organization_id": orgID, "user_id": userID})
}

func (repo *teamRepository) CreateMember(ctx context.Context, mbr team.Member) (team.Member, error) {
	b := psql.Insert("members").Columns(memberColumns...).Values(
		mbr.ID, mbr.OrganizationID, mbr.UserID, mbr.Email, null.StringFromPtr(mbr.InvitedByID),
		mbr.Status, mbr.InvitedAt, null.TimeFromPtr(mbr.JoinedAt),
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return team.Member{}, trapUniqueErr(err, team.ErrMemberExists)
	}
	return mbr, nil
}

func (repo *teamRepository) ActivateMember(ctx context.Context, id string, joinedAt time.Time) (team.Member, error) {
	var mbr team.Member
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var err error
		if mbr, err = getMember(ctx, tx, sq.Eq{"id": id}); err != nil {
			return err
		}
		// serialize activations of the organization
		if _, err = exec(ctx, tx, psql.Select("id").From("organizations").Where(sq.Eq{"id": mbr.OrganizationID}).Suffix("FOR UPDATE")); err != nil {
			return pkgerrors.Wrap(err, "locking organization")
		}
		usage, err := seatUsage(ctx, tx, mbr.OrganizationID)
		if err != nil {
			return err
		}
		if usage.UsedSeats >= usage.TotalSeats {
			return team.ErrNoSeatsAvailable
		}
		b := psql.Update("members").Set("status", team.MemberActive).Set("joined_at", joinedAt).Where(sq.Eq{"id": id})
		if _, err = exec(ctx, tx, b); err != nil {
			return err
		}
		mbr.Status = team.MemberActive
		mbr.JoinedAt = &joinedAt
		return nil
	})
	if err != nil {
		return team.Member{}, err
	}
	return mbr, nil
}

func (repo *teamRepository) SetMemberStatus(ctx context.Context, id, status string) (team.Member, error) {
	b := psql.Update("members").Set("status", status).Where(sq.Eq{"id": id})
	if err := execOne(ctx, repo.db, b, team.ErrMemberNotFound); err != nil {
		return team.Member{}, err
	}
	return repo.GetMember(ctx, id)
}

// Purchases & analytics

type bulkPurchaseRow struct {
	ID             string         `db:"id"`
	OrganizationID string         `db:"organization_id"`
	PurchasedByID  string         `db:"purchased_by_id"`
	Seats          int            `db:"seats"`
	CourseIDs      pq.StringArray `db:"course_ids"`
	OrderReference string         `db:"order_reference"`
	PurchasedAt    time.Time      `db:"purchased_at"`
}

var bulkPurchaseColumns = []string{"id", "organization_id", "purchased_by_id", "seats", "course_ids", "order_reference", "purchased_at"}

func (r bulkPurchaseRow) toBulkPurchase() team.BulkPurchase {
	return team.BulkPurchase{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		PurchasedByID:  r.PurchasedByID,
		Seats:          r.Seats,
		CourseIDs:      []string(r.CourseIDs),
		OrderReference: r.OrderReference,
		PurchasedAt:    r.PurchasedAt.UTC(),
	}
}

// CreateBulkPurchase returns the existing purchase when the order was already recorded.
func (repo *teamRepository) CreateBulkPurchase(ctx context.Context, bp team.BulkPurchase) (team.BulkPurchase, error) {
	b := psql.Insert("bulk_purchases").Columns(bulkPurchaseColumns...).Values(
		bp.ID, bp.OrganizationID, bp.PurchasedByID, bp.Seats, pq.Array(emptyIfNil(bp.CourseIDs)), bp.OrderReference, bp.PurchasedAt,
	).Suffix("ON CONFLICT (order_reference) DO NOTHING")
	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return team.BulkPurchase{}, err
	}
	if n == 0 {
		var row bulkPurchaseRow
		q := psql.Select(bulkPurchaseColumns...).From("bulk_purchases").Where(sq.Eq{"order_reference": bp.OrderReference})
		if err = get(ctx, repo.db, &row, q); err != nil {
			return team.BulkPurchase{}, pkgerrors.Wrap(err, "finding bulk purchase")
		}
		return row.toBulkPurchase(), nil
	}
	return bp, nil
}

func (repo *teamRepository) ListBulkPurchases(ctx context.Context, orgID string) ([]team.BulkPurchase, error) {
	var rows []bulkPurchaseRow
	b := psql.Select(bulkPurchaseColumns...).From("bulk_purchases").Where(sq.Eq{"organization_id": orgID}).OrderBy("purchased_at")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	purchases := make([]team.BulkPurchase, len(rows))
	for i, r := range rows {
		purchases[i] = r.toBulkPurchase()
	}
	return purchases, nil
}

func seatUsage(ctx context.Context, q queryer, orgID string) (team.SeatUsage, error) {
	var usage struct {
		Total   int `db:"total_seats"`
		Used    int `db:"used_seats"`
		Pending int `db:"pending_invites"`
	}
	b := psql.Select().
		Column(sq.Expr("(SELECT COALESCE(SUM(seats), 0) FROM bulk_purchases WHERE organization_id = ?) AS total_seats", orgID)).
		Column(sq.Expr("(SELECT COUNT(*) FROM members WHERE organization_id = ? AND status = ?) AS used_seats", orgID, team.MemberActive)).
		Column(sq.Expr("(SELECT COUNT(*) FROM members WHERE organization_id = ? AND status = ?) AS pending_invites", orgID, team.MemberPending))
	if err := get(ctx, q, &usage, b); err != nil {
		return team.SeatUsage{}, pkgerrors.Wrap(err, "computing seat usage")
	}
	return team.SeatUsage{TotalSeats: usage.Total, UsedSeats: usage.Used, PendingInvites: usage.Pending}, nil
}

func (repo *teamRepository) SeatUsage(ctx context.Context, orgID string) (team.SeatUsage, error) {
	return seatUsage(ctx, repo.db, orgID)
}

func (repo *teamRepository) LearningProgress(ctx context.Context, orgID string) ([]team.MemberProgress, error) {
	var rows []struct {
		UserID    string `db:"user_id"`
		Email     string `db:"email"`
		Completed int    `db:"completed"`
		Total     int    `db:"total"`
	}
	b := psql.Select(
		"m.user_id",
		"m.email",
		"COUNT(lp.id) FILTER (WHERE lp.is_completed) AS completed",
		"COUNT(lp.id) AS total",
	).
		From("members m").
		LeftJoin("lesson_progress lp ON lp.user_id = m.user_id").
		Where(sq.Eq{"m.organization_id": orgID, "m.status": team.MemberActive}).
		GroupBy("m.user_id", "m.email").
		OrderBy("m.email")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	progress := make([]team.MemberProgress, len(rows))
	for i, r := range rows {
		progress[i] = team.MemberProgress{UserID: r.UserID, Email: r.Email, Completed: r.Completed, Total: r.Total}
	}
	return progress, nil
}

func (repo *teamRepository) CreateSnapshot(ctx context.Context, snap team.AnalyticsSnapshot) (team.AnalyticsSnapshot, error) {
	usage, err := json.Marshal(snap.SeatUsage)
	if err != nil {
		return team.AnalyticsSnapshot{}, pkgerrors.Wrap(err, "encoding seat usage")
	}
	learning, err := json.Marshal(snap.LearningProgress)
	if err != nil {
		return team.AnalyticsSnapshot{}, pkgerrors.Wrap(err, "encoding learning progress")
	}
	b := psql.Insert("analytics_snapshots").
		Columns("id", "organization_id", "snapshot_at", "seat_usage", "learning_progress").
		Values(snap.ID, snap.OrganizationID, snap.SnapshotAt, types.JSONText(usage), types.JSONText(learning))
	if _, err = exec(ctx, repo.db, b); err != nil {
		return team.AnalyticsSnapshot{}, err
	}
	return snap, nil
}

func (repo *teamRepository) LatestSnapshot(ctx context.Context, orgID string) (team.AnalyticsSnapshot, error) {
	var r struct {
		ID               string         `db:"id"`
		OrganizationID   string         `db:"organization_id"`
		SnapshotAt       time.Time      `db:"snapshot_at"`
		SeatUsage        types.JSONText `db:"seat_usage"`
		LearningProgress types.JSONText `db:"learning_progress"`
	}
	b := psql.Select("id", "organization_id", "snapshot_at", "seat_usage", "learning_progress").
		From("analytics_snapshots").
		Where(sq.Eq{"organization_id": orgID}).
		OrderBy("snapshot_at DESC").
		Limit(1)
	if err := get(ctx, repo.db, &r, b); err != nil {
		return team.AnalyticsSnapshot{}, trapNoRowsErr(err, team.ErrSnapshotNotFound)
	}
	snap := team.AnalyticsSnapshot{ID: r.ID, OrganizationID: r.OrganizationID, SnapshotAt: r.SnapshotAt.UTC()}
	if err := r.SeatUsage.Unmarshal(&snap.SeatUsage); err != nil {
		return team.AnalyticsSnapshot{}, pkgerrors.Wrap(err, "decoding seat usage")
	}
	if err := r.LearningProgress.Unmarshal(&snap.LearningProgress); err != nil {
		return team.AnalyticsSnapshot{}, pkgerrors.Wrap(err, "decoding learning progress")
	}
	return snap, nil
}
