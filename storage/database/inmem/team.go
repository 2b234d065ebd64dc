package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/acadamier/backend/core/team"
)

type teamRepository struct {
	db *DB
}

var _ team.Repository = (*teamRepository)(nil)

func NewTeamRepository(db *DB) team.Repository {
	return &teamRepository{db: db}
}

func sortOrganizations(orgs []team.Organization) {
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.Before(orgs[j].CreatedAt) })
}

// Organizations

func (repo *teamRepository) CreateOrganization(_ context.Context, org team.Organization) (team.Organization, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.organizations[org.ID] = org
	return org, nil
}

func (repo *teamRepository) GetOrganization(_ context.Context, id string) (team.Organization, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if org, ok := repo.db.organizations[id]; ok {
		return org, nil
	}
	return team.Organization{}, team.ErrNotFound
}

func (repo *teamRepository) ListOrganizations(_ context.Context, userID string) ([]team.Organization, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	memberOf := make(map[string]bool)
	for _, mbr := range repo.db.members {
		if mbr.UserID == userID && mbr.Status == team.MemberActive {
			memberOf[mbr.OrganizationID] = true
		}
	}
	orgs := make([]team.Organization, 0)
	for _, org := range repo.db.organizations {
		if org.AdminID == userID || memberOf[org.ID] {
			orgs = append(orgs, org)
		}
	}
	sortOrganizations(orgs)
	return orgs, nil
}

func (repo *teamRepository) ListAllOrganizations(context.Context) ([]team.Organization, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	orgs := values(repo.db.organizations)
	sortOrganizations(orgs)
	return orgs, nil
}

func (repo *teamRepository) UpdateOrganization(_ context.Context, org team.Organization) (team.Organization, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.organizations[org.ID]; !ok {
		return team.Organization{}, team.ErrNotFound
	}
	repo.db.organizations[org.ID] = org
	return org, nil
}

func (repo *teamRepository) DeleteOrganization(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.organizations[id]; !ok {
		return team.ErrNotFound
	}
	delete(repo.db.organizations, id)
	for mid, mbr := range repo.db.members {
		if mbr.OrganizationID == id {
			delete(repo.db.members, mid)
		}
	}
	for bid, bp := range repo.db.bulkPurchases {
		if bp.OrganizationID == id {
			delete(repo.db.bulkPurchases, bid)
		}
	}
	for sid, snap := range repo.db.snapshots {
		if snap.OrganizationID == id {
			delete(repo.db.snapshots, sid)
		}
	}
	return nil
}

// Members

func copyMember(mbr team.Member) team.Member {
	mbr.JoinedAt = copyTime(mbr.JoinedAt)
	if mbr.InvitedByID != nil {
		by := *mbr.InvitedByID
		mbr.InvitedByID = &by
	}
	return mbr
}

func (repo *teamRepository) ListMembers(_ context.Context, orgID string) ([]team.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]team.Member, 0)
	for _, mbr := range repo.db.members {
		if mbr.OrganizationID == orgID {
			members = append(members, copyMember(mbr))
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].InvitedAt.Before(members[j].InvitedAt) })
	return members, nil
}

func (repo *teamRepository) GetMember(_ context.Context, id string) (team.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if mbr, ok := repo.db.members[id]; ok {
		return copyMember(mbr), nil
	}
	return team.Member{}, team.ErrMemberNotFound
}

func (repo *teamRepository) GetMemberByUser(_ context.Context, orgID, userID string) (team.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, mbr := range repo.db.members {
		if mbr.OrganizationID == orgID && mbr.UserID == userID {
			return copyMember(mbr), nil
		}
	}
	return team.Member{}, team.ErrMemberNotFound
}

func (repo *teamRepository) CreateMember(_ context.Context, mbr team.Member) (team.Member, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, m := range repo.db.members {
		if m.OrganizationID == mbr.OrganizationID && m.UserID == mbr.UserID {
			return team.Member{}, team.ErrMemberExists
		}
	}
	repo.db.members[mbr.ID] = copyMember(mbr)
	return mbr, nil
}

func (repo *teamRepository) ActivateMember(_ context.Context, id string, joinedAt time.Time) (team.Member, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	mbr, ok := repo.db.members[id]
	if !ok {
		return team.Member{}, team.ErrMemberNotFound
	}
	usage := repo.seatUsage(mbr.OrganizationID)
	if usage.UsedSeats >= usage.TotalSeats {
		return team.Member{}, team.ErrNoSeatsAvailable
	}
	mbr.Status = team.MemberActive
	mbr.JoinedAt = &joinedAt
	repo.db.members[id] = mbr
	return copyMember(mbr), nil
}

func (repo *teamRepository) SetMemberStatus(_ context.Context, id, status string) (team.Member, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	mbr, ok := repo.db.members[id]
	if !ok {
		return team.Member{}, team.ErrMemberNotFound
	}
	mbr.Status = status
	repo.db.members[id] = mbr
	return copyMember(mbr), nil
}

// Purchases & analytics

func (repo *teamRepository) CreateBulkPurchase(_ context.Context, bp team.BulkPurchase) (team.BulkPurchase, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.organizations[bp.OrganizationID]; !ok {
		return team.BulkPurchase{}, team.ErrNotFound
	}
	for _, existing := range repo.db.bulkPurchases {
		if existing.OrderReference == bp.OrderReference {
			existing.CourseIDs = copyStrings(existing.CourseIDs)
			return existing, nil
		}
	}
	bp.CourseIDs = copyStrings(bp.CourseIDs)
	repo.db.bulkPurchases[bp.ID] = bp
	return bp, nil
}

func (repo *teamRepository) ListBulkPurchases(_ context.Context, orgID string) ([]team.BulkPurchase, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	purchases := make([]team.BulkPurchase, 0)
	for _, bp := range repo.db.bulkPurchases {
		if bp.OrganizationID == orgID {
			bp.CourseIDs = copyStrings(bp.CourseIDs)
			purchases = append(purchases, bp)
		}
	}
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].PurchasedAt.Before(purchases[j].PurchasedAt) })
	return purchases, nil
}

// seatUsage must be called with db.mu held.
func (repo *teamRepository) seatUsage(orgID string) team.SeatUsage {
	var usage team.SeatUsage
	for _, bp := range repo.db.bulkPurchases {
		if bp.OrganizationID == orgID {
			usage.TotalSeats += bp.Seats
		}
	}
	for _, mbr := range repo.db.members {
		if mbr.OrganizationID != orgID {
			continue
		}
		switch mbr.Status {
		case team.MemberActive:
			usage.UsedSeats++
		case team.MemberPending:
			usage.PendingInvites++
		}
	}
	return usage
}

func (repo *teamRepository) SeatUsage(_ context.Context, orgID string) (team.SeatUsage, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.seatUsage(orgID), nil
}

func (repo *teamRepository) LearningProgress(_ context.Context, orgID string) ([]team.MemberProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	progress := make([]team.MemberProgress, 0)
	for _, mbr := range repo.db.members {
		if mbr.OrganizationID != orgID || mbr.Status != team.MemberActive {
			continue
		}
		mp := team.MemberProgress{UserID: mbr.UserID, Email: mbr.Email}
		for _, lp := range repo.db.lessonProgress {
			if lp.UserID != mbr.UserID {
				continue
			}
			mp.Total++
			if lp.IsCompleted {
				mp.Completed++
			}
		}
		progress = append(progress, mp)
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].Email < progress[j].Email })
	return progress, nil
}

func (repo *teamRepository) CreateSnapshot(_ context.Context, snap team.AnalyticsSnapshot) (team.AnalyticsSnapshot, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	snap.LearningProgress = append([]team.MemberProgress(nil), snap.LearningProgress...)
	repo.db.snapshots[snap.ID] = snap
	return snap, nil
}

func (repo *teamRepository) LatestSnapshot(_ context.Context, orgID string) (team.AnalyticsSnapshot, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var (
		latest team.AnalyticsSnapshot
		found  bool
	)
	for _, snap := range repo.db.snapshots {
		if snap.OrganizationID == orgID && (!found || snap.SnapshotAt.After(latest.SnapshotAt)) {
			latest, found = snap, true
		}
	}
	if !found {
		return team.AnalyticsSnapshot{}, team.ErrSnapshotNotFound
	}
	latest.LearningProgress = append([]team.MemberProgress(nil), latest.LearningProgress...)
	return latest, nil
}
