package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/user"
)

const TaskAnalyticsSnapshot = "team.analytics_snapshot"

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("organization not found")
	ErrMemberNotFound   = core.NewNotFoundError("member not found")
	ErrSnapshotNotFound = core.NewNotFoundError("No analytics snapshot available.")
	ErrNoSeatsAvailable = errors.New("no seats available")
	ErrMemberExists     = errors.New("user is already a member of this organization")

	errNotPending = errors.New("invitation is not pending")
)

type (
	Repository interface {
		CreateOrganization(ctx context.Context, org Organization) (Organization, error)
		GetOrganization(ctx context.Context, id string) (Organization, error)
		// ListOrganizations returns the organizations the user administers or is an active member of.
		ListOrganizations(ctx context.Context, userID string) ([]Organization, error)
		ListAllOrganizations(ctx context.Context) ([]Organization, error)
		UpdateOrganization(ctx context.Context, org Organization) (Organization, error)
		DeleteOrganization(ctx context.Context, id string) error

		ListMembers(ctx context.Context, orgID string) ([]Member, error)
		GetMember(ctx context.Context, id string) (Member, error)
		GetMemberByUser(ctx context.Context, orgID, userID string) (Member, error)
		// CreateMember returns ErrMemberExists when the user already belongs to the organization.
		CreateMember(ctx context.Context, mbr Member) (Member, error)
		// ActivateMember atomically activates a pending member, or returns ErrNoSeatsAvailable
		// when the active members already use every purchased seat.
		ActivateMember(ctx context.Context, id string, joinedAt time.Time) (Member, error)
		SetMemberStatus(ctx context.Context, id, status string) (Member, error)

		// CreateBulkPurchase returns the existing purchase when one with the same OrderReference was recorded.
		CreateBulkPurchase(ctx context.Context, bp BulkPurchase) (BulkPurchase, error)
		ListBulkPurchases(ctx context.Context, orgID string) ([]BulkPurchase, error)

		SeatUsage(ctx context.Context, orgID string) (SeatUsage, error)
		// LearningProgress returns the lesson progress counts of every active member. Percent is not set.
		LearningProgress(ctx context.Context, orgID string) ([]MemberProgress, error)
		CreateSnapshot(ctx context.Context, snap AnalyticsSnapshot) (AnalyticsSnapshot, error)
		LatestSnapshot(ctx context.Context, orgID string) (AnalyticsSnapshot, error)
	}

	// Enroller grants users access to courses.
	Enroller interface {
		EnrollInCourses(ctx context.Context, userID string, courseIDs ...string) error
	}

	// InviteListener is notified whenever a user is invited to join an organization.
	InviteListener interface {
		MemberInvited(ctx context.Context, org Organization, mbr Member)
	}

	Service interface {
		payment.BulkPurchaseListener

		Create(ctx context.Context, adminID string, no NewOrganization) (Organization, error)
		GetByID(ctx context.Context, id string) (Organization, error)
		ListForUser(ctx context.Context, userID string) ([]Organization, error)
		Update(ctx context.Context, org Organization, no NewOrganization) (Organization, error)
		Delete(ctx context.Context, id string) error
		IsMember(ctx context.Context, org Organization, usr user.User) (bool, error)

		Dashboard(ctx context.Context, orgID string) (SeatUsage, error)
		LatestSnapshot(ctx context.Context, orgID string) (AnalyticsSnapshot, error)
		TakeSnapshot(ctx context.Context, org Organization) (AnalyticsSnapshot, error)
		TakeAllSnapshots(ctx context.Context) error
		SnapshotTask() core.Task

		Invite(ctx context.Context, org Organization, inviter user.User, im InviteMembers) ([]InviteResult, error)
		ListMembers(ctx context.Context, orgID string) ([]Member, error)
		GetMember(ctx context.Context, id string) (Member, error)
		Accept(ctx context.Context, mbr Member) (Member, error)
		Revoke(ctx context.Context, mbr Member) (Member, error)

		ListPurchases(ctx context.Context, orgID string) ([]BulkPurchase, error)
	}

	service struct {
		repo      Repository
		userSvc   user.Service
		enroller  Enroller
		logger    core.Logger
		tracer    trace.Tracer
		listeners []InviteListener
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, enroller Enroller, logger core.Logger, listeners ...InviteListener) Service {
	return &service{
		repo:      repo,
		userSvc:   userSvc,
		enroller:  enroller,
		logger:    logger,
		tracer:    otel.Tracer("team/service"),
		listeners: listeners,
	}
}

// IsAdmin reports whether usr administers the organization.
func IsAdmin(org Organization, usr user.User) bool {
	return org.AdminID == usr.ID
}

func (svc *service) Create(ctx context.Context, adminID string, no NewOrganization) (Organization, error) {
	return svc.repo.CreateOrganization(ctx, Organization{
		ID:        uuid.NewString(),
		Name:      no.Name,
		AdminID:   adminID,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) GetByID(ctx context.Context, id string) (Organization, error) {
	return svc.repo.GetOrganization(ctx, id)
}

func (svc *service) ListForUser(ctx context.Context, userID string) ([]Organization, error) {
	return svc.repo.ListOrganizations(ctx, userID)
}

func (svc *service) Update(ctx context.Context, org Organization, no NewOrganization) (Organization, error) {
	org.Name = no.Name
	return svc.repo.UpdateOrganization(ctx, org)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteOrganization(ctx, id)
}

// IsMember reports whether usr is the admin or an active member of the organization.
func (svc *service) IsMember(ctx context.Context, org Organization, usr user.User) (bool, error) {
	if IsAdmin(org, usr) {
		return true, nil
	}
	mbr, err := svc.repo.GetMemberByUser(ctx, org.ID, usr.ID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrMemberNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "finding member")
	}
	return mbr.Status == MemberActive, nil
}

func (svc *service) Dashboard(ctx context.Context, orgID string) (SeatUsage, error) {
	return svc.repo.SeatUsage(ctx, orgID)
}

func (svc *service) LatestSnapshot(ctx context.Context, orgID string) (AnalyticsSnapshot, error) {
	return svc.repo.LatestSnapshot(ctx, orgID)
}

// TakeSnapshot computes and stores the seat usage and learning progress of the organization.
func (svc *service) TakeSnapshot(ctx context.Context, org Organization) (AnalyticsSnapshot, error) {
	traceCtx, span := svc.tracer.Start(ctx, "TakeSnapshot")
	defer span.End()

	usage, err := svc.repo.SeatUsage(traceCtx, org.ID)
	if err != nil {
		return AnalyticsSnapshot{}, pkgerrors.Wrap(err, "computing seat usage")
	}
	learning, err := svc.repo.LearningProgress(traceCtx, org.ID)
	if err != nil {
		return AnalyticsSnapshot{}, pkgerrors.Wrap(err, "computing learning progress")
	}
	for i := range learning {
		if learning[i].Total > 0 {
			learning[i].Percent = 100 * learning[i].Completed / learning[i].Total
		}
	}
	if learning == nil {
		learning = []MemberProgress{}
	}

	return svc.repo.CreateSnapshot(traceCtx, AnalyticsSnapshot{
		ID:               uuid.NewString(),
		OrganizationID:   org.ID,
		SnapshotAt:       time.Now().UTC(),
		SeatUsage:        usage,
		LearningProgress: learning,
	})
}

// TakeAllSnapshots snapshots every organization. A failing organization does not stop the others.
func (svc *service) TakeAllSnapshots(ctx context.Context) error {
	orgs, err := svc.repo.ListAllOrganizations(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "listing organizations")
	}
	var failed int
	for _, org := range orgs {
		if _, err = svc.TakeSnapshot(ctx, org); err != nil {
			failed++
			svc.logger.Error(fmt.Sprintf("team.TakeAllSnapshots: organization %s: %v", org.ID, err), err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d snapshots failed", failed, len(orgs))
	}
	return nil
}

func (svc *service) SnapshotTask() core.Task {
	return core.Task{
		Name: TaskAnalyticsSnapshot,
		Run:  svc.TakeAllSnapshots,
	}
}

// Invite gets or creates a pending membership for each email. Emails without an account are reported as not found.
func (svc *service) Invite(ctx context.Context, org Organization, inviter user.User, im InviteMembers) ([]InviteResult, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Invite")
	defer span.End()

	users, err := svc.userSvc.GetByEmails(traceCtx, im.Emails)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "finding users by email")
	}
	byEmail := make(map[string]user.User, len(users))
	for _, usr := range users {
		byEmail[usr.Email] = usr
	}

	results := make([]InviteResult, 0, len(im.Emails))
	for _, email := range im.Emails {
		usr, ok := byEmail[email]
		if !ok {
			results = append(results, InviteResult{Email: email, Status: InviteNotFound})
			continue
		}

		mbr, err := svc.repo.GetMemberByUser(traceCtx, org.ID, usr.ID)
		if err == nil {
			results = append(results, InviteResult{Email: email, Status: mbr.Status})
			continue
		}
		if pkgerrors.Cause(err) != ErrMemberNotFound {
			return nil, pkgerrors.Wrap(err, "finding member")
		}

		inviterID := inviter.ID
		mbr, err = svc.repo.CreateMember(traceCtx, Member{
			ID:             uuid.NewString(),
			OrganizationID: org.ID,
			UserID:         usr.ID,
			Email:          usr.Email,
			InvitedByID:    &inviterID,
			Status:         MemberPending,
			InvitedAt:      time.Now().UTC(),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "creating member")
		}
		for _, l := range svc.listeners {
			l.MemberInvited(traceCtx, org, mbr)
		}
		results = append(results, InviteResult{Email: email, Status: mbr.Status})
	}
	return results, nil
}

func (svc *service) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	return svc.repo.ListMembers(ctx, orgID)
}

func (svc *service) GetMember(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMember(ctx, id)
}

// Accept activates a pending membership and enrolls the member in the courses purchased by the organization.
// An active member may accept again, which only re-runs the enrollments.
func (svc *service) Accept(ctx context.Context, mbr Member) (Member, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Accept")
	defer span.End()

	var err error
	switch mbr.Status {
	case MemberPending:
		mbr, err = svc.repo.ActivateMember(traceCtx, mbr.ID, time.Now().UTC())
		if err != nil {
			if pkgerrors.Cause(err) == ErrNoSeatsAvailable {
				return Member{}, core.NewValidationError(ErrNoSeatsAvailable)
			}
			return Member{}, pkgerrors.Wrap(err, "activating member")
		}
	case MemberActive:
		// enrollments are idempotent, accepting again finishes an interrupted accept
	default:
		return Member{}, core.NewValidationError(errNotPending)
	}

	purchases, err := svc.repo.ListBulkPurchases(traceCtx, mbr.OrganizationID)
	if err != nil {
		return Member{}, pkgerrors.Wrap(err, "listing purchases")
	}
	for _, bp := range purchases {
		if err = svc.enroller.EnrollInCourses(traceCtx, mbr.UserID, bp.CourseIDs...); err != nil {
			return Member{}, pkgerrors.Wrap(err, "enrolling member")
		}
	}
	return mbr, nil
}

func (svc *service) Revoke(ctx context.Context, mbr Member) (Member, error) {
	return svc.repo.SetMemberStatus(ctx, mbr.ID, MemberRevoked)
}

func (svc *service) ListPurchases(ctx context.Context, orgID string) ([]BulkPurchase, error) {
	return svc.repo.ListBulkPurchases(ctx, orgID)
}

// BulkPurchaseCompleted records the purchase of the organization and enrolls its active members.
// Running it again for the same transaction completes what a failed run left undone.
func (svc *service) BulkPurchaseCompleted(ctx context.Context, tx payment.BulkTransaction) error {
	traceCtx, span := svc.tracer.Start(ctx, "BulkPurchaseCompleted")
	defer span.End()

	purchasedAt := time.Now().UTC()
	if tx.PaidAt != nil {
		purchasedAt = *tx.PaidAt
	}
	if _, err := svc.repo.CreateBulkPurchase(traceCtx, BulkPurchase{
		ID:             uuid.NewString(),
		OrganizationID: tx.OrganizationID,
		PurchasedByID:  tx.UserID,
		Seats:          tx.Seats,
		CourseIDs:      tx.CourseIDs,
		OrderReference: tx.Reference,
		PurchasedAt:    purchasedAt,
	}); err != nil {
		return pkgerrors.Wrap(err, "creating bulk purchase")
	}

	members, err := svc.repo.ListMembers(traceCtx, tx.OrganizationID)
	if err != nil {
		return pkgerrors.Wrap(err, "listing members")
	}
	for _, mbr := range members {
		if mbr.Status != MemberActive {
			continue
		}
		if err = svc.enroller.EnrollInCourses(traceCtx, mbr.UserID, tx.CourseIDs...); err != nil {
			return pkgerrors.Wrap(err, "enrolling member")
		}
	}
	return nil
}
