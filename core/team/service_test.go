package team_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/team"
	logsvc "github.com/acadamier/backend/services/logger"
	inmemdb "github.com/acadamier/backend/storage/database/inmem"
)

var errFlaky = errors.New("connection reset")

// flakyEnroller fails its first `failures` calls.
type flakyEnroller struct {
	failures int
	calls    int
	enrolled map[string][]string // user id: course ids
}

func (e *flakyEnroller) EnrollInCourses(_ context.Context, userID string, courseIDs ...string) error {
	e.calls++
	if e.calls <= e.failures {
		return errFlaky
	}
	if e.enrolled == nil {
		e.enrolled = make(map[string][]string)
	}
	e.enrolled[userID] = append(e.enrolled[userID], courseIDs...)
	return nil
}

type fixture struct {
	repo     team.Repository
	svc      team.Service
	enroller *flakyEnroller
	org      team.Organization
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := &core.Config{TestMode: true}
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	repo := inmemdb.NewTeamRepository(inmemdb.Open())
	org, err := repo.CreateOrganization(context.Background(), team.Organization{ID: "org", Name: "Acme", AdminID: "boss", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	enroller := &flakyEnroller{failures: 1}
	return fixture{
		repo:     repo,
		svc:      team.NewService(repo, nil, enroller, logger),
		enroller: enroller,
		org:      org,
	}
}

func (fx fixture) addMember(t *testing.T, id, status string) team.Member {
	t.Helper()
	mbr, err := fx.repo.CreateMember(context.Background(), team.Member{
		ID:             id,
		OrganizationID: fx.org.ID,
		UserID:         "user-" + id,
		Status:         status,
		InvitedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	return mbr
}

func TestService_Accept_resumes(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	_, err := fx.repo.CreateBulkPurchase(ctx, team.BulkPurchase{ID: "bp", OrganizationID: fx.org.ID, Seats: 2, CourseIDs: []string{"go"}, OrderReference: "ref"})
	require.NoError(t, err)
	mbr := fx.addMember(t, "ann", team.MemberPending)

	_, err = fx.svc.Accept(ctx, mbr)
	require.ErrorIs(t, err, errFlaky)
	stored, err := fx.svc.GetMember(ctx, mbr.ID)
	require.NoError(t, err)
	require.Equal(t, team.MemberActive, stored.Status)

	mbr, err = fx.svc.Accept(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, team.MemberActive, mbr.Status)
	assert.Equal(t, 2, fx.enroller.calls)
	assert.Equal(t, []string{"go"}, fx.enroller.enrolled[mbr.UserID])

	usage, err := fx.svc.Dashboard(ctx, fx.org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.UsedSeats, "accepting again does not take another seat")

	revoked := fx.addMember(t, "ben", team.MemberRevoked)
	_, err = fx.svc.Accept(ctx, revoked)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestService_BulkPurchaseCompleted_resumes(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	ann := fx.addMember(t, "ann", team.MemberActive)
	fx.addMember(t, "ben", team.MemberPending)

	paidAt := time.Now().UTC()
	tx := payment.BulkTransaction{
		ID:             "tx",
		OrganizationID: fx.org.ID,
		UserID:         "boss",
		Seats:          3,
		CourseIDs:      []string{"go", "rust"},
		Reference:      "ref-1",
		Status:         payment.StatusSuccess,
		PaidAt:         &paidAt,
	}
	require.ErrorIs(t, fx.svc.BulkPurchaseCompleted(ctx, tx), errFlaky)
	require.NoError(t, fx.svc.BulkPurchaseCompleted(ctx, tx))
	require.NoError(t, fx.svc.BulkPurchaseCompleted(ctx, tx))

	purchases, err := fx.svc.ListPurchases(ctx, fx.org.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 1, "one purchase per order reference")
	assert.Equal(t, "ref-1", purchases[0].OrderReference)
	assert.Equal(t, 3, purchases[0].Seats)

	assert.Equal(t, []string{"go", "rust", "go", "rust"}, fx.enroller.enrolled[ann.UserID])
	assert.NotContains(t, fx.enroller.enrolled, "user-ben")
}
