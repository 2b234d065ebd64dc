package notification

import (
	"context"
	"fmt"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

func (svc *service) UserSignedUp(ctx context.Context, usr user.User) {
	rcpt := Recipient{ID: usr.ID, Username: usr.Username, Name: usr.Name, Email: usr.Email}
	if _, err := svc.Notify(ctx, rcpt, Message{
		Verb:    "Welcome to Acadamier! Please verify your email to get started.",
		Subject: "Welcome to Acadamier!",
		Body:    fmt.Sprintf("Hi %s, welcome aboard!", usr.Username),
	}); err != nil {
		svc.logger.Error(fmt.Sprintf("notification.UserSignedUp: %v", err), err, usr)
	}
}

func (svc *service) EnrollmentCreated(ctx context.Context, enr payment.Enrollment, crs course.Course) {
	svc.notify(ctx, enr.UserID, func(rcpt Recipient) Message {
		return Message{
			Verb:    fmt.Sprintf("You’re now enrolled in “%s”", crs.Title),
			Link:    "/courses/" + crs.ID,
			Subject: fmt.Sprintf("Enrollment confirmed: %s", crs.Title),
			Body:    fmt.Sprintf("Congrats %s! You’ve been enrolled in %s.", rcpt.Username, crs.Title),
		}
	})
}

func (svc *service) LessonPublished(ctx context.Context, crs course.Course, lsn course.Lesson) {
	rcpts, err := svc.repo.ListCourseEnrollees(ctx, crs.ID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notification.LessonPublished: %v", err), err)
		return
	}
	for _, rcpt := range rcpts {
		if _, err = svc.Notify(ctx, rcpt, Message{
			Verb:    fmt.Sprintf("New lesson available: “%s” in %s", lsn.Title, crs.Title),
			Link:    "/lessons/" + lsn.ID,
			Data:    map[string]interface{}{"course": crs.ID, "lesson": lsn.ID},
			Subject: fmt.Sprintf("New lesson in %s", crs.Title),
			Body:    fmt.Sprintf("Hi %s, a new lesson “%s” has just been published.", rcpt.Username, lsn.Title),
		}); err != nil {
			svc.logger.Error(fmt.Sprintf("notification.LessonPublished: %v", err), err)
		}
	}
}

func (svc *service) LessonMilestone(ctx context.Context, userID string, crs course.Course, done, total int) {
	verb := fmt.Sprintf("You’ve completed %d/%d lessons in “%s”", done, total, crs.Title)
	svc.notify(ctx, userID, func(Recipient) Message {
		return Message{
			Verb:    verb,
			Link:    "/courses/" + crs.ID,
			Data:    map[string]interface{}{"course": crs.ID, "done": done, "total": total},
			Subject: fmt.Sprintf("Lesson milestone: %s", crs.Title),
			Body:    verb,
		}
	})
}

func (svc *service) CourseCompleted(ctx context.Context, userID string, crs course.Course) {
	svc.notify(ctx, userID, func(rcpt Recipient) Message {
		return Message{
			Verb:    fmt.Sprintf("Congratulations! You’ve completed “%s”", crs.Title),
			Link:    "/courses/" + crs.ID,
			Subject: fmt.Sprintf("Course completed: %s", crs.Title),
			Body: fmt.Sprintf(
				"Well done %s! Download your certificate at /api/progress/certifications/", rcpt.Username,
			),
		}
	})
}

func (svc *service) MemberInvited(ctx context.Context, org team.Organization, mbr team.Member) {
	svc.notify(ctx, mbr.UserID, func(rcpt Recipient) Message {
		return Message{
			Verb:    fmt.Sprintf("You’ve been invited to join “%s”", org.Name),
			Link:    "/teams/" + org.ID,
			Data:    map[string]interface{}{"organization": org.ID, "member": mbr.ID},
			Subject: fmt.Sprintf("Invitation to join %s", org.Name),
			Body: fmt.Sprintf(
				"Hi %s, you have been invited to join %s on Acadamier. Sign in to accept the invitation.",
				rcpt.Username, org.Name,
			),
		}
	})
}
