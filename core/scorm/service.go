package scorm

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/user"
)

const (
	TaskExtractPackage = "scorm.extract_package"

	launchTemplate    = "templates/scorm/launch.gohtml"
	extractMaxRetries = 3
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("SCORM package not found")
	ErrScoNotFound = core.NewNotFoundError("SCO not found")
)

type (
	Repository interface {
		CreatePackage(ctx context.Context, pkg Package) (Package, error)
		GetPackage(ctx context.Context, id string) (Package, error)
		ListPackages(ctx context.Context, courseID string) ([]Package, error)
		UpdatePackage(ctx context.Context, pkg Package) (Package, error)

		// ReplaceScos atomically swaps the SCOs of a package for scos.
		ReplaceScos(ctx context.Context, packageID string, scos []Sco) error
		// ListScos returns the SCOs of a package, ordered by sequence.
		ListScos(ctx context.Context, packageID string) ([]Sco, error)
		GetSco(ctx context.Context, id string) (Sco, error)

		// GetOrCreateRuntime returns the runtime data of rd's user, SCO and attempt, storing rd when there is none.
		GetOrCreateRuntime(ctx context.Context, rd RuntimeData) (RuntimeData, error)
		// MergeRuntime atomically merges data into the stored values of runtime record id.
		MergeRuntime(ctx context.Context, id string, data map[string]string, updatedAt time.Time) (RuntimeData, error)
	}

	// RuntimeListener is notified whenever a user reports runtime data for a SCO of a package.
	RuntimeListener interface {
		RuntimeUpdated(ctx context.Context, userID, packageID string)
	}

	LaunchData struct {
		Sco        Sco
		LaunchURL  string
		RuntimeURL string
		Token      string
	}

	Service interface {
		Upload(ctx context.Context, uploader user.User, np NewPackage, filename string, r io.Reader) (Package, error)
		// Extract unzips the package, parses its manifest and stores its SCOs.
		// The package status reflects the outcome and the uploader is notified by email.
		Extract(ctx context.Context, packageID string) error
		ListByCourse(ctx context.Context, courseID string) ([]Package, error)
		GetByID(ctx context.Context, id string) (Package, error)
		ListScos(ctx context.Context, pkg Package) ([]Sco, error)
		GetSco(ctx context.Context, id string) (Sco, error)
		// Launch renders the page that runs the SCO in an iframe alongside the SCORM runtime API.
		Launch(ctx context.Context, w io.Writer, sco Sco, runtimeURL, token string) error
		GetRuntime(ctx context.Context, userID string, sco Sco) (RuntimeData, error)
		UpdateRuntime(ctx context.Context, userID string, sco Sco, ur UpdateRuntime) (RuntimeData, error)
	}

	service struct {
		repo      Repository
		media     core.MediaStorage
		tasks     core.TaskQueue
		mailSvc   core.EmailService
		userSvc   user.Service
		launch    *template.Template
		logger    core.Logger
		tracer    trace.Tracer
		listeners []RuntimeListener
	}
)

var _ Service = (*service)(nil)

// NewService panics when the launch page template cannot be found in fsys.
func NewService(
	repo Repository,
	media core.MediaStorage,
	tasks core.TaskQueue,
	mailSvc core.EmailService,
	userSvc user.Service,
	fsys fs.FS,
	logger core.Logger,
	listeners ...RuntimeListener,
) Service {
	return &service{
		repo:      repo,
		media:     media,
		tasks:     tasks,
		mailSvc:   mailSvc,
		userSvc:   userSvc,
		launch:    template.Must(template.ParseFS(fsys, launchTemplate)),
		logger:    logger,
		tracer:    otel.Tracer("scorm/service"),
		listeners: listeners,
	}
}

func (svc *service) Upload(ctx context.Context, uploader user.User, np NewPackage, filename string, r io.Reader) (Package, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Upload")
	defer span.End()

	id := uuid.NewString()
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "" {
		ext = ".zip"
	}
	name, err := svc.media.Save(traceCtx, path.Join("scorm", "zips", id+ext), r)
	if err != nil {
		span.RecordError(err)
		return Package{}, pkgerrors.Wrap(err, "saving package")
	}

	pkg, err := svc.repo.CreatePackage(traceCtx, Package{
		ID:           id,
		Title:        np.Title,
		CourseID:     np.CourseID,
		File:         name,
		Version:      np.Version,
		UploadedByID: uploader.ID,
		Status:       StatusProcessing,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return Package{}, pkgerrors.Wrap(err, "creating package")
	}

	svc.tasks.Enqueue(core.Task{
		Name:       TaskExtractPackage,
		MaxRetries: extractMaxRetries,
		Run: func(ctx context.Context) error {
			return svc.Extract(ctx, id)
		},
	})
	return pkg, nil
}

func (svc *service) Extract(ctx context.Context, packageID string) error {
	traceCtx, span := svc.tracer.Start(ctx, "Extract")
	defer span.End()

	pkg, err := svc.repo.GetPackage(traceCtx, packageID)
	if err != nil {
		return pkgerrors.Wrap(err, "finding package")
	}

	scos, extractErr := extractPackage(traceCtx, svc.media, svc.media.Path(pkg.File), pkg.ID)
	if extractErr == nil {
		for i := range scos {
			scos[i].ID = uuid.NewString()
			scos[i].PackageID = pkg.ID
		}
		extractErr = svc.repo.ReplaceScos(traceCtx, pkg.ID, scos)
	}

	if extractErr != nil {
		span.RecordError(extractErr)
		pkg.Status = StatusFailed
		pkg.Error = extractErr.Error()
	} else {
		pkg.Status = StatusReady
		pkg.Error = ""
	}
	if _, err = svc.repo.UpdatePackage(traceCtx, pkg); err != nil {
		return pkgerrors.Wrap(err, "updating package")
	}
	svc.notifyUploader(traceCtx, pkg)

	if extractErr != nil {
		// extraction errors are final: the task is not retried
		svc.logger.Warn(fmt.Sprintf("scorm.Extract: package %s: %v", pkg.ID, extractErr), extractErr)
	}
	return nil
}

func (svc *service) notifyUploader(ctx context.Context, pkg Package) {
	usr, err := svc.userSvc.GetByID(ctx, pkg.UploadedByID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("scorm.notifyUploader: %v", err), err)
		return
	}

	subject := fmt.Sprintf("SCORM Package “%s” Parsed Successfully", pkg.Title)
	if pkg.Status == StatusFailed {
		subject = fmt.Sprintf("Error Parsing SCORM Package “%s”", pkg.Title)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
		Subject:      subject,
		TemplateName: "scorm_package",
		TemplateData: map[string]string{
			"Name":  usr.DisplayName(),
			"Title": pkg.Title,
			"Error": pkg.Error,
		},
	})
}

func (svc *service) ListByCourse(ctx context.Context, courseID string) ([]Package, error) {
	return svc.repo.ListPackages(ctx, courseID)
}

func (svc *service) GetByID(ctx context.Context, id string) (Package, error) {
	return svc.repo.GetPackage(ctx, id)
}

func (svc *service) ListScos(ctx context.Context, pkg Package) ([]Sco, error) {
	if pkg.Status != StatusReady {
		return []Sco{}, nil
	}
	return svc.repo.ListScos(ctx, pkg.ID)
}

func (svc *service) GetSco(ctx context.Context, id string) (Sco, error) {
	return svc.repo.GetSco(ctx, id)
}

func (svc *service) Launch(ctx context.Context, w io.Writer, sco Sco, runtimeURL, token string) error {
	_, span := svc.tracer.Start(ctx, "Launch")
	defer span.End()

	return svc.launch.Execute(w, LaunchData{
		Sco:        sco,
		LaunchURL:  svc.media.URL(path.Join(extractDir(sco.PackageID), sco.LaunchURL)),
		RuntimeURL: runtimeURL,
		Token:      token,
	})
}

func (svc *service) GetRuntime(ctx context.Context, userID string, sco Sco) (RuntimeData, error) {
	traceCtx, span := svc.tracer.Start(ctx, "GetRuntime")
	defer span.End()

	rd, err := svc.repo.GetOrCreateRuntime(traceCtx, RuntimeData{
		ID:        uuid.NewString(),
		UserID:    userID,
		ScoID:     sco.ID,
		Attempt:   1,
		Data:      map[string]string{},
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return RuntimeData{}, pkgerrors.Wrap(err, "finding runtime data")
	}
	if rd.Data == nil {
		rd.Data = map[string]string{}
	}
	return rd, nil
}

func (svc *service) UpdateRuntime(ctx context.Context, userID string, sco Sco, ur UpdateRuntime) (RuntimeData, error) {
	traceCtx, span := svc.tracer.Start(ctx, "UpdateRuntime")
	defer span.End()

	rd, err := svc.GetRuntime(traceCtx, userID, sco)
	if err != nil {
		return RuntimeData{}, err
	}
	if rd, err = svc.repo.MergeRuntime(traceCtx, rd.ID, ur.Data, time.Now().UTC()); err != nil {
		span.RecordError(err)
		return RuntimeData{}, pkgerrors.Wrap(err, "updating runtime data")
	}

	for _, l := range svc.listeners {
		l.RuntimeUpdated(traceCtx, userID, sco.PackageID)
	}
	return rd, nil
}
