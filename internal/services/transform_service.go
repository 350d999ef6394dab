package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"timelens/internal/config"
	"timelens/internal/infra"
	"timelens/internal/models/db_models"
	"timelens/internal/models/response_models"
	"timelens/internal/repositories"
	"timelens/pkg/utils"
)

const (
	maxCustomPromptLen = 1000
	cleanupTimeout     = 15 * time.Second
	defaultPageSize    = 20
	maxPageSize        = 100
)

type TransformInput struct {
	UserID       string
	ImageName    string
	Image        []byte
	DeclaredMIME string
	EraTheme     string
	CustomPrompt string
}

type TransformServiceInterface interface {
	Transform(ctx context.Context, in TransformInput) (response_models.TransformResponse, error)
	ListResults(ctx context.Context, userID string, page, pageSize int) (response_models.PagedResults, error)
}

type TransformService struct {
	db         *gorm.DB
	quota      QuotaServiceInterface
	generator  GenerationServiceInterface
	storage    infra.ObjectStorage
	resultRepo repositories.TransformResultRepository
	metrics    *infra.Metrics
	log        *zap.Logger

	storageTimeout    time.Duration
	generationTimeout time.Duration
	dbTimeout         time.Duration
	now               func() time.Time
}

func NewTransformService(
	db *gorm.DB,
	quota QuotaServiceInterface,
	generator GenerationServiceInterface,
	storage infra.ObjectStorage,
	resultRepo repositories.TransformResultRepository,
	cfg config.Config,
	metrics *infra.Metrics,
	log *zap.Logger,
) TransformServiceInterface {
	// primary and fallback prompt, each with its retries, plus the backoff waits
	genBudget := 2*maxProviderCalls*cfg.Generation.Timeout + 10*time.Second
	return &TransformService{
		db:                db,
		quota:             quota,
		generator:         generator,
		storage:           storage,
		resultRepo:        resultRepo,
		metrics:           metrics,
		log:               log,
		storageTimeout:    cfg.Storage.Timeout,
		generationTimeout: genBudget,
		dbTimeout:         10 * time.Second,
		now:               time.Now,
	}
}

// run executes one step under its own deadline.
func run[T any](ctx context.Context, timeout time.Duration, step func(context.Context) (T, error)) (T, error) {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return step(stepCtx)
}

// Transform runs quota check, staging, generation and persistence. Any
// failure after the original is staged deletes what was staged.
func (t *TransformService) Transform(ctx context.Context, in TransformInput) (resp response_models.TransformResponse, err error) {
	started := t.now()
	log := t.log.With(zap.String("user_id", in.UserID))

	defer func() {
		t.metrics.TransformsTotal.WithLabelValues(transformOutcome(err)).Inc()
		if err == nil {
			t.metrics.TransformDuration.Observe(time.Since(started).Seconds())
		}
	}()

	status, err := run(ctx, t.dbTimeout, func(c context.Context) (response_models.QuotaStatus, error) {
		return t.quota.CanTransform(c, in.UserID)
	})
	if err != nil {
		return resp, err
	}
	if !status.Allowed {
		t.metrics.QuotaRejections.Inc()
		return resp, &utils.QuotaExceededError{Remaining: status.Remaining, Limit: status.Limit}
	}

	mimeType, err := validateTransformInput(in)
	if err != nil {
		return resp, err
	}

	// the token keeps concurrent uploads of one user from sharing a key
	stem := fmt.Sprintf("%d-%s", started.UnixMilli(), uuid.NewString()[:8])
	originalPath := fmt.Sprintf("original/%s/%s-%s", in.UserID, stem, sanitizeFileName(in.ImageName, mimeType))

	var staged []string
	defer func() {
		if err != nil && len(staged) > 0 {
			t.compensate(log, staged)
		}
	}()

	if _, err = run(ctx, t.storageTimeout, func(c context.Context) (struct{}, error) {
		return struct{}{}, t.storage.Put(c, originalPath, in.Image, mimeType)
	}); err != nil {
		return resp, utils.StorageError("stage original", err)
	}
	staged = append(staged, originalPath)

	theme := utils.CustomTheme
	if strings.TrimSpace(in.CustomPrompt) == "" {
		theme = utils.NormalizeTheme(in.EraTheme)
	}

	generated, err := run(ctx, t.generationTimeout, func(c context.Context) (GeneratedImage, error) {
		return t.generator.Generate(c, GenerateInput{
			Image:        in.Image,
			MIMEType:     mimeType,
			Theme:        in.EraTheme,
			CustomPrompt: in.CustomPrompt,
		})
	})
	if err != nil {
		if !errors.Is(err, utils.ErrGenerationFailed) {
			err = &utils.GenerationFailedError{Cause: err}
		}
		return resp, err
	}

	genMIME := generated.MIMEType
	if genMIME == "" {
		genMIME = mimeType
	}
	generatedPath := fmt.Sprintf("transformed/%s/%s-transformed%s", in.UserID, stem, utils.ExtensionForMIME(genMIME))
	if _, err = run(ctx, t.storageTimeout, func(c context.Context) (struct{}, error) {
		return struct{}{}, t.storage.Put(c, generatedPath, generated.Data, genMIME)
	}); err != nil {
		return resp, utils.StorageError("stage result", err)
	}
	staged = append(staged, generatedPath)

	result := &db_models.TransformResult{
		UserID:        in.UserID,
		OriginalPath:  originalPath,
		OriginalURL:   t.storage.PublicURL(originalPath),
		GeneratedPath: generatedPath,
		GeneratedURL:  t.storage.PublicURL(generatedPath),
		Theme:         theme,
		Prompt:        strings.TrimSpace(in.CustomPrompt),
	}

	_, err = run(ctx, t.dbTimeout, func(c context.Context) (struct{}, error) {
		return struct{}{}, t.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := t.resultRepo.WithTx(tx).Insert(c, result); err != nil {
				return fmt.Errorf("%w: insert result: %v", utils.ErrDatabaseError, err)
			}
			return t.quota.CommitUsageWithinLimit(c, tx, in.UserID)
		})
	})
	if err != nil {
		if errors.Is(err, utils.ErrQuotaExceeded) {
			t.metrics.QuotaRejections.Inc()
			log.Info("quota exhausted by a concurrent transformation")
		}
		return resp, err
	}

	remaining := status.Remaining
	if status.Limit != UnlimitedDaily && remaining > 0 {
		remaining--
	}

	log.Info("transformation completed",
		zap.String("result_id", result.ID.String()),
		zap.String("theme", theme),
		zap.Int("provider_attempts", generated.Attempts),
		zap.Bool("fallback", generated.UsedFallback))

	return response_models.TransformResponse{
		Result: toResultResponse(*result),
		Quota: response_models.QuotaStatus{
			Allowed:   status.Limit == UnlimitedDaily || remaining > 0,
			Remaining: remaining,
			Limit:     status.Limit,
		},
	}, nil
}

func validateTransformInput(in TransformInput) (string, error) {
	if len(in.Image) == 0 {
		return "", utils.InvalidRequest("image is required")
	}
	declared := strings.ToLower(strings.TrimSpace(in.DeclaredMIME))
	if declared != "" && !strings.HasPrefix(declared, "image/") {
		return "", utils.InvalidRequest("file must be an image")
	}
	sniffed, ok := utils.SniffImageMIME(in.Image)
	if !ok {
		return "", utils.InvalidRequest("file must be an image")
	}
	if strings.TrimSpace(in.EraTheme) == "" && strings.TrimSpace(in.CustomPrompt) == "" {
		return "", utils.InvalidRequest("either eraTheme or customPrompt is required")
	}
	if len(in.CustomPrompt) > maxCustomPromptLen {
		return "", utils.InvalidRequest(fmt.Sprintf("customPrompt must be at most %d characters", maxCustomPromptLen))
	}
	return sniffed, nil
}

func sanitizeFileName(name, mimeType string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	clean = strings.Trim(clean, ".-")
	if clean == "" {
		clean = "upload" + utils.ExtensionForMIME(mimeType)
	}
	return clean
}

// compensate deletes staged assets concurrently. Failures are logged only.
func (t *TransformService) compensate(log *zap.Logger, paths []string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	var g errgroup.Group
	for _, p := range paths {
		g.Go(func() error {
			if err := t.storage.Delete(ctx, p); err != nil {
				t.metrics.CleanupFailures.Inc()
				log.Error("failed to delete staged asset", zap.String("path", p), zap.Error(err))
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}

func transformOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, utils.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, utils.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, utils.ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, utils.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}

func toResultResponse(r db_models.TransformResult) response_models.TransformResultResponse {
	return response_models.TransformResultResponse{
		ID:           r.ID.String(),
		OriginalURL:  r.OriginalURL,
		GeneratedURL: r.GeneratedURL,
		Theme:        r.Theme,
		Prompt:       r.Prompt,
		CreatedAt:    r.CreatedAt,
	}
}

func (t *TransformService) ListResults(ctx context.Context, userID string, page, pageSize int) (response_models.PagedResults, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 0 {
		return response_models.PagedResults{}, utils.ErrInvalidPage
	}
	if pageSize < 0 || pageSize > maxPageSize {
		return response_models.PagedResults{}, utils.ErrInvalidPageSize
	}

	rows, total, err := t.resultRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return response_models.PagedResults{}, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	items := make([]response_models.TransformResultResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, toResultResponse(r))
	}
	return response_models.PagedResults{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}
