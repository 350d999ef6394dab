package services

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"timelens/internal/config"
	"timelens/internal/infra"
	"timelens/pkg/utils"
)

const (
	maxProviderCalls    = 3
	initialRetryBackoff = time.Second
)

type GenerateInput struct {
	Image        []byte
	MIMEType     string
	Theme        string
	CustomPrompt string
}

type GeneratedImage struct {
	Data         []byte
	MIMEType     string
	PromptUsed   string
	Attempts     int
	UsedFallback bool
}

type GenerationServiceInterface interface {
	Generate(ctx context.Context, in GenerateInput) (GeneratedImage, error)
}

type GenerationService struct {
	provider    utils.ImageProvider
	metrics     *infra.Metrics
	log         *zap.Logger
	callTimeout time.Duration
	newBackOff  func() backoff.BackOff
}

func NewGenerationService(provider utils.ImageProvider, cfg config.Config, metrics *infra.Metrics, log *zap.Logger) GenerationServiceInterface {
	return &GenerationService{
		provider:    provider,
		metrics:     metrics,
		log:         log,
		callTimeout: cfg.Generation.Timeout,
		newBackOff:  defaultProviderBackOff,
	}
}

// defaultProviderBackOff waits 1s then 2s between the three calls.
func defaultProviderBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialRetryBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithMaxRetries(exp, maxProviderCalls-1)
}

// Generate runs the primary prompt and, for era themes only, one fallback
// prompt after a refusal. Each prompt gets bounded retries on transient
// provider errors.
func (g *GenerationService) Generate(ctx context.Context, in GenerateInput) (GeneratedImage, error) {
	custom := strings.TrimSpace(in.CustomPrompt)
	prompt := custom
	if prompt == "" {
		prompt = utils.EraPrompt(in.Theme)
	}

	img, attempts, err := g.generateWithRetry(ctx, in, prompt)
	if err == nil {
		return GeneratedImage{Data: img.Data, MIMEType: img.MIMEType, PromptUsed: prompt, Attempts: attempts}, nil
	}

	if utils.ProviderErrorKindOf(err) == utils.ProviderRefused && custom == "" {
		fallback := utils.FallbackPrompt(in.Theme)
		g.log.Warn("primary prompt refused, trying fallback prompt",
			zap.String("theme", utils.NormalizeTheme(in.Theme)), zap.Error(err))

		img, n, ferr := g.generateWithRetry(ctx, in, fallback)
		attempts += n
		if ferr == nil {
			return GeneratedImage{
				Data:         img.Data,
				MIMEType:     img.MIMEType,
				PromptUsed:   fallback,
				Attempts:     attempts,
				UsedFallback: true,
			}, nil
		}
		err = ferr
	}

	return GeneratedImage{}, &utils.GenerationFailedError{Attempts: attempts, Cause: err}
}

func (g *GenerationService) generateWithRetry(ctx context.Context, in GenerateInput, prompt string) (utils.ProviderImage, int, error) {
	attempts := 0
	op := func() (utils.ProviderImage, error) {
		attempts++
		img, err := g.call(ctx, in, prompt)
		if err == nil {
			g.metrics.GenerationAttempts.WithLabelValues(g.provider.Name(), "ok").Inc()
			return img, nil
		}

		kind := utils.ProviderErrorKindOf(err)
		g.metrics.GenerationAttempts.WithLabelValues(g.provider.Name(), kind.String()).Inc()
		if kind != utils.ProviderTransient || ctx.Err() != nil {
			return utils.ProviderImage{}, backoff.Permanent(err)
		}
		return utils.ProviderImage{}, err
	}

	notify := func(err error, wait time.Duration) {
		g.log.Warn("transient provider error, retrying",
			zap.String("provider", g.provider.Name()),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	img, err := backoff.RetryNotifyWithData(op, backoff.WithContext(g.newBackOff(), ctx), notify)
	return img, attempts, err
}

func (g *GenerationService) call(ctx context.Context, in GenerateInput, prompt string) (utils.ProviderImage, error) {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}
	return g.provider.Generate(ctx, in.Image, in.MIMEType, prompt)
}
