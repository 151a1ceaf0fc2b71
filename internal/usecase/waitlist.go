package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"echoe-api/internal/domain"
	"echoe-api/internal/emailtmpl"
	"echoe-api/internal/secrets"
)

const DefaultSender = "echoe <waitlist@echoe.co>"

// signupTrackTimeout bounds the analytics call made after the email is sent.
const signupTrackTimeout = 1500 * time.Millisecond

type EmailSender interface {
	APIKey(ctx context.Context) (string, error)
	Send(ctx context.Context, msg domain.Email) (string, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (domain.Verification, error)
}

type SignupTracker interface {
	TrackSignup(ctx context.Context, email string, consent *domain.ConsentPreferences) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type WaitlistService struct {
	mailer   EmailSender
	verifier TokenVerifier
	tracker  SignupTracker
	from     string
	validate *validator.Validate
	logger   *zap.Logger

	trackTimeout time.Duration
}

type JoinOutput struct {
	MessageID string
}

func NewWaitlistService(mailer EmailSender, verifier TokenVerifier, tracker SignupTracker, from string, logger *zap.Logger) (*WaitlistService, error) {
	if mailer == nil {
		return nil, errors.New("usecase: email sender must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("usecase: token verifier must not be nil")
	}
	if tracker == nil {
		return nil, errors.New("usecase: signup tracker must not be nil")
	}
	if strings.TrimSpace(from) == "" {
		from = DefaultSender
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{
		mailer:   mailer,
		verifier: verifier,
		tracker:  tracker,
		from:     from,
		validate: validator.New(),
		logger:   logger.Named("waitlist"),

		trackTimeout: signupTrackTimeout,
	}, nil
}

// Join validates a submission and sends the welcome email. No outbound call
// happens before the address passes syntax validation and the email
// provider key is known to be present.
func (s *WaitlistService) Join(ctx context.Context, in domain.WaitlistSubmission) (JoinOutput, error) {
	email := strings.TrimSpace(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return JoinOutput{}, newError(ErrorInvalidInput, ReasonInvalidEmail, err)
	}

	if _, err := s.mailer.APIKey(ctx); err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			s.logger.Error("RESEND_API_KEY not configured")
			return JoinOutput{}, newError(ErrorServerMisconfigured, ReasonResendKeyMissing, err)
		}
		s.logger.Error("resolve email provider key", zap.Error(err))
		return JoinOutput{}, newError(ErrorInternal, ReasonSecretsError, err)
	}

	if err := s.verify(ctx, in.TurnstileToken, in.RemoteIP); err != nil {
		return JoinOutput{}, err
	}

	body, err := emailtmpl.Welcome(email)
	if err != nil {
		s.logger.Error("render welcome email", zap.Error(err))
		return JoinOutput{}, newError(ErrorInternal, ReasonTemplateError, err)
	}

	id, err := s.mailer.Send(ctx, domain.Email{
		From:    s.from,
		To:      []string{email},
		Subject: body.Subject,
		HTML:    body.HTML,
		Text:    body.Text,
	})
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return JoinOutput{}, newError(ErrorServerMisconfigured, ReasonResendKeyMissing, err)
		}
		fields := []zap.Field{zap.Error(err)}
		if status, ok := upstreamStatusCode(err); ok {
			fields = append(fields, zap.Int("upstream_status", status))
		}
		s.logger.Error("resend api error", fields...)
		return JoinOutput{}, newError(ErrorUpstream, ReasonResendError, err)
	}
	if id == "" {
		s.logger.Warn("resend accepted send without message id")
	} else {
		s.logger.Info("welcome email sent", zap.String("message_id", id))
	}

	s.trackSignup(ctx, email, in.Consent)
	return JoinOutput{MessageID: id}, nil
}

// trackSignup records the signup on a context detached from the caller's
// cancellation and capped at trackTimeout. Failures are only logged.
func (s *WaitlistService) trackSignup(ctx context.Context, email string, consent *domain.ConsentPreferences) {
	trackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.trackTimeout)
	defer cancel()
	if err := s.tracker.TrackSignup(trackCtx, email, consent); err != nil {
		s.logger.Warn("track signup", zap.Error(err))
	}
}

// verify checks the anti-bot token when a Turnstile secret is configured and
// lets the submission through unchecked otherwise.
func (s *WaitlistService) verify(ctx context.Context, token, remoteIP string) error {
	res, err := s.verifier.Verify(ctx, token, remoteIP)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			s.logger.Debug("turnstile verification disabled")
			return nil
		}
		s.logger.Error("turnstile siteverify failed", zap.Error(err))
		return newError(ErrorUpstream, ReasonTurnstileUnavailable, err)
	}
	if !res.Success {
		s.logger.Warn("turnstile rejected token", zap.Strings("error_codes", res.ErrorCodes))
		return newError(ErrorInvalidInput, ReasonTurnstileRejected, nil)
	}
	return nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
