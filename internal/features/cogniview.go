package features

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"cogniview/internal/model"
	"cogniview/internal/repo"
	"cogniview/internal/service"
	"cogniview/internal/utils/checker"
	gen "cogniview/internal/utils/generator"
	"cogniview/internal/utils/redis"
	"cogniview/internal/utils/sse"
	"cogniview/internal/utils/token"
	rabbit "cogniview/pkg/rabbit/pkg"
)

const (
	QueueSessionFinished  = "session.finished"
	QueueCandidateDecided = "candidate.decision"

	accessCodeAttempts = 10
	suggestedParams    = 4
)

// Caller is the authenticated identity of a request, resolved by the transport layer.
type Caller struct {
	ID    string
	Roles []string
	Name  string
	Email string
}

// Scorer is the AI collaborator used for scoring and recruiter assistance.
type Scorer interface {
	Score(ctx context.Context, jobRole string, params []model.EvaluationParameter, transcript []model.TranscriptPair) (*service.Scorecard, error)
	SuggestParameters(ctx context.Context, jobRole string) ([]model.EvaluationParameter, error)
	RephraseQuestion(ctx context.Context, question string) ([]string, error)
}

type ICogniview interface {
	UpsertProfile(ctx context.Context, caller Caller, p *model.Profile) (*model.Profile, error)
	GetProfile(ctx context.Context, caller Caller) (*model.Profile, error)

	CreateInterview(ctx context.Context, caller Caller, in *model.Interview) (*model.Interview, error)
	ListInterviews(ctx context.Context, caller Caller) ([]*model.Interview, error)
	GetInterview(ctx context.Context, caller Caller, id string) (*model.Interview, error)
	ArchiveInterview(ctx context.Context, caller Caller, id string) (*model.Interview, error)
	SuggestParameters(ctx context.Context, caller Caller, jobRole string) ([]model.EvaluationParameter, error)
	RephraseQuestion(ctx context.Context, caller Caller, question string) ([]string, error)

	RedeemAccessCode(ctx context.Context, caller Caller, code string) (*model.InterviewSession, error)
	ListCandidateSessions(ctx context.Context, caller Caller) ([]*model.InterviewSession, error)
	IssueRoomToken(ctx context.Context, caller Caller, sessionID string) (string, time.Time, error)

	ListInterviewSessions(ctx context.Context, caller Caller, interviewID, sort string) ([]*model.InterviewSession, error)
	InterviewStats(ctx context.Context, caller Caller, interviewID string) (*model.InterviewStats, error)
	Evaluate(ctx context.Context, caller Caller, sessionID string) (*Evaluation, error)
	UpdateDecision(ctx context.Context, caller Caller, sessionID string, decision model.Decision) (*model.InterviewSession, error)
}

type Deps struct {
	Repo    *repo.Repository
	Redis   redis.Redis
	Rabbit  rabbit.Rabbit
	Hub     *sse.Hub
	Scorer  Scorer
	Tokens  *token.Issuer
	Logger  *zap.Logger
	Options Options
}

type Options struct {
	CacheTTL      time.Duration
	RedeemLockTTL time.Duration
}

func DefaultOptions() Options {
	return Options{CacheTTL: 24 * time.Hour, RedeemLockTTL: 10 * time.Second}
}

// Cogniview implements the recruiter and candidate use cases.
type Cogniview struct {
	repo      repo.Repository
	redis     redis.Redis
	rabbit    rabbit.Rabbit
	hub       *sse.Hub
	scorer    Scorer
	tokens    *token.Issuer
	logger    *zap.Logger
	opts      Options
	evaluator *Evaluator
	now       func() time.Time
}

func New(d Deps) *Cogniview {
	opts := d.Options
	if opts.CacheTTL <= 0 {
		opts = DefaultOptions()
	}
	r := d.Redis
	if r == nil {
		r = redis.Dummy()
	}
	mq := d.Rabbit
	if mq == nil {
		mq = rabbit.NewDummy()
	}
	hub := d.Hub
	if hub == nil {
		hub = sse.NewHub()
	}

	s := &Cogniview{
		repo:   *d.Repo,
		redis:  r,
		rabbit: mq,
		hub:    hub,
		scorer: d.Scorer,
		tokens: d.Tokens,
		logger: d.Logger,
		opts:   opts,
		now:    time.Now,
	}
	s.evaluator = newEvaluator(s)
	return s
}

// Evaluator exposes the evaluation pipeline for background jobs.
func (s *Cogniview) Evaluator() *Evaluator { return s.evaluator }

func isAdmin(caller Caller) bool {
	return len(caller.Roles) == 1 && model.Role(caller.Roles[0]) == model.RoleAdmin
}

func (s *Cogniview) UpsertProfile(ctx context.Context, caller Caller, p *model.Profile) (*model.Profile, error) {
	if caller.ID == "" {
		return nil, model.ErrUnauthenticated
	}
	p.ID = caller.ID
	p.Email = strings.TrimSpace(p.Email)
	p.Name = strings.TrimSpace(p.Name)
	if p.Email == "" {
		p.Email = caller.Email
	}
	if p.Name == "" {
		p.Name = caller.Name
	}
	if p.Email == "" || p.Name == "" {
		return nil, model.Invalid("name and email are required")
	}
	if !p.Role.Valid() || p.Role == model.RoleAdmin {
		return nil, model.Invalid("role must be recruiter or interviewee")
	}
	if p.Role == model.RoleRecruiter && strings.TrimSpace(p.CompanyName) == "" {
		return nil, model.Invalid("company name is required for recruiters")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	if err := s.repo.Profile.Upsert(ctx, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, model.Invalid("email %s is already registered", p.Email)
		}
		s.logger.Error("Failed to save profile", zap.String("userId", caller.ID), zap.Error(err))
		return nil, err
	}
	return s.repo.Profile.Get(ctx, caller.ID)
}

func (s *Cogniview) GetProfile(ctx context.Context, caller Caller) (*model.Profile, error) {
	if caller.ID == "" {
		return nil, model.ErrUnauthenticated
	}
	return s.repo.Profile.Get(ctx, caller.ID)
}

func (s *Cogniview) CreateInterview(ctx context.Context, caller Caller, in *model.Interview) (*model.Interview, error) {
	if err := checker.CheckRole(model.RoleRecruiter, caller.Roles); err != nil {
		return nil, err
	}

	in.JobRole = strings.TrimSpace(in.JobRole)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	in.ID = gen.GenerateUUID()
	in.RecruiterID = caller.ID
	in.Status = model.InterviewActive
	in.CreatedAt = s.now()
	if strings.TrimSpace(in.Title) == "" {
		in.Title = in.JobRole
	}
	for i := range in.Questions {
		q := &in.Questions[i]
		q.Text = strings.TrimSpace(q.Text)
		if q.ID == "" {
			q.ID = gen.GenerateUUID()
		}
		if len(q.Variants) == 0 {
			q.Variants = []string{q.Text}
		}
	}
	for i := range in.Parameters {
		if in.Parameters[i].ID == "" {
			in.Parameters[i].ID = gen.GenerateUUID()
		}
	}

	// Generate a unique access code
	for attempt := 0; ; attempt++ {
		if attempt == accessCodeAttempts {
			return nil, fmt.Errorf("failed to allocate a unique access code after %d attempts", attempt)
		}
		code, err := gen.GenerateAccessCode()
		if err != nil {
			return nil, err
		}
		exists, err := s.repo.Interview.AccessCodeExists(ctx, code)
		if err != nil {
			s.logger.Error("Failed to query access code", zap.Error(err))
			return nil, fmt.Errorf("failed to query access code: %w", err)
		}
		if exists {
			continue
		}
		in.AccessCode = code
		err = s.repo.Interview.Create(ctx, in)
		if errors.Is(err, repo.ErrDuplicate) {
			continue
		}
		if err != nil {
			s.logger.Error("Failed to create interview", zap.Error(err))
			return nil, err
		}
		break
	}

	s.logger.Info("Created interview",
		zap.String("interviewId", in.ID),
		zap.String("accessCode", in.AccessCode),
		zap.Int("questions", len(in.Questions)))
	return in, nil
}

func (s *Cogniview) ListInterviews(ctx context.Context, caller Caller) ([]*model.Interview, error) {
	if err := checker.CheckRole(model.RoleRecruiter, caller.Roles); err != nil {
		return nil, err
	}
	return s.repo.Interview.ListByRecruiter(ctx, caller.ID)
}

// ownedInterview loads an interview the caller may manage.
func (s *Cogniview) ownedInterview(ctx context.Context, caller Caller, id string) (*model.Interview, error) {
	if err := checker.CheckRole(model.RoleRecruiter, caller.Roles); err != nil {
		return nil, err
	}
	interview, err := s.repo.Interview.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if interview.RecruiterID != caller.ID && !isAdmin(caller) {
		return nil, fmt.Errorf("%w: interview belongs to another recruiter", model.ErrForbidden)
	}
	return interview, nil
}

func (s *Cogniview) GetInterview(ctx context.Context, caller Caller, id string) (*model.Interview, error) {
	return s.ownedInterview(ctx, caller, id)
}

func (s *Cogniview) ArchiveInterview(ctx context.Context, caller Caller, id string) (*model.Interview, error) {
	interview, err := s.ownedInterview(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if interview.Status == model.InterviewArchived {
		return interview, nil
	}
	if err := s.repo.Interview.UpdateStatus(ctx, id, model.InterviewArchived); err != nil {
		s.logger.Error("Failed to archive interview", zap.String("interviewId", id), zap.Error(err))
		return nil, err
	}
	interview.Status = model.InterviewArchived
	return interview, nil
}

// SuggestParameters never fails on provider errors; it returns an empty list instead.
func (s *Cogniview) SuggestParameters(ctx context.Context, caller Caller, jobRole string) ([]model.EvaluationParameter, error) {
	if err := checker.CheckRole(model.RoleRecruiter, caller.Roles); err != nil {
		return nil, err
	}
	jobRole = strings.TrimSpace(jobRole)
	if jobRole == "" {
		return nil, model.Invalid("job role is required")
	}

	params, err := s.scorer.SuggestParameters(ctx, jobRole)
	if err != nil {
		s.logger.Warn("Failed to suggest parameters", zap.String("jobRole", jobRole), zap.Error(err))
		return []model.EvaluationParameter{}, nil
	}
	if len(params) > suggestedParams {
		params = params[:suggestedParams]
	}
	for i := range params {
		params[i].ID = gen.GenerateUUID()
	}
	return params, nil
}

// RephraseQuestion falls back to the original text when the provider fails.
func (s *Cogniview) RephraseQuestion(ctx context.Context, caller Caller, question string) ([]string, error) {
	if err := checker.CheckRole(model.RoleRecruiter, caller.Roles); err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, model.Invalid("question is required")
	}

	variants, err := s.scorer.RephraseQuestion(ctx, question)
	if err != nil || len(variants) == 0 {
		s.logger.Warn("Failed to rephrase question", zap.Error(err))
		return []string{question}, nil
	}
	return variants, nil
}
