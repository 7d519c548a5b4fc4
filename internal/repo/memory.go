package repo

import (
	"context"
	"fmt"
	gosort "sort"
	"strings"
	"sync"
	"time"

	"cogniview/internal/model"
	"cogniview/internal/utils/sort"
)

// memStore backs the in-memory repositories used by dev mode and tests.
type memStore struct {
	mu          sync.RWMutex
	profiles    map[string]model.Profile
	interviews  map[string]model.Interview
	sessions    map[string]model.InterviewSession
	responses   map[string][]model.InterviewResponse
	evaluations map[string]model.EvaluationResult
}

// NewMemory returns a Repository kept entirely in process memory.
func NewMemory() *Repository {
	st := &memStore{
		profiles:    map[string]model.Profile{},
		interviews:  map[string]model.Interview{},
		sessions:    map[string]model.InterviewSession{},
		responses:   map[string][]model.InterviewResponse{},
		evaluations: map[string]model.EvaluationResult{},
	}
	return &Repository{
		Profile:    &memProfile{st},
		Interview:  &memInterview{st},
		Session:    &memSession{st},
		Response:   &memResponse{st},
		Evaluation: &memEvaluation{st},
	}
}

type memProfile struct{ st *memStore }

func (r *memProfile) Upsert(_ context.Context, p *model.Profile) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for id, other := range r.st.profiles {
		if id != p.ID && strings.EqualFold(other.Email, p.Email) {
			return fmt.Errorf("email %s: %w", p.Email, ErrDuplicate)
		}
	}
	if existing, ok := r.st.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	r.st.profiles[p.ID] = *p
	return nil
}

func (r *memProfile) Get(_ context.Context, id string) (*model.Profile, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	p, ok := r.st.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
	}
	return &p, nil
}

type memInterview struct{ st *memStore }

func cloneInterview(i model.Interview) *model.Interview {
	i.Questions = append([]model.Question(nil), i.Questions...)
	i.Parameters = append([]model.EvaluationParameter(nil), i.Parameters...)
	return &i
}

func (r *memInterview) Create(_ context.Context, interview *model.Interview) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.interviews[interview.ID]; ok {
		return fmt.Errorf("interview %s: %w", interview.ID, ErrDuplicate)
	}
	code := strings.ToUpper(interview.AccessCode)
	for _, other := range r.st.interviews {
		if other.AccessCode == code {
			return fmt.Errorf("access code %s: %w", code, ErrDuplicate)
		}
	}
	stored := *cloneInterview(*interview)
	stored.AccessCode = code
	r.st.interviews[interview.ID] = stored
	return nil
}

func (r *memInterview) Get(_ context.Context, id string) (*model.Interview, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	i, ok := r.st.interviews[id]
	if !ok {
		return nil, fmt.Errorf("interview: %w", model.ErrNotFound)
	}
	return cloneInterview(i), nil
}

func (r *memInterview) GetByAccessCode(_ context.Context, code string) (*model.Interview, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, i := range r.st.interviews {
		if i.AccessCode == code {
			return cloneInterview(i), nil
		}
	}
	return nil, fmt.Errorf("interview: %w", model.ErrNotFound)
}

func (r *memInterview) ListByRecruiter(_ context.Context, recruiterID string) ([]*model.Interview, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var out []*model.Interview
	for _, i := range r.st.interviews {
		if i.RecruiterID == recruiterID {
			out = append(out, cloneInterview(i))
		}
	}
	gosort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (r *memInterview) UpdateStatus(_ context.Context, id string, status model.InterviewStatus) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	i, ok := r.st.interviews[id]
	if !ok {
		return fmt.Errorf("interview %s: %w", id, model.ErrNotFound)
	}
	i.Status = status
	r.st.interviews[id] = i
	return nil
}

func (r *memInterview) AccessCodeExists(_ context.Context, code string) (bool, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	code = strings.ToUpper(code)
	for _, i := range r.st.interviews {
		if i.AccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

type memSession struct{ st *memStore }

func (r *memSession) Create(_ context.Context, s *model.InterviewSession) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, other := range r.st.sessions {
		if other.ID == s.ID || (other.CandidateID == s.CandidateID && other.InterviewID == s.InterviewID) {
			return fmt.Errorf("session for candidate %s: %w", s.CandidateID, ErrDuplicate)
		}
	}
	r.st.sessions[s.ID] = *s
	return nil
}

func (r *memSession) Get(_ context.Context, id string) (*model.InterviewSession, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	s, ok := r.st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: %w", model.ErrNotFound)
	}
	return &s, nil
}

func (r *memSession) GetByCandidateAndInterview(_ context.Context, candidateID, interviewID string) (*model.InterviewSession, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	for _, s := range r.st.sessions {
		if s.CandidateID == candidateID && s.InterviewID == interviewID {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("session: %w", model.ErrNotFound)
}

func (r *memSession) filter(keep func(model.InterviewSession) bool) []*model.InterviewSession {
	var out []*model.InterviewSession
	for _, s := range r.st.sessions {
		if keep(s) {
			s := s
			out = append(out, &s)
		}
	}
	return out
}

func (r *memSession) ListByCandidate(_ context.Context, candidateID string) ([]*model.InterviewSession, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	out := r.filter(func(s model.InterviewSession) bool { return s.CandidateID == candidateID })
	gosort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out, nil
}

func (r *memSession) ListByInterview(_ context.Context, interviewID string, sorts []sort.Method) ([]*model.InterviewSession, error) {
	for _, m := range sorts {
		if !sort.Contains(SessionSortColumns, m.Name) {
			return nil, fmt.Errorf("%w: column not found", model.ErrInvalidInput)
		}
	}
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	out := r.filter(func(s model.InterviewSession) bool { return s.InterviewID == interviewID })
	if len(sorts) == 0 {
		sorts = []sort.Method{{Name: "started_at", Type: sort.Desc}}
	}
	gosort.SliceStable(out, func(a, b int) bool {
		for _, m := range sorts {
			c := compareSession(out[a], out[b], m.Name)
			if c == 0 {
				continue
			}
			if m.Type == sort.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out, nil
}

func compareSession(a, b *model.InterviewSession, column string) int {
	switch column {
	case "started_at":
		return a.StartedAt.Compare(b.StartedAt)
	case "completed_at":
		var at, bt time.Time
		if a.CompletedAt != nil {
			at = *a.CompletedAt
		}
		if b.CompletedAt != nil {
			bt = *b.CompletedAt
		}
		return at.Compare(bt)
	case "candidate_name":
		return strings.Compare(a.CandidateName, b.CandidateName)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "decision":
		return strings.Compare(string(a.Decision), string(b.Decision))
	}
	return 0
}

func (r *memSession) Stats(_ context.Context, interviewID string) (*model.InterviewStats, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var st model.InterviewStats
	for _, s := range r.st.sessions {
		if s.InterviewID != interviewID {
			continue
		}
		st.Entries++
		switch s.Decision {
		case model.DecisionPassed:
			st.Passed++
		case model.DecisionFailed:
			st.Failed++
		case model.DecisionPending:
			st.Pending++
		}
		if s.Status == model.SessionTerminatedEarly {
			st.Flagged++
		}
	}
	return &st, nil
}

func (r *memSession) UpdateDecision(_ context.Context, id string, decision model.Decision) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	stored, ok := r.st.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	stored.Decision = decision
	r.st.sessions[id] = stored
	return nil
}

func (r *memSession) Finish(_ context.Context, s *model.InterviewSession, response *model.InterviewResponse) error {
	if !s.Status.Final() {
		return fmt.Errorf("%w: finish with status %s", model.ErrIllegalTransition, s.Status)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	stored, ok := r.st.sessions[s.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}
	if stored.Status != model.SessionInProgress {
		return fmt.Errorf("%w: %s -> %s", model.ErrIllegalTransition, stored.Status, s.Status)
	}
	stored.Status = s.Status
	stored.CompletedAt = s.CompletedAt
	if s.Status == model.SessionTerminatedEarly {
		stored.TerminationReason = s.TerminationReason
		stored.Decision = model.DecisionFailed
	}
	if response != nil {
		r.st.responses[s.ID] = append(r.st.responses[s.ID], *response)
	}
	r.st.sessions[s.ID] = stored
	return nil
}

func (r *memSession) ListStale(_ context.Context, startedBefore time.Time, limit int) ([]*model.InterviewSession, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	out := r.filter(func(s model.InterviewSession) bool {
		return s.Status == model.SessionInProgress && s.StartedAt.Before(startedBefore)
	})
	gosort.Slice(out, func(a, b int) bool { return out[a].StartedAt.Before(out[b].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memResponse struct{ st *memStore }

func (r *memResponse) ListBySession(_ context.Context, sessionID string) ([]*model.InterviewResponse, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var out []*model.InterviewResponse
	for _, resp := range r.st.responses[sessionID] {
		resp := resp
		out = append(out, &resp)
	}
	return out, nil
}

type memEvaluation struct{ st *memStore }

func (r *memEvaluation) GetBySession(_ context.Context, sessionID string) (*model.EvaluationResult, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	e, ok := r.st.evaluations[sessionID]
	if !ok {
		return nil, fmt.Errorf("evaluation for session %s: %w", sessionID, model.ErrNotFound)
	}
	return &e, nil
}

func (r *memEvaluation) Create(_ context.Context, e *model.EvaluationResult) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.evaluations[e.SessionID]; ok {
		return fmt.Errorf("evaluation for session %s: %w", e.SessionID, ErrDuplicate)
	}
	r.st.evaluations[e.SessionID] = *e
	return nil
}
