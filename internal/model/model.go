package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleRecruiter   Role = "recruiter"
	RoleInterviewee Role = "interviewee"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleRecruiter, RoleInterviewee, RoleAdmin:
		return true
	}
	return false
}

// Profile is the identity record of a platform user.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	CompanyName string    `json:"companyName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type InterviewStatus string

const (
	InterviewDraft    InterviewStatus = "draft"
	InterviewActive   InterviewStatus = "active"
	InterviewArchived InterviewStatus = "archived"
)

// Question is one scripted prompt. Variants are stored but only Text reaches the conversation script.
type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Variants []string `json:"variants"`
}

type EvaluationParameter struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}

// Interview is a published job assessment. It is immutable once created apart from archival.
type Interview struct {
	ID          string                `json:"id"`
	RecruiterID string                `json:"recruiterId"`
	CompanyName string                `json:"companyName"`
	JobRole     string                `json:"jobRole"`
	Title       string                `json:"title"`
	AccessCode  string                `json:"accessCode"`
	Questions   []Question            `json:"questions"`
	Parameters  []EvaluationParameter `json:"parameters"`
	Status      InterviewStatus       `json:"status"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// Validate checks the creation-time invariants. It is not re-run on later reads.
func (i *Interview) Validate() error {
	if strings.TrimSpace(i.JobRole) == "" {
		return Invalid("job role is required")
	}
	if strings.TrimSpace(i.CompanyName) == "" {
		return Invalid("company name is required")
	}
	if len(i.Questions) == 0 {
		return Invalid("at least one question is required")
	}
	for _, q := range i.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return Invalid("question text must not be empty")
		}
	}
	if len(i.Parameters) > 0 {
		total := 0
		for _, p := range i.Parameters {
			if strings.TrimSpace(p.Name) == "" {
				return Invalid("parameter name must not be empty")
			}
			if p.Weight < 0 {
				return Invalid("parameter weight must not be negative")
			}
			total += p.Weight
		}
		if total != 100 {
			return Invalid("parameter weights must sum to 100, got %d", total)
		}
	}
	return nil
}

// InterviewSession is one candidate's attempt at one Interview.
type InterviewSession struct {
	ID                string        `json:"id"`
	InterviewID       string        `json:"interviewId"`
	InterviewTitle    string        `json:"interviewTitle"`
	CompanyName       string        `json:"companyName"`
	CandidateID       string        `json:"candidateId"`
	CandidateName     string        `json:"candidateName"`
	CandidateEmail    string        `json:"candidateEmail"`
	Status            SessionStatus `json:"status"`
	Decision          Decision      `json:"decision"`
	StartedAt         time.Time     `json:"startedAt"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	TerminationReason string        `json:"terminationReason,omitempty"`
}

const (
	TranscriptQuestionID   = "verbal-assessment"
	TranscriptQuestionText = "Verbal Evaluation"
)

type InterviewResponse struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	QuestionID   string    `json:"questionId"`
	QuestionText string    `json:"questionText"`
	ResponseText string    `json:"responseText"`
	Timestamp    time.Time `json:"timestamp"`
}

type Strength struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

type Weakness struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestions string `json:"suggestions"`
}

type Analysis struct {
	Summary        string     `json:"summary"`
	Strengths      []Strength `json:"strengths"`
	Weaknesses     []Weakness `json:"weaknesses"`
	Recommendation string     `json:"recommendation"`
	Confidence     float64    `json:"confidence"`
}

type EvaluationResult struct {
	ID              string             `json:"id"`
	ResponseID      string             `json:"responseId"`
	SessionID       string             `json:"sessionId"`
	OverallScore    float64            `json:"overallScore"`
	ParameterScores map[string]float64 `json:"parameterScores"`
	Analysis        Analysis           `json:"analysis"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// TranscriptPair is one question/answer unit handed to the scorer.
type TranscriptPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// InterviewStats summarizes the sessions of one interview.
type InterviewStats struct {
	Entries int `json:"entries"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	Flagged int `json:"flagged"`
}
