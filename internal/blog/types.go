// Package blog holds the domain types shared by the generation pipeline,
// its stores and its HTTP surface.
package blog

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus is the status carried by a single step log record.
type StepStatus string

const (
	StepStarted    StepStatus = "started"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Terminal reports whether no further records are expected after s
// for the run-level pseudo-step.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// StepName identifies one stage of the pipeline.
type StepName string

const (
	StepFetchTrends      StepName = "fetch-trends"
	StepChooseTopic      StepName = "choose-topic"
	StepResearch         StepName = "research"
	StepGenerateBlog     StepName = "generate-blog"
	StepAddInternalLinks StepName = "add-internal-links"
	StepGenerateMetadata StepName = "generate-metadata"
	StepGetImage         StepName = "get-image"
	StepSaveToDatabase   StepName = "save-to-database"
	StepSaveKeywords     StepName = "save-keywords"

	// StepWorkflow is the run-level pseudo-step written first and last.
	StepWorkflow StepName = "workflow"
)

var stages = []StepName{
	StepFetchTrends,
	StepChooseTopic,
	StepResearch,
	StepGenerateBlog,
	StepAddInternalLinks,
	StepGenerateMetadata,
	StepGetImage,
	StepSaveToDatabase,
	StepSaveKeywords,
}

// Stages returns the nine pipeline stages in execution order.
func Stages() []StepName {
	out := make([]StepName, len(stages))
	copy(out, stages)
	return out
}

// StageIndex returns the 1-based position of name in the pipeline,
// or 0 for names that are not stages.
func StageIndex(name StepName) int {
	for i, s := range stages {
		if s == name {
			return i + 1
		}
	}
	return 0
}

// StepRecord is one immutable step log entry. ID, StepNumber and CreatedAt
// are assigned by the store on append.
type StepRecord struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"`
	StepName     StepName       `json:"step_name"`
	StepNumber   int            `json:"step_number"`
	Status       StepStatus     `json:"status"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorStack   string         `json:"error_stack,omitempty"`
	DurationMs   *int64         `json:"duration_ms,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// WorkflowStatus is the externally observable state of a run, derived
// entirely from its step records.
type WorkflowStatus struct {
	WorkflowID  string       `json:"workflow_id"`
	Status      StepStatus   `json:"status"`
	CurrentStep StepName     `json:"current_step"`
	StepNumber  int          `json:"step_number"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	LastUpdated time.Time    `json:"last_updated"`
	Steps       []StepRecord `json:"steps"`
}

// DeriveStatus builds a WorkflowStatus from records ordered by creation.
// It returns nil when records is empty.
func DeriveStatus(workflowID string, records []StepRecord) *WorkflowStatus {
	if len(records) == 0 {
		return nil
	}
	first := records[0]
	last := records[len(records)-1]
	st := &WorkflowStatus{
		WorkflowID:  workflowID,
		Status:      last.Status,
		CurrentStep: last.StepName,
		StepNumber:  last.StepNumber,
		StartedAt:   first.CreatedAt,
		LastUpdated: last.CreatedAt,
		Steps:       records,
	}
	if last.Status == StepFailed {
		st.Error = last.ErrorMessage
	}
	return st
}

// ArticleStatus is the publication state of an article.
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
	ArticleArchived  ArticleStatus = "archived"
)

// Valid reports whether s is one of the known publication states.
func (s ArticleStatus) Valid() bool {
	switch s {
	case ArticleDraft, ArticlePublished, ArticleArchived:
		return true
	}
	return false
}

// Image is a header image reference.
type Image struct {
	Name         string `json:"name"`
	FullURL      string `json:"full_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Source       string `json:"source,omitempty"` // strategy that produced it
}

// Article is the work product of a successful run.
type Article struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Slug            string        `json:"slug"`
	Content         string        `json:"content"`
	MetaDescription string        `json:"meta_description"`
	PrimaryKeyword  string        `json:"primary_keyword"`
	Image           *Image        `json:"image,omitempty"`
	Status          ArticleStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	PublishedAt     *time.Time    `json:"published_at,omitempty"`
}

// ArticleQuery selects one page of articles, newest first. An empty Status
// matches every article.
type ArticleQuery struct {
	Status ArticleStatus
	Limit  int
	Offset int
}

// TrendCandidate is a trending search phrase with a relevance score.
type TrendCandidate struct {
	Query string `json:"query"`
	Link  string `json:"link,omitempty"`
	Score int    `json:"score"`
}

// ResearchItem is one excerpt returned by the research source.
type ResearchItem struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// ResearchBundle is the ordered research result and its flattened text.
type ResearchBundle struct {
	Items []ResearchItem
	Text  string
}

// LinkCandidate is a previously stored article eligible as an internal link target.
type LinkCandidate struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	PrimaryKeyword string   `json:"primary_keyword"`
	Keywords       []string `json:"keywords"`
}

// Metadata is the output of the metadata stage.
type Metadata struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewWorkflowID returns a fresh opaque run identifier.
func NewWorkflowID() string {
	return uuid.NewString()
}
