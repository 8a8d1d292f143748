package model

import "time"

// Project is one remote project as returned by the catalog endpoint.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WorkflowCount int       `json:"workflow_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProjectList struct {
	Projects []Project `json:"projects"`
}

// GenerationJob is the recorded outcome of one remote generation call.
type GenerationJob struct {
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Status      JobStatus `json:"status"`
	Content     string    `json:"content,omitempty"`
	Error       string    `json:"error,omitempty"`
}

func SucceededJob(p Project, content string) GenerationJob {
	return GenerationJob{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Status:      JobSuccess,
		Content:     content,
	}
}

func FailedJob(p Project, message string) GenerationJob {
	if message == "" {
		message = "unknown error"
	}
	return GenerationJob{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Status:      JobError,
		Error:       message,
	}
}

func (j GenerationJob) Succeeded() bool {
	return j.Status == JobSuccess
}

// BatchRun is the ordered outcome of one sequential pass over a selection snapshot.
type BatchRun struct {
	RunID      string          `json:"run_id"`
	Mode       GenerationMode  `json:"mode"`
	Total      int             `json:"total"`
	Completed  int             `json:"completed"`
	Outcomes   []GenerationJob `json:"outcomes"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at,omitempty"`
}

func (r BatchRun) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

func (r BatchRun) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

func (r BatchRun) Done() bool {
	return r.Total > 0 && r.Completed == r.Total
}
