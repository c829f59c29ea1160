package httpapi

import (
	"time"

	"PostForge/internal/domain"
)

type stepView struct {
	Seq        int       `json:"seq"`
	Step       string    `json:"step"`
	Platform   string    `json:"platform,omitempty"`
	Status     string    `json:"status"`
	Kind       string    `json:"kind,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

type postView struct {
	Platform string   `json:"platform"`
	Body     string   `json:"body"`
	Hashtags []string `json:"hashtags,omitempty"`
	Strategy string   `json:"strategy_used"`
	Accepted bool     `json:"accepted"`
	Reason   string   `json:"reject_reason,omitempty"`
}

type runView struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"project_id"`
	Trigger         string     `json:"trigger"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	ArticlesFetched int        `json:"articles_fetched"`
	ArticlesNew     int        `json:"articles_new"`
	ChosenURL       string     `json:"chosen_url,omitempty"`
	ModelUsed       string     `json:"model_used,omitempty"`
	UsedFallback    bool       `json:"used_fallback"`
	Steps           []stepView `json:"steps"`
	Posts           []postView `json:"posts"`
}

func toRunView(run domain.PipelineRun) runView {
	v := runView{
		ID:              run.ID,
		ProjectID:       run.ProjectID,
		Trigger:         string(run.Trigger),
		Status:          string(run.Status),
		StartedAt:       run.StartedAt,
		EndedAt:         run.EndedAt,
		ArticlesFetched: run.ArticlesFetched,
		ArticlesNew:     run.ArticlesNew,
		ChosenURL:       run.ChosenURL,
		ModelUsed:       run.ModelUsed,
		UsedFallback:    run.UsedFallback,
		Steps:           make([]stepView, 0, len(run.Steps)),
		Posts:           make([]postView, 0, len(run.Posts)),
	}
	for _, s := range run.Steps {
		v.Steps = append(v.Steps, stepView{
			Seq:        s.Seq,
			Step:       s.StepName,
			Platform:   string(s.Platform),
			Status:     string(s.Status),
			Kind:       string(s.Kind),
			Detail:     s.Detail,
			StartedAt:  s.StartedAt,
			DurationMS: s.Duration.Milliseconds(),
		})
	}
	for _, p := range run.Posts {
		pv := postView{
			Platform: string(p.Platform),
			Body:     p.BodyText,
			Hashtags: p.Hashtags,
			Strategy: p.StrategyUsed,
		}
		if p.ValidationVerdict != nil {
			pv.Accepted = p.ValidationVerdict.Accepted
			pv.Reason = string(p.ValidationVerdict.Reason)
		}
		v.Posts = append(v.Posts, pv)
	}
	return v
}
