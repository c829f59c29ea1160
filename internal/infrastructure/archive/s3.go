package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"PostForge/internal/config"
	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

// ObjectPutter is the subset of the S3 client used for archiving.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes sealed runs as JSON documents to a bucket.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

var _ ports.RunArchiver = (*S3Archiver)(nil)

// NewS3Client builds an S3 client for AWS or any S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg config.ArchiveConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Archiver wires a client, bucket and key prefix.
func NewS3Archiver(client ObjectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

type archivedStep struct {
	Seq        int    `json:"seq"`
	Step       string `json:"step"`
	Platform   string `json:"platform,omitempty"`
	Status     string `json:"status"`
	Kind       string `json:"kind,omitempty"`
	Detail     string `json:"detail,omitempty"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
}

type archivedPost struct {
	Platform string   `json:"platform"`
	Body     string   `json:"body"`
	Hashtags []string `json:"hashtags,omitempty"`
	Strategy string   `json:"strategy"`
	Verdict  string   `json:"verdict,omitempty"`
}

type archivedRun struct {
	ID              string         `json:"id"`
	ProjectID       string         `json:"project_id"`
	Trigger         string         `json:"trigger"`
	Status          string         `json:"status"`
	StartedAt       string         `json:"started_at"`
	EndedAt         string         `json:"ended_at,omitempty"`
	ArticlesFetched int            `json:"articles_fetched"`
	ArticlesNew     int            `json:"articles_new"`
	ChosenURL       string         `json:"chosen_url,omitempty"`
	ModelUsed       string         `json:"model_used,omitempty"`
	UsedFallback    bool           `json:"used_fallback"`
	Steps           []archivedStep `json:"steps"`
	Posts           []archivedPost `json:"posts"`
}

// Key returns the object key for a run: prefix/project/YYYY/MM/DD/id.json.
func (a *S3Archiver) Key(run domain.PipelineRun) string {
	day := run.StartedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, run.ProjectID, day, run.ID+".json")
}

// Archive uploads the run document.
func (a *S3Archiver) Archive(ctx context.Context, run domain.PipelineRun) error {
	payload, err := json.MarshalIndent(toArchived(run), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(run)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload run %s: %w", run.ID, err)
	}
	return nil
}

func toArchived(run domain.PipelineRun) archivedRun {
	out := archivedRun{
		ID:              run.ID,
		ProjectID:       run.ProjectID,
		Trigger:         string(run.Trigger),
		Status:          string(run.Status),
		StartedAt:       run.StartedAt.UTC().Format(time.RFC3339),
		ArticlesFetched: run.ArticlesFetched,
		ArticlesNew:     run.ArticlesNew,
		ChosenURL:       run.ChosenURL,
		ModelUsed:       run.ModelUsed,
		UsedFallback:    run.UsedFallback,
		Steps:           make([]archivedStep, 0, len(run.Steps)),
		Posts:           make([]archivedPost, 0, len(run.Posts)),
	}
	if run.EndedAt != nil {
		out.EndedAt = run.EndedAt.UTC().Format(time.RFC3339)
	}
	for _, s := range run.Steps {
		out.Steps = append(out.Steps, archivedStep{
			Seq:        s.Seq,
			Step:       s.StepName,
			Platform:   string(s.Platform),
			Status:     string(s.Status),
			Kind:       string(s.Kind),
			Detail:     s.Detail,
			StartedAt:  s.StartedAt.UTC().Format(time.RFC3339Nano),
			DurationMS: s.Duration.Milliseconds(),
		})
	}
	for _, p := range run.Posts {
		post := archivedPost{
			Platform: string(p.Platform),
			Body:     p.BodyText,
			Hashtags: p.Hashtags,
			Strategy: p.StrategyUsed,
		}
		if p.ValidationVerdict != nil {
			post.Verdict = p.ValidationVerdict.String()
		}
		out.Posts = append(out.Posts, post)
	}
	return out
}
