package storage

import (
	"context"
	"sort"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

// StaticProjects serves project snapshots loaded at startup.
type StaticProjects struct {
	byID map[string]domain.Project
	ids  []string
}

var _ ports.ProjectSource = (*StaticProjects)(nil)

// NewStaticProjects indexes projects by id.
func NewStaticProjects(projects []domain.Project) *StaticProjects {
	s := &StaticProjects{byID: make(map[string]domain.Project, len(projects))}
	for _, p := range projects {
		if _, dup := s.byID[p.ID]; !dup {
			s.ids = append(s.ids, p.ID)
		}
		s.byID[p.ID] = p
	}
	sort.Strings(s.ids)
	return s
}

// Project implements ports.ProjectSource.
func (s *StaticProjects) Project(_ context.Context, id string) (domain.Project, error) {
	p, ok := s.byID[id]
	if !ok {
		return domain.Project{}, ports.ErrProjectNotFound
	}
	return p, nil
}

// Projects returns all projects ordered by id.
func (s *StaticProjects) Projects(_ context.Context) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out, nil
}
