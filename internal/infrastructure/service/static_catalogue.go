// Package service provides in-process implementations of the engine's
// external collaborator interfaces: a static course catalogue and a
// deterministic quiz scorer. Production deployments substitute clients
// of the real course and grading services.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexlearn/nexlearn-economy/internal/domain/catalogue"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// Course is one entry of the static catalogue.
type Course struct {
	ID         string
	Title      string
	Multiplier float64
	Questions  []string
}

// StaticCatalogue implements catalogue.Catalogue from a fixed in-memory
// course table.
type StaticCatalogue struct {
	mu      sync.RWMutex
	courses map[string]Course
}

// NewStaticCatalogue creates a catalogue from the given courses.
func NewStaticCatalogue(courses ...Course) *StaticCatalogue {
	m := make(map[string]Course, len(courses))
	for _, c := range courses {
		m[c.ID] = c
	}
	return &StaticCatalogue{courses: m}
}

// AddCourse registers or replaces a course.
func (s *StaticCatalogue) AddCourse(c Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

// QuestionSet implements catalogue.Catalogue. Questions come back in
// catalogue order so both duel parties see the identical set.
func (s *StaticCatalogue) QuestionSet(ctx context.Context, courseID string, n int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[courseID]
	if !ok {
		return nil, shared.NewDomainError("catalogue", "QuestionSet", shared.ErrNotFound,
			fmt.Sprintf("course %s not in catalogue", courseID))
	}
	if n <= 0 || n > len(c.Questions) {
		n = len(c.Questions)
	}
	return append([]string(nil), c.Questions[:n]...), nil
}

// DifficultyMultiplier implements catalogue.Catalogue.
func (s *StaticCatalogue) DifficultyMultiplier(ctx context.Context, courseID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[courseID]
	if !ok {
		return 0, shared.NewDomainError("catalogue", "DifficultyMultiplier", shared.ErrNotFound,
			fmt.Sprintf("course %s not in catalogue", courseID))
	}
	if c.Multiplier < 1.0 {
		return 1.0, nil
	}
	return c.Multiplier, nil
}

var _ catalogue.Catalogue = (*StaticCatalogue)(nil)
