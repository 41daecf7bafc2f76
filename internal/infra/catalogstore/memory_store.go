package catalogstore

import (
	"context"
	"sort"
	"sync"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
	apperrors "github.com/concoursapp/catalogsync/pkg/errors"
)

// MemoryStore is an in-memory catalog.Store used for tests and for degraded
// boots when postgres is unreachable.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]catalog.Category
	questions  map[string]catalog.Question
	answers    map[string]catalog.Answer
}

// NewMemoryStore constructs a store backed by maps.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]catalog.Category),
		questions:  make(map[string]catalog.Question),
		answers:    make(map[string]catalog.Answer),
	}
}

// EnsureSchema implements catalog.Store.
func (s *MemoryStore) EnsureSchema(_ context.Context) error {
	return nil
}

// UpsertCategories implements catalog.Store.
func (s *MemoryStore) UpsertCategories(_ context.Context, categories []catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range categories {
		category.Questions = nil
		s.categories[category.ID] = category
	}
	return nil
}

// UpsertQuestions implements catalog.Store. The whole batch is staged before
// the maps are touched so a rejected write cannot leave a torn view.
func (s *MemoryStore) UpsertQuestions(_ context.Context, categoryID string, questions []catalog.Question) (int, error) {
	valid, skipped := catalog.FilterValidQuestions(questions)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[categoryID]; !ok {
		return 0, apperrors.Wrap(apperrors.CodeStorage, "unknown category "+categoryID, nil)
	}

	stagedQuestions := make(map[string]catalog.Question, len(valid))
	stagedAnswers := make(map[string]catalog.Answer)
	for _, question := range valid {
		answers := question.Answers
		question.CategoryID = categoryID
		question.Answers = nil
		stagedQuestions[question.ID] = question
		for _, answer := range answers {
			answer.QuestionID = question.ID
			stagedAnswers[answer.ID] = answer
		}
	}

	for id, question := range stagedQuestions {
		s.questions[id] = question
	}
	for id, answer := range stagedAnswers {
		s.answers[id] = answer
	}
	return skipped, nil
}

// ListCategories implements catalog.Store.
func (s *MemoryStore) ListCategories(_ context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make([]catalog.Category, 0, len(s.categories))
	for _, category := range s.categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

// ListQuestions implements catalog.Store.
func (s *MemoryStore) ListQuestions(_ context.Context, categoryID string) ([]catalog.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	questions := make([]catalog.Question, 0)
	for _, question := range s.questions {
		if question.CategoryID != categoryID {
			continue
		}
		for _, answer := range s.answers {
			if answer.QuestionID == question.ID {
				question.Answers = append(question.Answers, answer)
			}
		}
		sort.Slice(question.Answers, func(i, j int) bool { return question.Answers[i].ID < question.Answers[j].ID })
		questions = append(questions, question)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

var _ catalog.Store = (*MemoryStore)(nil)
