package memory

import (
	"context"
	"testing"
	"time"

	"trivia-rooms/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		BankLoader: NewStaticBankLoader(map[string]domain.QuestionBank{
			"default": sampleBank(),
		}),
	}
	repo := NewQuestionRepository(loader, time.Minute)

	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestStaticBankLoaderUnknownBank(t *testing.T) {
	loader := NewStaticBankLoader(map[string]domain.QuestionBank{})
	if _, err := loader.LoadBank(context.Background(), "missing"); err != domain.ErrBankNotFound {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

type countingLoader struct {
	BankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	l.calls++
	return l.BankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID: "default",
		Questions: []domain.Question{
			{
				ID:            1,
				Prompt:        "What is 2 + 2?",
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: 1,
				TimeLimit:     10,
			},
		},
	}
}
