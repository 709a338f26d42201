package quiz

import (
	"math/rand"
	"testing"

	"furniq/internal/model"
)

func allA() []model.QuizAnswer {
	return []model.QuizAnswer{
		{QuestionID: 1, SelectedOption: "A"},
		{QuestionID: 2, SelectedOption: "A"},
		{QuestionID: 3, SelectedOption: "A"},
		{QuestionID: 4, SelectedOption: "A"},
		{QuestionID: 5, SelectedOption: "A"},
	}
}

func TestClassify_AllA(t *testing.T) {
	// 所有 A 选项都是 Skandinavisch，除了第 4 题的 A 是 Minimalistisch：
	// 4 票对 1 票
	if got := Classify(allA()); got != "Skandinavisch" {
		t.Fatalf("Classify(all A) = %q, want Skandinavisch", got)
	}
}

func TestClassify_EmptyReturnsFirstStyle(t *testing.T) {
	if got := Classify(nil); got != Styles[0] {
		t.Fatalf("Classify(nil) = %q, want %q", got, Styles[0])
	}
}

func TestClassify_OrderIndependent(t *testing.T) {
	answers := allA()
	want := Classify(answers)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]model.QuizAnswer, len(answers))
		copy(shuffled, answers)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if got := Classify(shuffled); got != want {
			t.Fatalf("permuted answers yielded %q, want %q", got, want)
		}
	}
}

func TestClassify_UnknownAnswersSkipped(t *testing.T) {
	answers := []model.QuizAnswer{
		{QuestionID: 99, SelectedOption: "A"}, // 未知题目
		{QuestionID: 1, SelectedOption: "Z"},  // 未知选项
		{QuestionID: 3, SelectedOption: "B"},  // Industrial
	}
	if got := Classify(answers); got != "Industrial" {
		t.Fatalf("Classify = %q, want Industrial", got)
	}
}

func TestClassify_TieBrokenByDeclarationOrder(t *testing.T) {
	// Industrial 与 Boho 各一票；Skandinavisch/Minimalistisch 零票。
	// 声明顺序中 Industrial 在 Boho 之前。
	answers := []model.QuizAnswer{
		{QuestionID: 1, SelectedOption: "B"}, // Industrial
		{QuestionID: 1, SelectedOption: "C"}, // Boho（重复题目依旧计票，顺序无关）
	}
	if got := Classify(answers); got != "Industrial" {
		t.Fatalf("tie broke to %q, want Industrial", got)
	}
}

func TestQuestions_FourOptionsEach(t *testing.T) {
	for _, q := range Questions() {
		if len(q.Options) != 4 {
			t.Errorf("question %d has %d options", q.ID, len(q.Options))
		}
		for _, opt := range q.Options {
			found := false
			for _, s := range Styles {
				if opt.Style == s {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("question %d option %s uses unknown style %q", q.ID, opt.Key, opt.Style)
			}
		}
	}
}
