package onboarding

import (
	"math/rand"
	"sync"
)

// PersonaSelector 为每一轮选择一个对话人设。
// 注入接口而不是直接 rand，便于测试时固定人设。
type PersonaSelector interface {
	Pick() string
}

var personas = []string{
	"curious and playful, genuinely interested in the user's story",
	"professional and warm, like a seasoned marketing consultant",
	"visionary and energetic, excited about what the brand could become",
	"casual and friendly, like chatting with a colleague over coffee",
}

type randomPersonaSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPersonaSelector 基于给定种子构造随机人设选择器
func NewRandomPersonaSelector(seed int64) PersonaSelector {
	return &randomPersonaSelector{rng: rand.New(rand.NewSource(seed))}
}

func (s *randomPersonaSelector) Pick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return personas[s.rng.Intn(len(personas))]
}

// FixedPersonaSelector 固定人设，测试用
type FixedPersonaSelector string

func (s FixedPersonaSelector) Pick() string {
	return string(s)
}
