package generation

// ModelChoice is the generation path picked for an order.
type ModelChoice int

const (
	// CompositionPreserving keeps a single photo's subjects and framing intact.
	CompositionPreserving ModelChoice = iota
	// MultiSubjectCompositing merges several faces into one new scene.
	MultiSubjectCompositing
)

func (c ModelChoice) String() string {
	if c == CompositionPreserving {
		return "composition-preserving"
	}
	return "multi-subject-compositing"
}

// SelectModel picks the path from the number of input photos.
func SelectModel(photoCount int) ModelChoice {
	if photoCount == 1 {
		return CompositionPreserving
	}
	return MultiSubjectCompositing
}

// ModelNames binds each path to a concrete model identifier.
type ModelNames struct {
	Preserving  string
	Compositing string
}

func (m ModelNames) For(choice ModelChoice) string {
	if choice == CompositionPreserving {
		return m.Preserving
	}
	return m.Compositing
}
