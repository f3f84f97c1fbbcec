package prompting

// Meta describes a prompting strategy for display next to its answer.
type Meta struct {
	Name       string   `json:"name"`
	Color      string   `json:"color"`
	Icon       string   `json:"icon"`
	Pros       []string `json:"pros"`
	Cons       []string `json:"cons"`
	UseWhen    string   `json:"use_when"`
	FormatNote string   `json:"format_note"`
}

var promptMeta = map[Strategy]Meta{
	ZeroShot: {
		Name:       "Zero-Shot",
		Color:      "#8b5cf6",
		Icon:       "⚡",
		Pros:       []string{"Simple & fast", "No examples needed", "Low token cost"},
		Cons:       []string{"Less format control", "May miss nuance"},
		UseWhen:    "Simple factual Q&A, quick answers",
		FormatNote: "Short, direct paragraph answer.",
	},
	FewShot: {
		Name:       "Few-Shot",
		Color:      "#0ea5e9",
		Icon:       "🎯",
		Pros:       []string{"Consistent output format", "Controls tone & style"},
		Cons:       []string{"More tokens", "Example quality matters"},
		UseWhen:    "When output format consistency matters",
		FormatNote: "Bullet-point list format.",
	},
	ChainOfThought: {
		Name:       "Chain-of-Thought",
		Color:      "#f97316",
		Icon:       "🧠",
		Pros:       []string{"Best accuracy", "Shows reasoning", "Handles complexity"},
		Cons:       []string{"Slower", "More verbose"},
		UseWhen:    "Complex analysis, multi-step reasoning",
		FormatNote: "Step-by-step reasoning then final answer.",
	},
	RoleBased: {
		Name:       "Role-Based",
		Color:      "#ec4899",
		Icon:       "🎭",
		Pros:       []string{"Domain expertise depth", "Tailored vocabulary", "Authority"},
		Cons:       []string{"Can over-claim expertise", "Role must match domain"},
		UseWhen:    "Domain-specific docs: legal, medical, technical",
		FormatNote: "Expert analysis with technical depth.",
	},
}

func MetaFor(strategy Strategy) Meta {
	return promptMeta[strategy]
}
