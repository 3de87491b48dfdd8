package persona

import "fmt"

// Persona captures the assistant identity stated at the top of every system prompt.
type Persona struct {
	Name          string
	Identity      string
	Style         string
	ReferenceDate string
}

// Default returns the built-in assistant persona.
func Default(name, referenceDate string) Persona {
	if name == "" {
		name = "SnailGPT"
	}
	return Persona{
		Name:          name,
		Identity:      "a large language model trained by OpenAI, behaving EXACTLY like ChatGPT",
		Style:         "Your goal is to be helpful, accurate, and engaging. Use Markdown for all formatting. Be polite and objective.",
		ReferenceDate: referenceDate,
	}
}

// Preamble renders the fixed identity statement shared by every mode.
func (p Persona) Preamble() string {
	preamble := fmt.Sprintf("You are %s, %s.", p.Name, p.Identity)
	if p.ReferenceDate != "" {
		preamble += fmt.Sprintf(" Current Date: %s.", p.ReferenceDate)
	}
	if p.Style != "" {
		preamble += " " + p.Style
	}
	return preamble
}
