package context

// Assembler combines the fixed preamble, history, and the new turn into a
// single ordered message list.
type Assembler struct {
	preamble string
}

// NewAssembler returns an assembler that always leads with the given preamble.
func NewAssembler(preamble string) *Assembler {
	return &Assembler{preamble: preamble}
}

// DefaultAssembler returns an assembler using MedicalPreamble.
func DefaultAssembler() *Assembler {
	return NewAssembler(MedicalPreamble)
}

// Preamble returns the system turn placed first in every request.
func (a *Assembler) Preamble() Turn {
	return Turn{Role: RoleSystem, Content: Text(a.preamble)}
}

// Assemble builds the final message list: preamble + history + next.
// The returned slice shares no storage with history.
func (a *Assembler) Assemble(history []Turn, next Turn) []Turn {
	messages := make([]Turn, 0, 1+len(history)+1)
	messages = append(messages, a.Preamble())
	for _, t := range history {
		messages = append(messages, t.clone())
	}
	messages = append(messages, next.clone())
	return messages
}
