package domain

// Message is a single turn in a persona thread. Messages are created once and
// never mutated; the RiskLevel is set only on assistant messages, at creation.
type Message struct {
	ID        MessageID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
	RiskLevel RiskLevel `json:"risk_level,omitempty"`
}

// MemoryDigest is the bounded running summary of what the model has learned
// about a user across all personas. It feeds back into every future prompt.
type MemoryDigest struct {
	Insights    string    `json:"insights"`
	LastUpdated Timestamp `json:"last_updated"`
}

// Alert summarizes a risky exchange for human (teacher/counselor) follow-up.
type Alert struct {
	ID          AlertID   `json:"id"`
	StudentName string    `json:"student_name"`
	School      string    `json:"school"`
	ClassName   string    `json:"class_name"`
	RiskLevel   RiskLevel `json:"risk_level"`
	LastMessage string    `json:"last_message"`
	CreatedAt   Timestamp `json:"created_at"`
	PersonaUsed Persona   `json:"persona_used"`
}
