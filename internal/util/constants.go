package util

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

const (
	SourceTemplate = "template"
	SourceAI       = "ai"
	SourceGemini   = "gemini"
)

const (
	EventSessionCreated   = "quiz.session.created"
	EventAnswerSubmitted  = "quiz.answer.submitted"
	EventSessionCompleted = "quiz.session.completed"
)

const DefaultSessionListLimit = 20
