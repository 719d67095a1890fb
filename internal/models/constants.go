package models

const (
	// FallbackAnswer is the phrase the model is told to emit when the context lacks the answer.
	FallbackAnswer   = "Not found in document"
	ContextSeparator = "\n\n"
	SourceSeparator  = ", "
)

var (
	// AnswerPromptTemplate uses Go template syntax; langchaingo prompts fills context and question.
	AnswerPromptTemplate = `
Text: {{.context}}
Question: {{.question}}

Answer the question based only on the text above. If you don't know the answer, say "` + FallbackAnswer + `".
`
)
