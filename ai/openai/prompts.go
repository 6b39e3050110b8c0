package openai

import "fmt"

const answerSystemPrompt = `You answer questions about AI news using articles from The Batch newsletter.
Use only the articles supplied in the context. If the context does not contain enough
information to answer, say so plainly instead of guessing. Mention article titles when
you rely on them.`

const answerPromptTemplate = `Context:
%s

Question: %s

Answer:`

const summarySystemPrompt = `You write concise summaries of news articles. Reply with three or four
sentences covering the main point and any concrete results. Do not add opinions.`

const summaryPromptTemplate = `Title: %s

%s`

func buildAnswerPrompt(query, contextText string) string {
	return fmt.Sprintf(answerPromptTemplate, contextText, query)
}

func buildSummaryPrompt(title, body string) string {
	return fmt.Sprintf(summaryPromptTemplate, title, body)
}
