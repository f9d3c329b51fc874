package service

import (
	"fmt"
	"strings"
)

// insufficientContextMarker is the reply prefix the grounded prompt asks the
// model to use when the context cannot answer the question.
const insufficientContextMarker = "[[INSUFFICIENT_CONTEXT]]"

// noOutputMarker is the extraction reply for an irrelevant candidate.
const noOutputMarker = "NO_OUTPUT"

const groundedSystemPrompt = `You are an economic assistant that answers questions using the provided context.
Each context passage starts with a reference number such as [1] or [2]. Cite the passages you use with these numbers.
Be concise and factual. Do not invent figures that are not in the context.
If the context does not contain the information needed to answer, reply with exactly ` + insufficientContextMarker + ` followed by nothing else.`

const generalSystemPrompt = `You are an economic assistant. No reference documents are available for this question,
so answer from your general knowledge. Be concise, and say so when you are unsure.`

const expansionPromptTemplate = `You are an AI assistant helping to generate better search queries.
Rewrite the user's question into a specific search query that will retrieve the most relevant economic documents.
Return only the query, without quotes or explanations.

Original question: %s
Improved search query:`

const extractionPromptTemplate = `Given the following question and context, extract any part of the context *AS IS* that is relevant to answer the question.
If none of the context is relevant return ` + noOutputMarker + `.

> Question: %s
> Context:
>>>
%s
>>>
Extracted relevant parts:`

func expansionPrompt(question string) string {
	return fmt.Sprintf(expansionPromptTemplate, question)
}

func extractionPrompt(question, content string) string {
	return fmt.Sprintf(extractionPromptTemplate, question, content)
}

func groundedUserPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// cleanQuery strips the decoration models like to add around a rewritten query.
func cleanQuery(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "Improved search query:")
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
