package openaichat

import (
	"fmt"
	"strings"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

const systemPrompt = `You are an assistant answering questions about the user's personal documents.
Answer only from the provided context. If the context does not contain the answer, say so directly.
Cite sources by their bracketed numbers, like [1].`

func buildAnswerPrompt(question, contextText string, meta domain.RetrievalMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\n", question)
	if meta.FileCount > 0 {
		fmt.Fprintf(&b, "Context drawn from %d passage(s) across %d file(s): %s\n\n",
			meta.ChunksUsed, meta.FileCount, strings.Join(meta.Files, ", "))
	}
	fmt.Fprintf(&b, "Context:\n%s\n", contextText)
	return b.String()
}
