package chat

import (
	"fmt"
	"strings"

	"github.com/nkwachiabel/docdocgo-core/llm"
)

// QAPrompt renders the message sequence for one grounded answer. The three
// implementations correspond to the three grounded modes; the synthesizer is
// parameterized by the prompt, not specialized per mode.
type QAPrompt func(question, context string, history []llm.Message) []llm.Message

const condenseQuestionTemplate = `Given the following chat history (between Human and you, the Assistant) add context to the last Query from Human so that it can be understood without needing to read the whole conversation: include necessary details from the conversation to make Query completely standalone:
1. First put the original Query as is or very slightly modified (e.g. replacing "she" with who this refers to)
2. Then, add "[For context: <condensed summary to yourself of the relevant parts of the chat history: if Human asks a question and the answer is clear from the chat history, include it in the summary>]"

Chat History:
%s
Last Query from Human: %s
Standalone version of Last Query: `

func renderCondensePrompt(history []Exchange, question string) string {
	var sb strings.Builder
	for _, exchange := range history {
		sb.WriteString("Human: ")
		sb.WriteString(exchange.User)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(exchange.Assistant)
		sb.WriteString("\n")
	}
	return fmt.Sprintf(condenseQuestionTemplate, sb.String(), question)
}

const chatWithDocsSystemTemplate = `You are DocDocGo, a friendly Assistant AI who has been equipped with your own special knowledge base. In response to the user's query you have retrieved the most relevant parts of your knowledge base you could find:

%s

END OF PARTS OF YOUR KNOWLEDGE BASE YOU RETRIEVED.
Use them for your response ONLY if relevant, and cite the SOURCE tag of each part you rely on. If the retrieved parts do not contain the answer, say you don't know based on the provided documents. Use Markdown syntax for your reply.`

// ChatWithDocsPrompt is the direct grounded-QA prompt: system context, then
// the conversation so far, then the standalone question.
func ChatWithDocsPrompt(question, context string, history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(chatWithDocsSystemTemplate, context),
	})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})
	return messages
}

const summarizeKBTemplate = `You are a helpful Assistant AI who has been equipped with your own special knowledge base. In response to the user's query you have retrieved the most relevant parts of your knowledge base you could find:

%s

END OF RETRIEVED PARTS OF YOUR KNOWLEDGE BASE.

USER'S QUERY: %s

YOUR TASK: present the retrieved parts in a digestible way:
1. Start with the TLDR section heading (use Markdown) followed by a quick summary of only the retrieved parts directly relevant to the user's query, if there are any.
2. Continue the rest of your report in Markdown, with section headings. For this part, completely ignore user's query.

YOUR RESPONSE: `

// SummarizeKBPrompt produces the detail-summary report over the retrieved
// material. History is deliberately omitted; the report stands on its own.
func SummarizeKBPrompt(question, context string, _ []llm.Message) []llm.Message {
	return []llm.Message{{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(summarizeKBTemplate, context, question),
	}}
}

const quotesTemplate = `You are a helpful Assistant AI who has been equipped with your own special knowledge base. In response to the user's query you have retrieved the most relevant parts of your knowledge base you could find:

%s

END OF PARTS OF YOUR KNOWLEDGE BASE YOU RETRIEVED.

USER'S QUERY: %s

YOUR TASK: print any quotes from your knowledge base relevant to user's query, if there are any, each followed by its SOURCE tag. Use Markdown syntax for your reply.
YOUR RESPONSE: `

// QuotesPrompt extracts verbatim quotes with their source tags.
func QuotesPrompt(question, context string, _ []llm.Message) []llm.Message {
	return []llm.Message{{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(quotesTemplate, context, question),
	}}
}

const justChatSystemPrompt = `You are DocDocGo, a friendly Assistant AI who has been equipped with your own special knowledge base and the ability to do Internet research. For this part of the conversation you won't be retrieving any information from your knowledge base or the Internet. Instead, you will just chat with the user, keeping in mind that you may have used your knowledge base and/or the Internet earlier in the conversation. Use Markdown syntax for your reply.`

func justChatMessages(message string, history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: justChatSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages
}

const HelpMessage = `Commands (type them at the start of your message):

/docs <question>     answer using your document collection (default mode)
/details <question>  detailed summary of the retrieved material
/quotes <question>   extract relevant verbatim quotes
/web <question>      answer using web search
/research <query>    iterative research; the report is saved as a new collection
/chat <message>      just chat, no retrieval
/db [list|use|new|delete|rename]  manage document collections
/ingest              how to add documents
/help                this message

Retrieval options can lead the message, e.g. "/docs docs=10 threshold=0.5 what is X?".`

func historyToMessages(history []Exchange) []llm.Message {
	if len(history) == 0 {
		return nil
	}
	messages := make([]llm.Message, 0, len(history)*2)
	for _, exchange := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: exchange.User},
			llm.Message{Role: llm.RoleAssistant, Content: exchange.Assistant},
		)
	}
	return messages
}
