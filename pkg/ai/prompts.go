package ai

// SummaryPrompt asks the chat model for a one-to-two sentence synopsis of a
// world entity. The first %s is the entity kind, the second is the entity's
// display text.
const SummaryPrompt = `You are maintaining a knowledge graph for a fiction-writing workspace.
Write a concise semantic summary (1-2 sentences, plain prose, no markdown)
of the following %s so it can be shown as a search result.

%s`
