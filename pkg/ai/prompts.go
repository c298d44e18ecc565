package ai

// AnalyzePromptText is the system prompt for per-chunk narrative analysis.
// Placeholders: prior context summary.
const AnalyzePromptText = `You are a literary analyst processing a long novel one segment at a time, in reading order.

Context from everything read so far:
%s

Analyze ONLY the segment provided by the user, in light of the context above. Produce:
1. "summary": a dense narrative summary of this segment (what happened, to whom, and what changed), written so it can serve as prior context for the next segment.
2. "sentiment_score": the overall emotional tone of the segment as a number between -1 (bleak/tragic) and 1 (joyful/triumphant).
3. "key_characters": the characters that matter in this segment, each with their role in the story and a few defining traits. Always use the character's canonical name; never pronouns or epithets.
4. "relationships": pairs of characters whose relationship is shown or changed in this segment, with a short label for the relationship (e.g. "master and apprentice", "rivals", "sworn siblings"). Use the same canonical names as in key_characters.
5. "plot_points": the concrete plot developments of this segment, one short sentence each.

Respond with JSON only. Do not invent characters or relationships that the text does not support.`

// AnalyzePromptNoContext replaces the context block for the first segment.
const AnalyzePromptNoContext = `(This is the first segment; there is no prior context.)`

// OutlinePromptText is the system prompt for splitting one chunk into
// sub-chapter outlines. The model must return a JSON array of
// {"title", "summary"} objects in reading order.
const OutlinePromptText = `You are outlining one segment of a novel. Split the segment provided by the user into its chapters or natural scenes, in reading order.

For each one, produce an object with:
- "title": the chapter header if present, otherwise a short descriptive title
- "summary": two to four sentences covering the events of that chapter or scene

Respond with a JSON array of these objects and nothing else.`

// CustomPromptHeader prefixes a user-supplied prompt override so that the
// structured output contract still holds.
const CustomPromptHeader = `Additional instructions from the reader (follow them where they do not conflict with the required JSON shape):`
