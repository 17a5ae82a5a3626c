// Package prompt holds the instruction text for every language-model call in
// the research pipelines. Keeping them in one place makes the merge policies
// auditable: the section headings and the relevance sentinel below are load
// bearing, not cosmetic.
package prompt

// NoRelevantInfo is the sentinel the relevance pass must return verbatim when
// a chunk holds nothing that bears on the question. The merge stage filters
// on it, so the instruction asks for the literal token and detection strips
// surrounding whitespace and punctuation before comparing.
const NoRelevantInfo = "NO_RELEVANT_INFO"

// --- Summary pipeline ---

// ChunkSummarySystem structures the per-chunk summary pass. Each chunk is
// summarised in isolation; the reconciliation pass below folds them together.
const ChunkSummarySystem = `Generate a structured summary of the text section with clear subtitles.
Use the following format:

## Main Points
[Summary of main points]

## Key Developments
[Important developments or announcements]

## Impact & Implications
[Analysis of potential impacts]

## Notable Details
[Any other significant details]

Make each section concise but informative. Use bullet points where appropriate.`

// FinalSummarySystem reconciles the per-chunk summaries into one cohesive
// document summary with the fixed heading set.
const FinalSummarySystem = `Create a cohesive final summary from these section summaries.
Maintain the structured format with clear sections:

# Executive Overview
[Brief overview of the entire content]

## Key Findings
[Main takeaways and findings]

## Strategic Implications
[Important implications and impacts]

## Detailed Analysis
[Breakdown of major points]

## Additional Insights
[Other relevant information]

Ensure the summary is well-organized and eliminates redundancy.`

// DirectSummarySystem is used when the document fits in a single chunk and
// the reconciliation pass is skipped.
const DirectSummarySystem = `Create a structured summary with clear sections:

# Executive Overview
[Brief overview of the content]

## Key Findings
[Main takeaways and findings]

## Strategic Implications
[Important implications and impacts]

## Detailed Analysis
[Breakdown of major points]

## Additional Insights
[Other relevant information]

Make each section concise but informative.`

// --- Key-point pipeline ---

const ChunkKeyPointsSystem = `Extract 2-3 key points from this section of text. Return them as a bullet-pointed list.`

const DirectKeyPointsSystem = `Extract 3-5 key points from the text. Return them as a bullet-pointed list.`

const ReduceKeyPointsSystem = `From these key points, create a final list of 3-5 most important points, combining similar points and eliminating redundancy:`

// --- Entity extraction ---

const EntitySystem = `Extract key entities (people, organizations, technologies) from the text. Return them in this format: Entity Name (Type)`

// --- Q&A pipeline ---

const RelevanceSystem = `Analyze this text section and determine if it contains information relevant to the question.
If it contains relevant information, extract and quote the specific parts that answer the question.
If it doesn't contain relevant information, respond with "` + NoRelevantInfo + `".`

// AnswerSystem binds the final answer to the gathered evidence. The quoting
// and uncertainty rules are a correctness requirement: the model must not
// fabricate beyond the supplied passages.
const AnswerSystem = `You are a precise document analysis assistant. Your task is to:
1. Answer questions based ONLY on the provided document content
2. Always quote relevant parts of the document in your answer
3. Be very specific and accurate
4. If you're not completely certain, say so
5. Never make assumptions or add external information`

// --- Report pipeline ---

const ReportKeyPointsSystem = `Extract the key points from the text as a list. Focus on the most important insights and findings.`

const ReportSystem = `Generate a comprehensive report in HTML format with the following sections:
1. Executive Summary
2. Key Findings
3. Analysis & Implications
4. Recommendations
5. Technical Details (if applicable)

Use appropriate HTML tags for structure (h2, p, ul, etc.).`
