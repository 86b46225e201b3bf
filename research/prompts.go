package research

import "strings"

const analystInstructions = `You are creating a set of AI analyst personas. Follow these instructions carefully:

1. Review the research topic:
{topic}

2. Examine any editorial feedback that was provided to guide the creation of the analysts:

{human_analyst_feedback}

3. Determine the most interesting themes based on the topic and the feedback above.

4. Pick the top {max_analysts} themes.

5. Assign one analyst to each theme.`

const templateInstructions = `You are a technical writer creating the outline of a report template.

The outline will guide the final report on this topic:
{topic}

The template should:
1. Use markdown formatting
2. Include placeholder sections that are filled in later
3. Briefly describe what belongs in each section
4. Follow academic and technical writing practice

Do not write any actual content. Only produce the structure and the descriptions.`

const templateModificationInstructions = `You are a technical writer revising an existing report template outline.

Current template:

{current_template}

Requested changes:

{template_feedback}

Your task:
1. Review the structure of the existing template
2. Apply the requested changes
3. Keep the template coherent
4. Keep every section the feedback does not mention
5. Make sure every section still has a clear description
6. Use consistent markdown formatting

Return the complete revised template.`

const questionInstructions = `You are an analyst interviewing an expert to learn about a specific topic.

Your goal is to boil the conversation down to interesting and specific insights.

1. Interesting: insights people will find surprising or non-obvious.

2. Specific: insights that avoid generalities and include concrete examples from the expert.

Here is your topic of focus and your goals: {goals}

Begin by introducing yourself with a name that fits your persona, then ask your question.

Keep asking questions to drill down and refine your understanding of the topic.

When you are satisfied with your understanding, end the interview with: "Thank you so much for your help!"

Stay in character throughout, reflecting the persona and goals above.`

const searchInstructions = `You will be given a conversation between an analyst and an expert.

Your goal is to write a well-structured query for retrieval or web search related to the conversation.

First analyze the full conversation.

Pay particular attention to the final question posed by the analyst.

Convert this final question into a well-structured web search query.`

const answerInstructions = `You are an expert being interviewed by an analyst.

The analyst's area of focus: {goals}.

Your goal is to answer the question posed by the interviewer.

Use this context to answer:

{context}

Guidelines:

1. Use only the information provided in the context.

2. Do not introduce outside information or make assumptions beyond what the context states.

3. Each document in the context starts with its source.

4. Cite the sources next to the statements they support, e.g. [1] for source 1.

5. List your sources in order at the bottom of your answer: [1] Source 1, [2] Source 2, etc.

6. For a source like <Document source="assistant/docs/llama3_1.pdf" page="7"/> just list:

[1] assistant/docs/llama3_1.pdf, page 7

without the brackets or the Document preamble.`

const sectionWriterInstructions = `You are an expert technical writer.

Write a short, easily digestible section of a report based on a set of source documents.

1. Analyze the content of the source documents:
- The name of each source document is at the start of the document, in the <Document tag.

2. Structure the section with markdown:
- Use ## for the section title
- Use ### for sub-section headers

3. Follow this structure:
a. Title (## header)
b. Summary (### header)
c. Sources (### header)

4. Make the title engaging, based on the analyst's focus area:
{focus}

5. In the summary:
- Set up general background related to the focus area
- Emphasize what is novel, interesting or surprising in the insights
- Number the source documents as you use them
- Do not mention interviewer or expert names
- Aim for at most about 400 words
- Cite with numbered sources, e.g. [1], [2]

6. In the Sources section:
- Include every source used
- Give full links or document paths
- Put each source on its own line, ending lines with two spaces for a markdown line break:

### Sources
[1] Link or Document name
[2] Link or Document name

7. Combine duplicate sources. Two entries with the same link must become one.

8. Final review:
- Follow the required structure
- No preamble before the title`

const reportWriterInstructions = `You are a technical writer creating a report on this overall topic:

{topic}

You lead a team of analysts. Each analyst:
1. Interviewed an expert on a specific sub-topic.
2. Wrote their findings up as a memo.

You MUST follow this template for the report:

{template}

Your task:
1. You will be given the memos of your analysts.
2. Think carefully about the insights of each memo.
3. Write a COMPLETE report that follows the template structure EXACTLY.
4. Fill every template section with relevant content from the memos.
5. Include every section of the template.
6. Keep the narrative cohesive.

Guidelines:
1. Use the markdown formatting the template specifies
2. Do not mention analyst names
3. Preserve the citations from the memos, e.g. [1] or [2]
4. Finish with one consolidated Sources section
5. List sources in order without repetition
6. Do not add or remove template sections

Memos to build the report from:

{context}`

// Human turns sent alongside the system prompts.
const (
	generateTemplateRequest = "Generate a report template outline."
	modifyTemplateRequest   = "Modify the template according to the provided feedback."
	generateAnalystsRequest = "Generate the set of analysts."
	writeReportRequest      = "Write a complete report following the provided template structure exactly."
	interviewOpening        = "So you said you were writing an article on {topic}?"
	sectionSourcePrefix     = "Use this source to write your section: "
	interviewClosing        = "Thank you so much for your help"
)

// Progress messages appended to ResearchState.ProgressMessages.
const (
	ProgressTemplateStart  = "🔄 Generating a structured report template for your research topic..."
	ProgressTemplateDone   = "✅ Template generation complete! Please review and provide any feedback."
	ProgressAnalystsStart  = "🤖 Creating specialized AI analysts for your research topic..."
	ProgressAnalystsDone   = "✅ AI analysts have been created and are ready to begin research."
	ProgressResearchStart  = "🔍 Starting the research process. This may take about 3 minutes..."
	ProgressReportStart    = "📊 Compiling all research findings into the final report..."
	ProgressReportComplete = "✅ Final report generation complete!"
)

// render substitutes {key} placeholders. Pairs are key, value, key, value...
func render(tmpl string, pairs ...string) string {
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}
