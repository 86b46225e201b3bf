// Package research implements the analyst/interview/report workflow.
//
// A research thread moves through three human-facing stages:
//
//  1. A markdown report template is generated for the topic. The graph
//     pauses before template_feedback until the user approves it or asks
//     for changes, which regenerates the template.
//  2. A small team of analyst personas is created. The graph pauses before
//     human_feedback; feedback other than "approve" recreates the team.
//  3. Every analyst interviews a simulated expert in parallel (one
//     conduct_interview task per analyst). Each interview searches the web,
//     Wikipedia and Bing between turns and ends with a report section. The
//     sections are merged into the final report following the template.
//
// The Assistant wraps the checkpointed graph and exposes the stages as
// Start, SubmitTemplateFeedback and SubmitAnalystFeedback.
package research
