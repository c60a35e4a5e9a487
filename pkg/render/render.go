// Package render turns captured request and response bodies into Markdown
// summaries. The BodyRenderer interface is the per-target extension point;
// OpenAIResponses is the reference implementation shared by targets that
// speak the OpenAI Responses API.
package render

// BodyRenderer renders decoded bodies for the conversation section of a
// report. Implementations are pure: same body in, same Markdown out.
type BodyRenderer interface {
	RenderRequestBody(body any) string
	RenderResponseBody(body any, statusCode int) string
}
