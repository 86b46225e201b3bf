// Package search provides the retrieval providers used by the interview
// workflow: Tavily, Bing web search and Wikipedia.
//
// Every provider returns []Document and also implements langchaingo's
// tools.Tool, so it can be handed to an agent as is:
//
//	tavily, err := search.NewTavilyClient("")
//	if err != nil {
//		return err
//	}
//	web := search.Fallback(tavily, bing)
//	docs, err := web.Search(ctx, "state of WebGPU adoption")
//	fmt.Println(search.JoinDocuments(docs))
//
// Documents are rendered in the <Document .../> envelope the report prompts
// cite from.
package search
