// Package retriever selects candidate passages for a question from a corpus.
//
// Four real backends are provided behind one Client interface: bm25 for
// lexical ranking, dense for embedding similarity, hybrid for reciprocal
// rank fusion of the two, and static for datasets that ship pre-retrieved
// passages. A mock backend records queries for tests.
//
// # Usage
//
//	client, err := retriever.NewClient(retriever.Config{
//		Provider: retriever.ProviderBM25,
//		Passages: corpus,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	passages, err := client.Retrieve(ctx, "what is a fjord", 10)
//
// The dense and hybrid providers additionally need an embedder and accept an
// optional cache so corpus embeddings survive across runs:
//
//	client, err := retriever.NewClient(retriever.Config{
//		Provider: retriever.ProviderHybrid,
//		Passages: corpus,
//		Embedder: embedderClient,
//		Cache:    cacheStore,
//	})
//
// Retrieved passages come back ranked descending, with Index set to the
// 0-based rank and Score to the backend's relevance score. Scores are only
// comparable within one backend.
package retriever
