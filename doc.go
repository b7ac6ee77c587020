// Package risposta provides an extractive question answering library for Go.
//
// Risposta answers natural-language questions by combining passage retrieval
// with extractive span selection over the retrieved text. For each question it
// locates the single best answer substring together with a probability-ranked
// shortlist of alternatives, handling passages too long for one model input
// via sliding-window overflow with overlap.
//
// # Basic Usage
//
// Create a new Risposta client with the required components:
//
//	// Create a scorer client pointing at a span-scoring service
//	scorerClient, err := scorer.NewClient(scorer.Config{
//		Provider: scorer.ProviderHTTP,
//		HTTP:     &scorer.HTTPConfig{Endpoint: "http://localhost:9090"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer scorerClient.Close()
//
//	// Create a retriever over a passage corpus
//	retrieverClient, err := retriever.NewClient(retriever.Config{
//		Provider: retriever.ProviderBM25,
//		Passages: corpus,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Create the Risposta client
//	client, err := risposta.NewClient(retrieverClient, nil, scorerClient, nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Answering Questions
//
// Answer one question against retrieved passages, or let the client retrieve
// for you:
//
//	result, err := client.AnswerQuestion(ctx, types.Question{
//		ID:   "q1",
//		Text: "When did the Normans conquer England?",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.BestAnswer)
//
// # Batch Runs
//
// Process a whole question set and persist the two result artifacts:
//
//	store, err := client.AnswerBatch(ctx, questions)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := store.WriteFiles("output"); err != nil {
//		log.Fatal(err)
//	}
//
// The predictions artifact maps each question id to its best answer; the
// n-best artifact maps each question id to the ranked candidate list. Both
// preserve question processing order.
//
// # Pipeline
//
// Each question flows through a fixed sequence: window every retrieved
// passage, score the windows in batches, resolve one candidate span per
// window, consolidate the best valid span across passages, rank the n-best
// pool with softmax probabilities, then sanitize the winning answer text.
// Questions are processed strictly one at a time, and all per-question state
// is rebuilt from scratch for each question.
//
// # Error Handling
//
// The library provides typed errors for common scenarios:
//
//   - ErrInvalidConfig: Returned when the configuration cannot produce answers
//   - ErrNoRetriever: Returned when retrieval is requested without a retriever
//   - scorer.ErrUnavailable: Returned when the scoring service is unreachable
//   - window.ErrGeometry: Returned when a question cannot fit the window length
//
// Degenerate answer spans are never errors: a question whose candidates all
// fail validity keeps the empty string as its best answer.
//
// # Architecture
//
// The library follows a modular architecture:
//
//   - pkg/window: Sliding-window tokenization with offset mappings
//   - pkg/scorer: Batched span-scoring client interfaces
//   - pkg/retriever: Ranked passage retrieval (BM25, dense, hybrid)
//   - pkg/predictions: Ordered result accumulation and persistence
//   - pkg/types: Core type definitions
//
// This design allows easy substitution of scoring backends, retrieval
// strategies, and tokenizers.
package risposta
