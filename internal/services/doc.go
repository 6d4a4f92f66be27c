// Package services defines shared utilities consumed by the ingestion engine
// and the dispatch layer.
//
// Key responsibilities:
//   - Context helpers that stamp session keys, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure messages
//     uniform across the pipeline.
package services
