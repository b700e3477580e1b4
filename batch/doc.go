// Package batch spools records into jsonl batch files and announces them with
// BATCH messages.
//
// A Writer accumulates the records of one stream into a temporary file, one
// canonical JSON value per line, optionally compressed with gzip or zstd.
// Flush hands the finished file to a Store (a local directory or an S3
// bucket) and returns the BATCH message that points at it:
//
//	bw, _ := batch.NewWriter(batch.Config{Stream: "users", Compression: "gzip"}, batch.LocalStore{Dir: "/data/out"})
//	for _, r := range rows {
//		_ = bw.Add(r)
//	}
//	msg, _ := bw.Flush(ctx)
//	_ = xsinger.WriteMessage(msg)
//
// ReadFile streams the records of a local batch file back.
package batch
