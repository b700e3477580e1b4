// Package redisstream provides a Redis Streams sink for xsinger.
//
// Each protocol line becomes one stream entry whose Config.Field holds the
// line's JSON text, so a consumer group downstream sees messages in the
// order the tap wrote them.
//
// Config keys accepted by ConfigFromMap:
//   - addr: "host:port" (default "127.0.0.1:6379")
//   - username, password, db, tls, tls_server_name
//   - stream: stream key (default "xsinger")
//   - field: entry field holding the line (default "message")
//   - max_len_approx: approximate MAXLEN trimming (default off)
//   - write_timeout: bound on one flush (default "5s")
//
// Example:
//
//	w := redisstream.Use(redisstream.ConfigFromMap(map[string]any{
//		"addr":   "localhost:6379",
//		"stream": "tap-postgres",
//	}))
//	defer w.Close()
//	_ = xsinger.WriteRecord("users", map[string]any{"id": 1})
package redisstream
