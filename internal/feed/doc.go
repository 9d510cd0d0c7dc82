// Package feed carries message change events over NATS.
//
// Subjects have the form
//
//	<prefix>.messages.<conversation_id>.<insert|update|delete>
//
// and payloads are JSON:
//
//	{"event_type":"insert","conversation_id":"proj-42",
//	 "row":{"id":"...","conversation_id":"proj-42","author_id":"...","content":"...","created_at":"..."}}
//
//	{"event_type":"delete","conversation_id":"proj-42","old":{"id":"..."}}
//
// Rows never carry author display; subscribers resolve it themselves.
//
// Publisher is used by the server after each durable write. Subscriber
// implements chat.Feed for processes with direct broker access, and backs the
// HTTP SSE stream for everyone else. StartEmbedded runs the broker
// in-process for single-binary deployments and tests.
package feed
