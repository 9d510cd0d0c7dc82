// Package chat keeps one conversation's message list in sync with the
// durable store and the realtime change feed.
//
// A Session owns four parts:
//
//   - Store: the ordered, de-duplicated message list the UI renders.
//   - Pipeline: optimistic sends. A placeholder with a temp- id is appended
//     before the durable write and is reconciled or rolled back afterwards.
//   - Listener: the single live change-feed subscription, folding
//     insert/update/delete events into the Store in arrival order.
//   - Tracker: disconnected/connecting/connected status for display.
//
// The durable store, the change feed and author lookups are reached through
// the MessageWriter, MessageFetcher, AuthorLookup and Feed interfaces.
// internal/apiclient and internal/feed provide the production implementations.
//
// Usage:
//
//	s := chat.NewSession(chat.Deps{
//	    Writer:   api,
//	    Fetcher:  api,
//	    Authors:  api,
//	    Feed:     sub,
//	    Notifier: chat.NotifierFunc(showAlert),
//	    Logger:   logger,
//	})
//	defer s.Close()
//
//	_ = s.Select(ctx, "proj-42")
//	s.Send(ctx, chat.Identity{UserID: "u-1"}, "hello")
package chat
