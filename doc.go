// Package notifyclient keeps a user's notification feed in sync with the
// collaboration backend.
//
// # Session lifecycle
//
// A [Client] owns one notification session at a time. [Client.Start] loads
// the REST snapshot and opens the push channel with the session token;
// [Client.Stop] tears both down. Nothing is global: construct as many
// clients as you need and pass them to the code that uses them.
//
// # Reconnection
//
// An unplanned closure of the push channel is retried with exponential
// backoff, 3s growing 1.5x per attempt up to 30s, five attempts at most.
// Every attempt reads the current token, so rotated tokens are picked up.
// Once the budget is spent the client stays disconnected until
// [Client.Resume] is called, for instance when the application regains focus.
//
// # Store
//
// [Client.Store] exposes the [store.Store]: the ordered collection, unread
// count, last error and the user operations (mark read, hide, trigger an
// action). Mutations are optimistic. The server's later pushes are the
// source of truth.
//
// # Packages
//
// The pieces are usable on their own:
// [github.com/collabhub/notifyclient/pkg/connection/gorillaws] is the push
// channel, [github.com/collabhub/notifyclient/pkg/connection/rews] the
// reconnection policy, [github.com/collabhub/notifyclient/pkg/dispatch]
// the frame router and [github.com/collabhub/notifyclient/httpclient] the
// REST client.
package notifyclient
