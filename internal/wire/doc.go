// Package wire defines the typed message catalogue exchanged between
// server nodes and ambassadors. The dispatcher switches on the concrete
// message type at the server boundary; how the messages are framed on a
// byte stream is the codec subpackage's business, and the dispatcher
// never sees it.
package wire
