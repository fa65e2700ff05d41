// Package scope gates tool execution on OAuth-style scopes: a resolver
// determines which scopes the calling identity was granted, a guard checks
// those against a tool's declared requirements before letting the call
// through, and every decision (grant or deny) is reported to an audit sink.
//
// Tools opt into enforcement by implementing RequiredScoper; tools that
// don't are returned unwrapped, since they declared no requirement to
// check against.
package scope
