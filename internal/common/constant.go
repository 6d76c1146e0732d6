// Package common contains shared constants and sentinel errors used across
// chatkeeper components.
package common

// SessionCookieName is the HTTP cookie that carries the signed session token.
const SessionCookieName = "chatkeeper_session"

// AnonymousOwner is used when a message is stored without a session identity.
const AnonymousOwner = "anonymous"
