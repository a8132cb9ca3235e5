// package repositories provides the persistence layer for the relay.
//
// The only entity the relay owns durably is the refresh token record; the
// in-flight authorization attempts stay in memory (see internal/auth).
package repositories
