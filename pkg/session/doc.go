/*
Package session implements session management and persistence orchestration.

It serializes access to a session within a process with a reference-counted
mutex per session ID and, when a DistributedLocker is configured, across
replicas. Every read-modify-write of a session goes through Manager.Update or
Manager.WithLock.
*/
package session
