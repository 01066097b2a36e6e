// Package redisbp provides the redis backed application cache, and
// prometheus monitored go-redis clients.
//
// The cache connection string is read from a secret, ApplicationCache by
// default, in either URL or comma separated form:
//
//	redis://:password@cache.internal:6379/2
//	cache.internal:6380,password=secret,ssl=true,defaultDatabase=2
package redisbp
