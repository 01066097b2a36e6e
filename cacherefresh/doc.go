// Package cacherefresh keeps designated configuration keys synchronized with
// a cache.
//
// The keys and the period come from the TimedCacheRefresh secret:
//
//	Name:  TimedCacheRefresh
//	Value: Key1,Key2
//	MetaDataProperties:
//	  - Name:  RefreshPeriodMinutes
//	    Value: 5
//
// Once started, a Refresher copies every key from the cache into the
// configuration, then does it again every period until it's closed.
// A key missing from the cache is written as the empty string.
package cacherefresh
