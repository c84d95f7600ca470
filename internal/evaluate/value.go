// Package evaluate implements pure rule evaluation: resolving field values
// from a media item snapshot and applying condition operators. Evaluation
// has no side effects and no shared mutable state so it can run thousands
// of times per scan concurrently.
package evaluate

import (
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

// Kind classifies a resolved field value.
type Kind int

const (
	// KindUndefined means the field could not be resolved at all: the
	// integration is not configured or no matching record was found.
	// Every comparison against an undefined value is false except isNull.
	KindUndefined Kind = iota
	// KindNull means the field is reachable but has no value (for
	// example an item that has never been watched). Null dates count as
	// infinitely old for olderThan.
	KindNull
	KindString
	KindNumber
	KindTime
	KindBool
	KindStrings
)

// Value is a resolved field value. The zero value is undefined.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
	Bool bool
	Strs []string
}

func undefined() Value          { return Value{Kind: KindUndefined} }
func null() Value               { return Value{Kind: KindNull} }
func str(s string) Value        { return Value{Kind: KindString, Str: s} }
func num(n float64) Value       { return Value{Kind: KindNumber, Num: n} }
func boolean(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func strs(s []string) Value     { return Value{Kind: KindStrings, Strs: s} }
func instant(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// optStr treats an empty string as a null value.
func optStr(s string) Value {
	if s == "" {
		return null()
	}
	return str(s)
}

// optTime treats a nil timestamp as a null value.
func optTime(t *time.Time) Value {
	if t == nil {
		return null()
	}
	return instant(*t)
}

// Absent reports whether the value is undefined or null.
func (v Value) Absent() bool {
	return v.Kind == KindUndefined || v.Kind == KindNull
}

// Interface converts the value to a plain JSON-friendly representation for
// traces; absent values map to nil.
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindTime:
		return v.Time
	case KindBool:
		return v.Bool
	case KindStrings:
		return v.Strs
	default:
		return nil
	}
}

// Resolve looks up a field's current value in the snapshot. Computed fields
// are derived from now; manager-namespace fields resolve undefined when the
// namespace is missing.
func Resolve(item *media.Item, def *fields.Field, now time.Time) Value {
	switch def.Namespace {
	case "":
		return resolveDirect(item, def.Name, now)
	case "movieManager":
		return resolveMovieManager(item.MovieManager, def.Name)
	case "seriesManager":
		return resolveSeriesManager(item.SeriesManager, def.Name)
	case "requestManager":
		return resolveRequestManager(item.RequestManager, def.Name)
	default:
		return undefined()
	}
}

func resolveDirect(item *media.Item, name string, now time.Time) Value {
	switch name {
	case "title":
		return str(item.Title)
	case "year":
		if item.Year == 0 {
			return null()
		}
		return num(float64(item.Year))
	case "addedAt":
		return optTime(item.AddedAt)
	case "fileSize":
		return num(float64(item.FileSizeBytes))
	case "resolution":
		return optStr(item.Resolution)
	case "videoCodec":
		return optStr(item.VideoCodec)
	case "audioCodec":
		return optStr(item.AudioCodec)
	case "contentRating":
		return optStr(item.ContentRating)
	case "librarySection":
		return optStr(item.LibrarySection)
	case "genres":
		return strs(item.Genres)
	case "labels":
		return strs(item.Labels)
	case "playCount":
		return num(float64(item.PlayCount))
	case "lastWatchedAt":
		return optTime(item.LastWatchedAt)
	case "watcherCount":
		return num(float64(item.WatcherCount))
	case "neverWatched":
		return boolean(item.PlayCount == 0 && item.LastWatchedAt == nil)
	case "daysSinceAdded":
		if item.AddedAt == nil {
			return null()
		}
		return num(daysBetween(*item.AddedAt, now))
	case "daysSinceLastWatch":
		if item.LastWatchedAt == nil {
			return null()
		}
		return num(daysBetween(*item.LastWatchedAt, now))
	default:
		return undefined()
	}
}

func resolveMovieManager(mm *media.MovieManagerInfo, name string) Value {
	if mm == nil {
		return undefined()
	}
	switch name {
	case "monitored":
		return boolean(mm.Monitored)
	case "hasFile":
		return boolean(mm.HasFile)
	case "isAvailable":
		return boolean(mm.IsAvailable)
	case "qualityProfile":
		return optStr(mm.QualityProfile)
	case "sizeOnDisk":
		return num(float64(mm.SizeOnDiskBytes))
	case "tags":
		return strs(mm.Tags)
	case "inCinemas":
		return optTime(mm.InCinemas)
	case "digitalRelease":
		return optTime(mm.DigitalRelease)
	default:
		return undefined()
	}
}

func resolveSeriesManager(sm *media.SeriesManagerInfo, name string) Value {
	if sm == nil {
		return undefined()
	}
	switch name {
	case "monitored":
		return boolean(sm.Monitored)
	case "status":
		return optStr(sm.Status)
	case "episodeCount":
		return num(float64(sm.EpisodeCount))
	case "episodeFileCount":
		return num(float64(sm.EpisodeFileCount))
	case "percentAvailable":
		return num(sm.PercentAvailable)
	case "sizeOnDisk":
		return num(float64(sm.SizeOnDiskBytes))
	case "tags":
		return strs(sm.Tags)
	default:
		return undefined()
	}
}

func resolveRequestManager(rm *media.RequestInfo, name string) Value {
	if rm == nil {
		return undefined()
	}
	switch name {
	case "requested":
		return boolean(rm.Requested)
	case "requestedBy":
		return optStr(rm.RequestedBy)
	case "requestedAt":
		return optTime(rm.RequestedAt)
	case "requestCount":
		return num(float64(rm.RequestCount))
	case "status":
		return optStr(rm.Status)
	default:
		return undefined()
	}
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}
