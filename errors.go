package tether

import "errors"

// ErrRejected is returned by a Feed when the property's validator refused
// an otherwise well-formed update. The previously applied value remains
// active and the Feed enters a degraded state.
//
// Use errors.Is to distinguish validator rejections from decode or
// pipeline failures:
//
//	if errors.Is(feed.LastError(), tether.ErrRejected) {
//	    // value decoded fine but failed the property's validator
//	}
var ErrRejected = errors.New("tether: value rejected by validator")
